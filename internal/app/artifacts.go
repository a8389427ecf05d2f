package app

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/render"
	"github.com/hyperifyio/comtesta/internal/report"
)

// Snapshot renders r's indicator map in format ("png" or "svg") for embedding
// in an exported document. It returns nil without error when the report has
// fewer than three indicators. The caller owns the returned chart.
func Snapshot(r *report.Report, format string, cfg radar.Config) (*radar.Chart, error) {
	if r == nil || !r.Chartable() {
		return nil, nil
	}
	rr, err := snapshotRenderer(format)
	if err != nil {
		return nil, err
	}
	g, err := radar.Layout(r.MapItems, cfg)
	if err != nil {
		return nil, err
	}
	return rr.Render(g)
}

// ErrChartFormat is returned for a chart format that cannot be embedded in
// an exported document.
var ErrChartFormat = errors.New("chart format must be png or svg")

func snapshotRenderer(format string) (radar.Renderer, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "png", "svg":
		return radar.ForMediaType(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrChartFormat, format)
	}
}

// BundleOptions controls ExportBundle.
type BundleOptions struct {
	// Dir is the parent directory; the bundle gets its own timestamped
	// subdirectory under it.
	Dir string
	// Raw is the text the report was parsed from; written as raw.txt when set.
	Raw         string
	ChartFormat string
	Tar         bool
	Now         time.Time
}

// ExportBundle writes a deterministic set of artifacts for r under
// Dir/ComTesta_Dashboard_YYYYMMDD_HHMM/ and optionally a tar.gz beside it.
// It returns the bundle directory.
func ExportBundle(r *report.Report, opts BundleOptions) (string, error) {
	if r == nil {
		return "", errors.New("export: no report")
	}
	format := strings.ToLower(strings.TrimSpace(opts.ChartFormat))
	if format == "" {
		format = DefaultChartFormat
	}
	if _, err := snapshotRenderer(format); err != nil {
		return "", err
	}
	root := strings.TrimSpace(opts.Dir)
	if root == "" {
		root = "."
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := strings.TrimSuffix(render.ExportFilename(now, "html"), ".html")
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir bundle dir: %w", err)
	}

	// 1) report.json
	if err := writeJSON(filepath.Join(dir, "report.json"), r); err != nil {
		return "", err
	}

	// 2) chart snapshot, also embedded in the HTML
	snap, err := Snapshot(r, format, radar.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("chart snapshot: %w", err)
	}
	if snap != nil {
		defer snap.Dispose()
		data, err := snap.Bytes()
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, "chart."+format), data, 0o644); err != nil {
			return "", fmt.Errorf("write chart: %w", err)
		}
	}

	// 3) dashboard.html
	html := render.Standalone(r, snap, now)
	if err := os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write dashboard: %w", err)
	}

	// 4) dashboard.pdf
	var pdf bytes.Buffer
	if err := render.PDF(r, now, &pdf); err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dashboard.pdf"), pdf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	// 5) raw.txt
	if strings.TrimSpace(opts.Raw) != "" {
		if err := os.WriteFile(filepath.Join(dir, "raw.txt"), []byte(opts.Raw), 0o644); err != nil {
			return "", fmt.Errorf("write raw: %w", err)
		}
	}

	// 6) SHA256SUMS for all files in the bundle directory (excluding tarball)
	if err := writeSHA256SUMS(dir); err != nil {
		return "", err
	}

	// 7) Optional tar.gz archive of the directory
	if opts.Tar {
		if err := tarGzDirectory(dir, filepath.Join(root, name+".tar.gz")); err != nil {
			return "", fmt.Errorf("tar bundle: %w", err)
		}
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeSHA256SUMS(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "SHA256SUMS" || strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		sum, err := sha256File(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		b.WriteString(sum)
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(dir, "SHA256SUMS"), []byte(b.String()), 0o644)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func tarGzDirectory(srcDir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	base := filepath.Base(srcDir)
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
