package app

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/report"
)

func parsed(t *testing.T, text string) *report.Report {
	t.Helper()
	r, err := (&report.Assembler{}).Parse(text)
	require.NoError(t, err)
	return r
}

func TestExportBundle_WritesArtifactsAndChecksums(t *testing.T) {
	root := t.TempDir()
	dir, err := ExportBundle(parsed(t, complete), BundleOptions{Dir: root, Raw: complete, Tar: true, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ComTesta_Dashboard_20250305_1407"), dir)

	for _, name := range []string{"report.json", "dashboard.html", "dashboard.pdf", "chart.png", "raw.txt", "SHA256SUMS"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	sums, err := os.ReadFile(filepath.Join(dir, "SHA256SUMS"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(sums)), "\n")
	assert.Len(t, lines, 5)
	want, err := sha256File(filepath.Join(dir, "raw.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(sums), want+"  raw.txt\n")

	f, err := os.Open(dir + ".tar.gz")
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	assert.Contains(t, names, "ComTesta_Dashboard_20250305_1407/dashboard.html")
	assert.Len(t, names, 6)
}

func TestExportBundle_SkipsChartWhenInsufficient(t *testing.T) {
	r := parsed(t, "[1] Enunciado: Curta.\n[5] Mapa:\n- A >> Nota: 4/5\n")
	dir, err := ExportBundle(r, BundleOptions{Dir: t.TempDir(), ChartFormat: "svg", Now: fixedNow})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "chart.svg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "raw.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportBundle_RejectsPDFChart(t *testing.T) {
	root := t.TempDir()
	_, err := ExportBundle(parsed(t, complete), BundleOptions{Dir: root, ChartFormat: "pdf", Now: fixedNow})
	require.ErrorIs(t, err, ErrChartFormat)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshot(t *testing.T) {
	c, err := Snapshot(parsed(t, complete), "svg", radar.DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Dispose()
	assert.Equal(t, radar.MediaSVG, c.MediaType())

	_, err = Snapshot(parsed(t, complete), "gif", radar.DefaultConfig())
	assert.ErrorIs(t, err, ErrChartFormat)
	_, err = Snapshot(parsed(t, complete), "pdf", radar.DefaultConfig())
	assert.ErrorIs(t, err, ErrChartFormat)

	c, err = Snapshot(nil, "png", radar.DefaultConfig())
	assert.NoError(t, err)
	assert.Nil(t, c)
}
