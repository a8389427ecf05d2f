package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/comtesta/internal/agent"
	"github.com/hyperifyio/comtesta/internal/app"
	"github.com/hyperifyio/comtesta/internal/cache"
	"github.com/hyperifyio/comtesta/internal/llm"
	"github.com/hyperifyio/comtesta/internal/normalize"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/render"
	"github.com/hyperifyio/comtesta/internal/report"
	"github.com/hyperifyio/comtesta/internal/store"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func assemble(cfg app.Config, raw string) (*report.Report, error) {
	a := &report.Assembler{Normalizer: normalize.New(cfg.Footers...), Strict: cfg.StrictSections}
	r, err := a.Parse(raw)
	if err != nil {
		return nil, err
	}
	for _, d := range r.Diagnostics {
		log.Warn().Str("code", d.Code).Msg(d.Message)
	}
	return r, nil
}

func loadReport(cmd *cobra.Command, opts *options, args []string) (app.Config, *report.Report, string, error) {
	cfg, err := opts.config(cmd.Flags())
	if err != nil {
		return cfg, nil, "", err
	}
	raw, err := readInput(cmd, args)
	if err != nil {
		return cfg, nil, "", err
	}
	r, err := assemble(cfg, raw)
	return cfg, r, raw, err
}

func newParseCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse a report and print it as Markdown or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, r, _, err := loadReport(cmd, opts, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			_, err = io.WriteString(out, render.Markdown(r))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the typed report as JSON")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "show [file|-]",
		Short: "Render a report in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, r, _, err := loadReport(cmd, opts, args)
			if err != nil {
				return err
			}
			return printTerminal(cmd.OutOrStdout(), r, width)
		},
	}
	cmd.Flags().IntVar(&width, "width", 100, "Word wrap width")
	return cmd
}

func printTerminal(w io.Writer, r *report.Report, width int) error {
	out, err := render.Terminal(r, render.TerminalOptions{Width: width, Color: render.IsTerminal(w)})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		format  string
		outDir  string
		tarball bool
	)
	cmd := &cobra.Command{
		Use:   "export [file|-]",
		Short: "Export a report as HTML, PDF, Markdown, a chart image or a bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, r, raw, err := loadReport(cmd, opts, args)
			if err != nil {
				return err
			}
			path, err := export(r, raw, cfg, strings.ToLower(strings.TrimSpace(format)), outDir, tarball, nowFunc())
			if err != nil {
				return err
			}
			log.Info().Str("path", path).Str("format", format).Msg("export written")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "html", "html, pdf, md, svg, png or bundle")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&tarball, "tar", false, "Also pack a bundle export as tar.gz")
	return cmd
}

func export(r *report.Report, raw string, cfg app.Config, format, outDir string, tarball bool, now time.Time) (string, error) {
	if format == "bundle" {
		return app.ExportBundle(r, app.BundleOptions{Dir: outDir, Raw: raw, ChartFormat: cfg.ChartFormat, Tar: tarball, Now: now})
	}
	var data []byte
	switch format {
	case "html":
		snap, err := app.Snapshot(r, cfg.ChartFormat, radar.DefaultConfig())
		if err != nil {
			log.Warn().Err(err).Msg("chart snapshot failed; exporting without chart")
		}
		defer snap.Dispose()
		data = []byte(render.Standalone(r, snap, now))
	case "pdf":
		var buf bytes.Buffer
		if err := render.PDF(r, now, &buf); err != nil {
			return "", err
		}
		data = buf.Bytes()
	case "md":
		data = []byte(render.Markdown(r))
	case "svg", "png":
		c, err := app.Snapshot(r, format, radar.DefaultConfig())
		if err != nil {
			return "", err
		}
		if c == nil {
			return "", radar.ErrInsufficientAxes
		}
		defer c.Dispose()
		if data, err = c.Bytes(); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, render.ExportFilename(now, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "Listen address (default 127.0.0.1:8000)")
	f.StringVar(&opts.namespace, "namespace", "", "Message namespace (default comtesta)")
	f.StringVar(&opts.inbox, "inbox", "", "Watch this file for new reports")
	f.StringVar(&opts.staticDir, "static", "", "Serve static files from this directory")
	return cmd
}

func newAskCmd(opts *options) *cobra.Command {
	var (
		exportDir    string
		systemPrompt string
		raw          bool
		width        int
	)
	cmd := &cobra.Command{
		Use:   "ask MESSAGE...",
		Short: "Ask the audit agent to audit an argument and show the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.LLMAPIKey == "" && cfg.LLMBaseURL == "" {
				return errors.New("LLM_API_KEY (or GROQ_API_KEY) is not configured")
			}
			ctx := cmd.Context()
			auditor := app.NewAuditor(ctx, cfg)
			text, err := auditor.Audit(ctx, agent.Request{Message: strings.Join(args, " "), SystemPrompt: systemPrompt})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err = fmt.Fprintln(out, text)
				return err
			}
			r, err := assemble(cfg, text)
			if err != nil {
				return err
			}
			if err := printTerminal(out, r, width); err != nil {
				return err
			}
			if exportDir != "" {
				dir, err := app.ExportBundle(r, app.BundleOptions{Dir: exportDir, Raw: text, ChartFormat: cfg.ChartFormat, Now: nowFunc()})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, dir)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportDir, "export", "", "Write an export bundle under this directory")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "Override the audit system prompt")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the model's text instead of the rendered report")
	cmd.Flags().IntVar(&width, "width", 100, "Word wrap width")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	var yes, clearCache bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved report and chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			if !yes {
				if !render.IsTerminal(cmd.OutOrStdout()) {
					return errors.New("refusing to reset without --yes")
				}
				confirmed := false
				err := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title("Limpar o relatório salvo e o histórico?").
						Affirmative("Sim").
						Negative("Não").
						Value(&confirmed),
				)).Run()
				if err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}
			return reset(cmd.Context(), cfg, clearCache)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&clearCache, "cache", false, "Also clear the completion cache")
	return cmd
}

func reset(ctx context.Context, cfg app.Config, clearCache bool) error {
	st, err := store.Open(cfg.StoreDriver, cfg.StorePath, cfg.Namespace)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Clear(ctx); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.StorePath).Msg("saved report cleared")
	if clearCache {
		if err := cache.ClearDir(cfg.CacheDir); err != nil {
			return err
		}
		log.Info().Str("dir", cfg.CacheDir).Msg("completion cache cleared")
	}
	return nil
}

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the configured endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			var lister llm.ModelLister = llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, nil)
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			list, err := lister.ListModels(ctx)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(list.Models))
			for _, m := range list.Models {
				ids = append(ids, m.ID)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.CurrentBuild().String())
			return err
		},
	}
}
