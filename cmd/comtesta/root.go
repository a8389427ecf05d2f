package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperifyio/comtesta/internal/app"
)

// options holds the raw flag values shared by every command.
type options struct {
	configPath string
	envFiles   []string
	verbose    bool
	logFile    string
	strict     bool

	addr        string
	namespace   string
	storeDriver string
	storePath   string
	inbox       string
	staticDir   string
	chartFormat string

	llmBase  string
	llmModel string
	llmKey   string
	cacheDir string

	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "comtesta",
		Short:         "Parse, chart and export epistemic audit reports",
		Long:          "comtesta turns six-section epistemic audit responses into a typed report,\na radar chart of the scored indicators and exportable dashboards.",
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}
	root.SetVersionTemplate(app.CurrentBuild().String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("COMTESTA_CONFIG"), "Path to a YAML or JSON config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files to load before reading the environment")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file")
	pf.BoolVar(&opts.strict, "strict", false, "Fail when any of the six sections is missing")
	pf.StringVar(&opts.llmBase, "llm.base", "", "OpenAI-compatible base URL (default Groq)")
	pf.StringVar(&opts.llmModel, "llm.model", "", "Model name")
	pf.StringVar(&opts.llmKey, "llm.key", "", "API key for the model endpoint")
	pf.StringVar(&opts.cacheDir, "cache.dir", "", "Completion cache directory")
	pf.StringVar(&opts.storeDriver, "store", "", "Persistence backend: file, sqlite or memory")
	pf.StringVar(&opts.storePath, "store.path", "", "Persistence file path")
	pf.StringVar(&opts.chartFormat, "chart.format", "", "Chart snapshot format for exports: png or svg")

	root.AddCommand(
		newParseCmd(opts),
		newShowCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newAskCmd(opts),
		newResetCmd(opts),
		newModelsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *options) setupLogging(stderr io.Writer) error {
	var out io.Writer = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	if strings.TrimSpace(o.logFile) != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logCloser = f
		out = io.MultiWriter(out, f)
	}
	log.Logger = log.Output(out)
	if o.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return nil
}

// config resolves the effective configuration: flags beat environment,
// environment beats the config file, and defaults fill the rest.
func (o *options) config(flags *pflag.FlagSet) (app.Config, error) {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	var cfg app.Config
	if strings.TrimSpace(o.configPath) != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
		app.ApplyEnvOverrides(&cfg)
	} else {
		app.ApplyEnvToConfig(&cfg)
	}

	str := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	str("addr", &cfg.Addr, o.addr)
	str("namespace", &cfg.Namespace, o.namespace)
	str("store", &cfg.StoreDriver, o.storeDriver)
	str("store.path", &cfg.StorePath, o.storePath)
	str("inbox", &cfg.InboxPath, o.inbox)
	str("static", &cfg.StaticDir, o.staticDir)
	str("chart.format", &cfg.ChartFormat, o.chartFormat)
	str("llm.base", &cfg.LLMBaseURL, o.llmBase)
	str("llm.model", &cfg.LLMModel, o.llmModel)
	str("llm.key", &cfg.LLMAPIKey, o.llmKey)
	str("cache.dir", &cfg.CacheDir, o.cacheDir)
	str("log-file", &cfg.LogFile, o.logFile)
	if flags.Changed("strict") {
		cfg.StrictSections = o.strict
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}

	app.ApplyDefaults(&cfg)
	if cfg.Verbose && !o.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}
