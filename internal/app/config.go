package app

import "time"

// Config holds runtime configuration for the dashboard, the CLI and the
// audit agent.
type Config struct {
	// Server
	Addr         string
	CORSOrigins  []string
	StaticDir    string
	Namespace    string
	MaxBodyBytes int64
	RateLimit    float64
	RateBurst    int

	// Parsing
	StrictSections bool
	Footers        []string

	// Chart snapshot format for exports: "png" or "svg".
	ChartFormat string

	// Persistence
	StoreDriver      string
	StorePath        string
	StoreStrictPerms bool
	// InboxPath, when set, is watched for report files.
	InboxPath string

	// LLM
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	SystemPrompt string
	LLMRate      float64

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxEntries  int
	CacheClear       bool
	CacheStrictPerms bool

	// Behavior
	Verbose bool
	LogFile string
}

// Defaults.
const (
	DefaultAddr        = "127.0.0.1:8000"
	DefaultNamespace   = "comtesta"
	DefaultStoreDriver = "file"
	DefaultStorePath   = ".comtesta/state.json"
	DefaultCacheDir    = ".comtesta/cache"
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultChartFormat = "png"
	DefaultRateLimit   = 5
	DefaultRateBurst   = 10
	DefaultLLMRate     = 1
	DefaultMaxBody     = 1 << 20
)

// DefaultCORSOrigins is the allowlist used when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{"https://comtesta.netlify.app"}

// ApplyDefaults fills every still-zero field with its default. Call it last,
// after flags, environment and file config.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), DefaultCORSOrigins...)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBody
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.ChartFormat == "" {
		cfg.ChartFormat = DefaultChartFormat
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DefaultStoreDriver
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = DefaultModel
	}
	if cfg.LLMRate == 0 {
		cfg.LLMRate = DefaultLLMRate
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
}
