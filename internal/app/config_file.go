package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags and env.
type FileConfig struct {
	Server struct {
		Addr         string   `yaml:"addr" json:"addr"`
		CORSOrigins  []string `yaml:"corsOrigins" json:"corsOrigins"`
		StaticDir    string   `yaml:"staticDir" json:"staticDir"`
		Namespace    string   `yaml:"namespace" json:"namespace"`
		MaxBodyBytes int64    `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		RateLimit    float64  `yaml:"rateLimit" json:"rateLimit"`
		RateBurst    int      `yaml:"rateBurst" json:"rateBurst"`
		Inbox        string   `yaml:"inbox" json:"inbox"`
	} `yaml:"server" json:"server"`

	Parse struct {
		Strict  bool     `yaml:"strict" json:"strict"`
		Footers []string `yaml:"footers" json:"footers"`
	} `yaml:"parse" json:"parse"`

	Chart struct {
		Format string `yaml:"format" json:"format"`
	} `yaml:"chart" json:"chart"`

	Store struct {
		Driver      string `yaml:"driver" json:"driver"`
		Path        string `yaml:"path" json:"path"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"store" json:"store"`

	LLM struct {
		BaseURL          string  `yaml:"base" json:"base"`
		Model            string  `yaml:"model" json:"model"`
		APIKey           string  `yaml:"key" json:"key"`
		Rate             float64 `yaml:"rate" json:"rate"`
		SystemPrompt     string  `yaml:"systemPrompt" json:"systemPrompt"`
		SystemPromptFile string  `yaml:"systemPromptFile" json:"systemPromptFile"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Verbose bool   `yaml:"verbose" json:"verbose"`
	LogFile string `yaml:"logFile" json:"logFile"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	if fc.LLM.SystemPrompt == "" && fc.LLM.SystemPromptFile != "" {
		p := fc.LLM.SystemPromptFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		sp, err := os.ReadFile(p)
		if err != nil {
			return fc, fmt.Errorf("read system prompt: %w", err)
		}
		fc.LLM.SystemPrompt = string(sp)
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset in cfg. Flags and env should already have been applied;
// the file only supplies what they left empty.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}

	str(&cfg.Addr, fc.Server.Addr)
	if len(cfg.CORSOrigins) == 0 && len(fc.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = append([]string{}, fc.Server.CORSOrigins...)
	}
	str(&cfg.StaticDir, fc.Server.StaticDir)
	str(&cfg.Namespace, fc.Server.Namespace)
	if cfg.MaxBodyBytes == 0 && fc.Server.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = fc.Server.MaxBodyBytes
	}
	if cfg.RateLimit == 0 && fc.Server.RateLimit > 0 {
		cfg.RateLimit = fc.Server.RateLimit
	}
	if cfg.RateBurst == 0 && fc.Server.RateBurst > 0 {
		cfg.RateBurst = fc.Server.RateBurst
	}
	str(&cfg.InboxPath, fc.Server.Inbox)

	flag(&cfg.StrictSections, fc.Parse.Strict)
	if len(cfg.Footers) == 0 && len(fc.Parse.Footers) > 0 {
		cfg.Footers = append([]string{}, fc.Parse.Footers...)
	}
	str(&cfg.ChartFormat, fc.Chart.Format)

	str(&cfg.StoreDriver, fc.Store.Driver)
	str(&cfg.StorePath, fc.Store.Path)
	flag(&cfg.StoreStrictPerms, fc.Store.StrictPerms)

	str(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	str(&cfg.LLMModel, fc.LLM.Model)
	str(&cfg.LLMAPIKey, fc.LLM.APIKey)
	str(&cfg.SystemPrompt, fc.LLM.SystemPrompt)
	if cfg.LLMRate == 0 && fc.LLM.Rate > 0 {
		cfg.LLMRate = fc.LLM.Rate
	}

	str(&cfg.CacheDir, fc.Cache.Dir)
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 {
		cfg.CacheMaxEntries = fc.Cache.MaxEntries
	}
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)

	flag(&cfg.Verbose, fc.Verbose)
	str(&cfg.LogFile, fc.LogFile)
}

// ValidateConfig performs minimal validation of settings the server and the
// exporters depend on.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ChartFormat) != "" {
		if _, err := snapshotRenderer(cfg.ChartFormat); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", "memory", "file", "sqlite":
	default:
		return fmt.Errorf("config: store driver %q must be memory, file or sqlite", cfg.StoreDriver)
	}
	if strings.TrimSpace(cfg.Namespace) == "" {
		return errors.New("config: namespace is required")
	}
	if strings.ContainsAny(cfg.Namespace, "/ ") {
		return errors.New("config: namespace must not contain '/' or spaces")
	}
	if cfg.MaxBodyBytes < 0 || cfg.RateLimit < 0 || cfg.RateBurst < 0 || cfg.LLMRate < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
