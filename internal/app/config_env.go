package app

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		if v := firstEnv(keys...); v != "" {
			*dst = v
		}
	}
	fill(&cfg.Addr, "COMTESTA_ADDR")
	if cfg.Addr == "" {
		cfg.Addr = hostPortFromEnv()
	}
	fill(&cfg.Namespace, "COMTESTA_NAMESPACE")
	fill(&cfg.StoreDriver, "COMTESTA_STORE_DRIVER")
	fill(&cfg.StorePath, "COMTESTA_STORE_PATH")
	fill(&cfg.InboxPath, "COMTESTA_INBOX")
	fill(&cfg.ChartFormat, "COMTESTA_CHART_FORMAT")
	fill(&cfg.LLMBaseURL, "LLM_BASE_URL")
	fill(&cfg.LLMModel, "LLM_MODEL", "GROQ_MODEL")
	fill(&cfg.LLMAPIKey, "LLM_API_KEY", "GROQ_API_KEY")
	fill(&cfg.CacheDir, "CACHE_DIR")
	fill(&cfg.LogFile, "COMTESTA_LOG_FILE")

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	}
	if cfg.CacheMaxAge == 0 {
		if d, ok := envDuration("CACHE_MAX_AGE"); ok {
			cfg.CacheMaxAge = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if b, ok := envBool(envKey); ok && b {
			*dst = true
		}
	}
	setBool(&cfg.StrictSections, "COMTESTA_STRICT_SECTIONS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment
// variables that are set. It lets env take precedence over a config file while
// flags, applied afterwards, stay highest.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	set := func(dst *string, keys ...string) {
		if v := firstEnv(keys...); v != "" {
			*dst = v
		}
	}
	if hp := hostPortFromEnv(); hp != "" {
		cfg.Addr = hp
	}
	set(&cfg.Addr, "COMTESTA_ADDR")
	set(&cfg.Namespace, "COMTESTA_NAMESPACE")
	set(&cfg.StoreDriver, "COMTESTA_STORE_DRIVER")
	set(&cfg.StorePath, "COMTESTA_STORE_PATH")
	set(&cfg.InboxPath, "COMTESTA_INBOX")
	set(&cfg.ChartFormat, "COMTESTA_CHART_FORMAT")
	set(&cfg.LLMBaseURL, "LLM_BASE_URL")
	set(&cfg.LLMModel, "LLM_MODEL", "GROQ_MODEL")
	set(&cfg.LLMAPIKey, "LLM_API_KEY", "GROQ_API_KEY")
	set(&cfg.CacheDir, "CACHE_DIR")
	set(&cfg.LogFile, "COMTESTA_LOG_FILE")
	if list := splitList(os.Getenv("CORS_ORIGINS")); len(list) > 0 {
		cfg.CORSOrigins = list
	}
	if d, ok := envDuration("CACHE_MAX_AGE"); ok {
		cfg.CacheMaxAge = d
	}
	for key, dst := range map[string]*bool{
		"COMTESTA_STRICT_SECTIONS": &cfg.StrictSections,
		"VERBOSE":                  &cfg.Verbose,
		"CACHE_CLEAR":              &cfg.CacheClear,
		"CACHE_STRICT_PERMS":       &cfg.CacheStrictPerms,
	} {
		if b, ok := envBool(key); ok {
			*dst = b
		}
	}
}

// hostPortFromEnv joins HOST and PORT when either is set.
func hostPortFromEnv() string {
	host := strings.TrimSpace(os.Getenv("HOST"))
	port := strings.TrimSpace(os.Getenv("PORT"))
	if host == "" && port == "" {
		return ""
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if _, err := strconv.Atoi(port); err != nil {
		port = "8000"
	}
	return net.JoinHostPort(host, port)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
