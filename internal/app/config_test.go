package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"COMTESTA_ADDR", "COMTESTA_NAMESPACE", "COMTESTA_STORE_DRIVER", "COMTESTA_STORE_PATH",
		"COMTESTA_INBOX", "COMTESTA_STRICT_SECTIONS", "COMTESTA_CHART_FORMAT", "COMTESTA_LOG_FILE",
		"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "GROQ_API_KEY", "GROQ_MODEL",
		"CORS_ORIGINS", "CACHE_DIR", "CACHE_MAX_AGE", "CACHE_CLEAR", "CACHE_STRICT_PERMS",
		"VERBOSE", "PORT", "HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("GROQ_MODEL", "llama-3.3-70b")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("PORT", "9090")
	t.Setenv("COMTESTA_STRICT_SECTIONS", "yes")
	t.Setenv("CACHE_MAX_AGE", "2h")

	cfg := Config{LLMModel: "explicit"}
	ApplyEnvToConfig(&cfg)
	assert.Equal(t, "gsk-test", cfg.LLMAPIKey)
	assert.Equal(t, "explicit", cfg.LLMModel, "explicit values win over env")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.True(t, cfg.StrictSections)
	assert.Equal(t, 2*time.Hour, cfg.CacheMaxAge)
}

func TestApplyEnvOverrides_BeatsFileValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "primary")
	t.Setenv("GROQ_API_KEY", "fallback")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("COMTESTA_STRICT_SECTIONS", "false")

	cfg := Config{LLMAPIKey: "from-file", Addr: "127.0.0.1:1", StrictSections: true, Namespace: "keep"}
	ApplyEnvOverrides(&cfg)
	assert.Equal(t, "primary", cfg.LLMAPIKey)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr)
	assert.False(t, cfg.StrictSections)
	assert.Equal(t, "keep", cfg.Namespace)
}

func TestLoadConfigFile_YAMLWithPromptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.txt"), []byte("Audite."), 0o600))
	path := filepath.Join(dir, "comtesta.yaml")
	yml := `server:
  addr: ":9000"
  corsOrigins: ["https://x.example"]
parse:
  strict: true
  footers: ["Powered by Flowise"]
store:
  driver: sqlite
  path: state.db
llm:
  model: mixtral
  systemPromptFile: prompt.txt
cache:
  maxAge: 1h
  maxEntries: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Audite.", fc.LLM.SystemPrompt)

	cfg := Config{StoreDriver: "memory"}
	ApplyFileConfig(&cfg, fc)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"https://x.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.StrictSections)
	assert.Equal(t, []string{"Powered by Flowise"}, cfg.Footers)
	assert.Equal(t, "memory", cfg.StoreDriver, "values already set are kept")
	assert.Equal(t, "state.db", cfg.StorePath)
	assert.Equal(t, "mixtral", cfg.LLMModel)
	assert.Equal(t, time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comtesta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chart":{"format":"svg"},"verbose":true}`), 0o600))
	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "svg", fc.Chart.Format)
	assert.True(t, fc.Verbose)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsAndValidate(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, DefaultCORSOrigins, cfg.CORSOrigins)
	assert.EqualValues(t, DefaultMaxBody, cfg.MaxBodyBytes)
	assert.Equal(t, "png", cfg.ChartFormat)
	require.NoError(t, ValidateConfig(cfg))

	bad := cfg
	bad.ChartFormat = "gif"
	assert.Error(t, ValidateConfig(bad))
	bad.ChartFormat = "pdf"
	assert.ErrorIs(t, ValidateConfig(bad), ErrChartFormat)
	bad = cfg
	bad.StoreDriver = "redis"
	assert.Error(t, ValidateConfig(bad))
	bad = cfg
	bad.Namespace = "a/b"
	assert.Error(t, ValidateConfig(bad))
	bad = cfg
	bad.RateBurst = -1
	assert.Error(t, ValidateConfig(bad))
}
