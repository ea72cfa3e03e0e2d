package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears every variable Load reads so the host environment does not
// leak into the test.
func isolate(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	for _, name := range []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 3, cfg.Solve.MaxAttempts)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
server:
  addr: ":9000"
solve:
  max_attempts: 5
  completeness_threshold: 8
llm:
  provider: openai
  openai:
    api_key: sk-file
  rate_limit:
    burst: 9
  timeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Solve.MaxAttempts)
	assert.Equal(t, 8, cfg.Solve.CompletenessThreshold)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-file", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, 9, cfg.LLM.RateLimit.Burst)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	// Untouched defaults survive.
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, 4, cfg.Solve.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "solve:\n  max_attempts: 5\n")
	t.Setenv("MISTAKEBOOK_SOLVE_MAX_ATTEMPTS", "2")
	t.Setenv("MISTAKEBOOK_LLM_RATE_LIMIT_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("MISTAKEBOOK_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Solve.MaxAttempts)
	assert.Equal(t, 0.5, cfg.LLM.RateLimit.RequestsPerSecond)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "solve:\n  max_attempts: 0\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "solve.max_attempts")
}

func TestLoadDiscoversVendorKey(t *testing.T) {
	isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.Anthropic.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold too high", func(c *Config) { c.Solve.CompletenessThreshold = 11 }},
		{"zero concurrency", func(c *Config) { c.Solve.Concurrency = 0 }},
		{"unknown ocr backend", func(c *Config) { c.OCR.Backend = "tesseract" }},
		{"zero llm retries", func(c *Config) { c.LLM.Retry.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestEnvKey(t *testing.T) {
	for name, want := range map[string]string{
		"MISTAKEBOOK_SERVER_ADDR":                        "server.addr",
		"MISTAKEBOOK_LLM_DEEPSEEK_API_KEY":               "llm.deepseek.api_key",
		"MISTAKEBOOK_LLM_RATE_LIMIT_REQUESTS_PER_SECOND": "llm.rate_limit.requests_per_second",
		"MISTAKEBOOK_LLM_RETRY_MAX_ATTEMPTS":             "llm.retry.max_attempts",
		"MISTAKEBOOK_SERVER_SHUTDOWN_TIMEOUT":            "server.shutdown_timeout",
		"MISTAKEBOOK_OCR_VISION_CREDENTIALS_FILE":        "ocr.vision.credentials_file",
		"MISTAKEBOOK_OCR_LLM_MAX_TOKENS":                 "ocr.llm.max_tokens",
		"MISTAKEBOOK_LOG_LEVEL":                          "log.level",
	} {
		assert.Equal(t, want, envKey(name), name)
	}
}

// Every field reachable from Config must be settable from the environment.
func TestEnvKey_CoversConfig(t *testing.T) {
	var walk func(reflect.Type, string)
	walk = func(typ reflect.Type, prefix string) {
		for i := 0; i < typ.NumField(); i++ {
			tag := typ.Field(i).Tag.Get("koanf")
			if tag == "" || tag == "-" {
				continue
			}
			key := strings.TrimPrefix(prefix+"."+tag, ".")
			if ft := typ.Field(i).Type; ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
				walk(ft, key)
				continue
			}
			name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			assert.Equal(t, key, envKey(name), "%s is not reachable from the environment", key)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
}
