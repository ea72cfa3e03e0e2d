// Package config loads mistakebook configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables prefixed MISTAKEBOOK_ (MISTAKEBOOK_SERVER_ADDR -> server.addr)
//  2. YAML config file ($XDG_CONFIG_HOME/mistakebook/config.yaml by default)
//  3. Built-in defaults
//
// When the selected LLM provider has no key, the vendors' standard key
// variables (DEEPSEEK_API_KEY, OPENAI_API_KEY, ...) are used as a fallback.
package config

import (
	"fmt"
	"time"

	"github.com/abhisek/mistakebook/internal/llm"
	"github.com/abhisek/mistakebook/internal/logging"
	"github.com/abhisek/mistakebook/internal/ocr"
	"github.com/abhisek/mistakebook/internal/solving"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig   `koanf:"server"`
	Auth   AuthConfig     `koanf:"auth"`
	DB     DBConfig       `koanf:"db"`
	Log    logging.Config `koanf:"log"`
	LLM    llm.Config     `koanf:"llm"`
	Solve  SolveConfig    `koanf:"solve"`
	OCR    OCRConfig      `koanf:"ocr"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig configures identity token verification. Tokens are HS256 JWTs
// whose subject is the user id.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// DBConfig locates the SQLite database. Empty Path falls back to
// store.DefaultDBPath.
type DBConfig struct {
	Path string `koanf:"path"`
}

// SolveConfig tunes the solving workflow.
type SolveConfig struct {
	// MaxAttempts caps generate/review rounds per solve.
	MaxAttempts int `koanf:"max_attempts"`

	// CompletenessThreshold is the minimum assessor confidence (0-10) for a
	// knowledge set to count as complete.
	CompletenessThreshold int `koanf:"completeness_threshold"`

	// Concurrency bounds parallel solves in batch mode.
	Concurrency int `koanf:"concurrency"`

	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// OCRConfig selects the text extraction backend: "llm" (the configured LLM
// provider, which must accept images) or "vision" (Google Cloud Vision).
type OCRConfig struct {
	Backend  string           `koanf:"backend"`
	MaxBytes int              `koanf:"max_bytes"`
	Vision   ocr.VisionConfig `koanf:"vision"`
	LLM      ocr.LLMConfig    `koanf:"llm"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "mistakebook",
			TokenTTL: 24 * time.Hour,
		},
		Log: logging.DefaultConfig(),
		LLM: llm.DefaultConfig(),
		Solve: SolveConfig{
			MaxAttempts:           solving.DefaultMaxAttempts,
			CompletenessThreshold: 7,
			Concurrency:           4,
			MaxTokens:             4096,
			Temperature:           0.2,
		},
		OCR: OCRConfig{
			Backend:  "llm",
			MaxBytes: ocr.DefaultMaxBytes,
		},
	}
}

// Validate checks limits. Provider credentials are checked separately by
// commands that talk to an LLM (llm.Config.Validate).
func (c Config) Validate() error {
	if c.Solve.MaxAttempts < 1 {
		return fmt.Errorf("solve.max_attempts must be >= 1, got %d", c.Solve.MaxAttempts)
	}
	if c.Solve.CompletenessThreshold < 0 || c.Solve.CompletenessThreshold > 10 {
		return fmt.Errorf("solve.completeness_threshold must be in 0..10, got %d", c.Solve.CompletenessThreshold)
	}
	if c.Solve.Concurrency < 1 {
		return fmt.Errorf("solve.concurrency must be >= 1, got %d", c.Solve.Concurrency)
	}
	switch c.OCR.Backend {
	case "llm", "vision":
	default:
		return fmt.Errorf("ocr.backend must be llm or vision, got %q", c.OCR.Backend)
	}
	if c.OCR.MaxBytes < 0 {
		return fmt.Errorf("ocr.max_bytes must not be negative")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be >= 1, got %d", c.LLM.Retry.MaxAttempts)
	}
	return nil
}
