package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/abhisek/mistakebook/internal/llm"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MISTAKEBOOK_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// DefaultPath returns $XDG_CONFIG_HOME/mistakebook/config.yaml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mistakebook", "config.yaml"), nil
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path selects DefaultPath; a missing file at the
// default path is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	k := koanf.New(".")

	content, err := readConfigFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDiscoveredKey(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// applyDiscoveredKey switches to the first vendor with a standard key
// variable when the configured provider has no key of its own.
func applyDiscoveredKey(cfg *Config) {
	if cfg.LLM.HasKey() {
		return
	}
	found, ok := llm.DiscoverConfig()
	if !ok {
		return
	}
	cfg.LLM.Provider = found.Provider
	switch found.Provider {
	case "deepseek":
		cfg.LLM.DeepSeek.APIKey = found.DeepSeek.APIKey
	case "openai":
		cfg.LLM.OpenAI.APIKey = found.OpenAI.APIKey
	case "anthropic":
		cfg.LLM.Anthropic.APIKey = found.Anthropic.APIKey
	case "gemini":
		cfg.LLM.Gemini.APIKey = found.Gemini.APIKey
	case "openrouter":
		cfg.LLM.OpenRouter.APIKey = found.OpenRouter.APIKey
	}
}

// compoundFields lists every config key segment that contains an
// underscore. envKey splits variable names on underscores and then rejoins
// these.
var compoundFields = []string{
	"api_key", "base_url", "credentials_file", "completeness_threshold",
	"initial_wait", "jwt_secret", "max_attempts", "max_bytes", "max_tokens",
	"max_wait", "rate_limit", "read_timeout", "requests_per_second",
	"shutdown_timeout", "token_ttl", "write_timeout",
}

var rejoin = func() *strings.Replacer {
	var pairs []string
	for _, f := range compoundFields {
		pairs = append(pairs, strings.ReplaceAll(f, "_", "."), f)
	}
	return strings.NewReplacer(pairs...)
}()

// envKey maps an environment variable to its koanf key:
// MISTAKEBOOK_LLM_RATE_LIMIT_BURST -> llm.rate_limit.burst.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return rejoin.Replace(strings.ReplaceAll(key, "_", "."))
}
