// Package config loads the relay settings from defaults, an optional config
// file, a .env file and RELAY_* environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Relay  RelayConfig  `mapstructure:"relay"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Gemini GeminiConfig `mapstructure:"gemini"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BodyLimit       string        `mapstructure:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RelayConfig struct {
	DefaultModel string        `mapstructure:"default_model"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type GeminiConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

const envPrefix = "RELAY"

var defaults = map[string]any{
	"server.addr":             ":8000",
	"server.body_limit":       "1MB",
	"server.cors_origins":     []string{"*"},
	"server.shutdown_timeout": 10 * time.Second,
	"relay.default_model":     "openai",
	"relay.idle_timeout":      60 * time.Second,
	"openai.base_url":         "http://localhost:1234/v1",
	"openai.api_key":          "lm-studio",
	"openai.model":            "TheBloke/dolphin-2.2.1-mistral-7B-GGUF",
	"openai.temperature":      1.1,
	"openai.max_tokens":       140,
	"gemini.enabled":          true,
	"gemini.api_key":          "",
	"gemini.model":            "gemini-2.0-flash",
}

// Load reads the configuration. path may be empty.
func Load(path string) (Config, error) {
	// A missing .env is fine.
	_ = gotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
