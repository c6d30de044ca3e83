// Package config loads runtime settings from defaults, an optional
// intellido.yaml file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	StoreDriver string
	SQLitePath  string

	OpenAIKey     string
	AIProvider    string
	AIModel       string
	AIBaseURL     string
	AITimeout     time.Duration
	ToolTimeout   time.Duration
	AgentMaxSteps int

	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	ServerPort         string
	FrontendURL        string
	RateLimit          string
	MaxRequestBytes    int64
	RequestTimeout     time.Duration
	SessionIdleTimeout time.Duration

	LogFile      string
	DebugMode    bool
	OTELEnabled  bool
	OTELEndpoint string

	// ConfigFile is the file the settings were read from, if any
	ConfigFile string
}

var defaults = map[string]any{
	"database_url":                "",
	"store_driver":                "",
	"sqlite_path":                 "",
	"openai_api_key":              "",
	"ai_provider":                 "openai",
	"ai_model":                    "",
	"ai_base_url":                 "",
	"ai_timeout":                  "60s",
	"tool_timeout":                "15s",
	"agent_max_steps":             10,
	"redis_url":                   "",
	"rabbitmq_url":                "",
	"rabbitmq_prefetch":           1,
	"server_port":                 "8080",
	"frontend_url":                "http://localhost:3000",
	"rate_limit":                  "60-M",
	"max_request_bytes":           int64(1 << 20),
	"request_timeout":             "90s",
	"session_idle_timeout":        "30m",
	"log_file":                    filepath.Join("logs", "intellido.log"),
	"debug_mode":                  false,
	"otel_enabled":                false,
	"otel_exporter_otlp_endpoint": "",
}

// Load reads intellido.yaml from the working directory or $HOME/.intellido
// when present, then applies environment overrides
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("intellido")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".intellido"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return build(v)
}

// LoadFile reads settings from an explicit file, then applies environment
// overrides
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:        v.GetString("database_url"),
		StoreDriver:        strings.ToLower(v.GetString("store_driver")),
		SQLitePath:         v.GetString("sqlite_path"),
		OpenAIKey:          v.GetString("openai_api_key"),
		AIProvider:         strings.ToLower(v.GetString("ai_provider")),
		AIModel:            v.GetString("ai_model"),
		AIBaseURL:          v.GetString("ai_base_url"),
		AITimeout:          v.GetDuration("ai_timeout"),
		ToolTimeout:        v.GetDuration("tool_timeout"),
		AgentMaxSteps:      v.GetInt("agent_max_steps"),
		RedisURL:           v.GetString("redis_url"),
		RabbitMQURL:        v.GetString("rabbitmq_url"),
		RabbitMQPrefetch:   v.GetInt("rabbitmq_prefetch"),
		ServerPort:         v.GetString("server_port"),
		FrontendURL:        v.GetString("frontend_url"),
		RateLimit:          v.GetString("rate_limit"),
		MaxRequestBytes:    v.GetInt64("max_request_bytes"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		SessionIdleTimeout: v.GetDuration("session_idle_timeout"),
		LogFile:            v.GetString("log_file"),
		DebugMode:          v.GetBool("debug_mode"),
		OTELEnabled:        v.GetBool("otel_enabled"),
		OTELEndpoint:       v.GetString("otel_exporter_otlp_endpoint"),
		ConfigFile:         v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		return fmt.Errorf("DATABASE_URL or SQLITE_PATH is required")
	}
	switch c.StoreDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", c.StoreDriver)
	}
	switch c.AIProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("AI_PROVIDER must be openai or ollama, got %q", c.AIProvider)
	}
	if c.AITimeout <= 0 || c.ToolTimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT and TOOL_TIMEOUT must be positive durations")
	}
	if c.AgentMaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS must be positive, got %d", c.AgentMaxSteps)
	}
	if c.RabbitMQPrefetch <= 0 {
		c.RabbitMQPrefetch = 1
	}
	return nil
}

// RequireAI checks the settings needed to talk to the completion endpoint
func (c *Config) RequireAI() error {
	if c.AIProvider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	return nil
}
