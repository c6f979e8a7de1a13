// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/rag-axel/config.yaml)
//  3. Default values
//
// Sensitive values (the PostgreSQL password) are masked in MarshalJSON
// and String, so a Config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON as well.
type Config struct {
	// HTTP server
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`

	// Model backend (Ollama)
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval tuning
	TopK               int     `mapstructure:"top_k" json:"top_k"`
	ScoreThreshold     float32 `mapstructure:"score_threshold" json:"score_threshold"`
	RelevanceThreshold float32 `mapstructure:"relevance_threshold" json:"relevance_threshold"`

	// Conversation store
	MaxHistory             int `mapstructure:"max_history" json:"max_history"`
	ConversationTTLSeconds int `mapstructure:"conversation_ttl_seconds" json:"conversation_ttl_seconds"`
	SweepIntervalSeconds   int `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	RecorderQueueSize      int `mapstructure:"recorder_queue_size" json:"recorder_queue_size"`
	HistoryWindow          int `mapstructure:"history_window" json:"history_window"`

	// Ingestion
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Storage (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve-mode hardening
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Observability (optional OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration with the documented source priority and
// validates it before returning.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/rag-axel")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8000)

	viper.SetDefault("ollama_host", "http://localhost:11434")
	viper.SetDefault("model_name", "llama3")
	viper.SetDefault("embedder_model", "nomic-embed-text")

	viper.SetDefault("top_k", 3)
	viper.SetDefault("score_threshold", 0.2)
	viper.SetDefault("relevance_threshold", 0.3)

	viper.SetDefault("max_history", 10)
	viper.SetDefault("conversation_ttl_seconds", 3600)
	viper.SetDefault("sweep_interval_seconds", 3600)
	viper.SetDefault("recorder_queue_size", 256)
	viper.SetDefault("history_window", 3)

	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "axel")
	viper.SetDefault("postgres_password", "axel_dev_password")
	viper.SetDefault("postgres_db_name", "axel")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("cors_origins", []string{"*"})
	viper.SetDefault("rate_limit_rps", 5.0)
	viper.SetDefault("rate_limit_burst", 10)
	viper.SetDefault("trust_proxy", false)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", true)
}

// bindEnvVariables binds runtime overrides explicitly. DATABASE_URL is
// handled separately in parseDatabaseURL.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("host", "AXEL_HOST")
	mustBind("port", "AXEL_PORT")
	mustBind("ollama_host", "AXEL_OLLAMA_HOST")
	mustBind("model_name", "AXEL_MODEL_NAME")
	mustBind("embedder_model", "AXEL_EMBEDDER_MODEL")
	mustBind("postgres_password", "AXEL_POSTGRES_PASSWORD")
	mustBind("cors_origins", "AXEL_CORS_ORIGINS")
	mustBind("trust_proxy", "AXEL_TRUST_PROXY")
	mustBind("otlp_endpoint", "AXEL_OTLP_ENDPOINT")
	mustBind("log_level", "AXEL_LOG_LEVEL")
}

// maskedValue uses full-width blocks so a masked value can never be a
// substring of the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "ollama/llama3". A name already containing "/" passes through.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "ollama/" + c.ModelName
}

// ListenAddr returns the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
