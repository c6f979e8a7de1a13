package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors, checkable with errors.Is.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is empty.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidThreshold indicates a similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidMaxHistory indicates max_history is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max_history")

	// ErrInvalidTTL indicates the conversation TTL or sweep interval is invalid.
	ErrInvalidTTL = errors.New("invalid conversation TTL")

	// ErrInvalidChunking indicates the chunk size/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the password is missing or weak.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")
)

// Validate checks configuration values and returns sentinel errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPort, c.Port)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.OllamaHost == "" {
		return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
	}

	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold must be in [0, 1], got %.2f", ErrInvalidThreshold, c.ScoreThreshold)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("%w: relevance_threshold must be in [0, 1], got %.2f", ErrInvalidThreshold, c.RelevanceThreshold)
	}
	if c.RelevanceThreshold < c.ScoreThreshold {
		slog.Warn("relevance_threshold below score_threshold makes the second gate a no-op",
			"score_threshold", c.ScoreThreshold,
			"relevance_threshold", c.RelevanceThreshold)
	}

	if c.MaxHistory < 2 || c.MaxHistory > 1000 {
		return fmt.Errorf("%w: must be between 2 and 1000, got %d", ErrInvalidMaxHistory, c.MaxHistory)
	}
	if c.ConversationTTLSeconds < 1 {
		return fmt.Errorf("%w: conversation_ttl_seconds must be positive, got %d", ErrInvalidTTL, c.ConversationTTLSeconds)
	}
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("%w: sweep_interval_seconds must be positive, got %d", ErrInvalidTTL, c.SweepIntervalSeconds)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "axel_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}

	return nil
}
