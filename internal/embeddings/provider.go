// Package embeddings converts text chunks into fixed-dimension vectors
// through a pluggable provider, with content-hash caching and retry.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyInput      = errors.New("empty input text")
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrEmbeddingFailed = errors.New("embedding request failed")
	ErrInvalidConfig   = errors.New("invalid embeddings config")
)

// Provider is the capability interface every embedding backend satisfies.
// EmbedBatch is order-preserving: result i corresponds to texts[i].
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
	Close() error
}

const (
	ProviderMock = "mock"
	ProviderHTTP = "http"
)

// Config selects and tunes the embedding provider.
type Config struct {
	Provider   string        `koanf:"provider"`
	Model      string        `koanf:"model"`
	Dimension  int           `koanf:"dimension"`
	BaseURL    string        `koanf:"base_url"`
	APIKey     string        `koanf:"api_key"`
	BatchSize  int           `koanf:"batch_size"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderMock
	}
	if c.Model == "" {
		c.Model = "all-MiniLM-L6-v2"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMock, ProviderHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.Provider == ProviderHTTP && c.BaseURL == "" {
		return fmt.Errorf("%w: base_url required for http provider", ErrInvalidConfig)
	}
	return nil
}

// NewProvider constructs the provider selected by configuration.
func NewProvider(cfg Config) (Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderMock:
		return NewMockProvider(cfg.Model, cfg.Dimension), nil
	case ProviderHTTP:
		return NewHTTPProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
