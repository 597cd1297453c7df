// Package config provides configuration loading for indexd.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/embeddings"
	"github.com/fyrsmithlabs/indexd/internal/logging"
	"github.com/fyrsmithlabs/indexd/internal/rebuild"
	"github.com/fyrsmithlabs/indexd/internal/sqlite"
	"github.com/fyrsmithlabs/indexd/internal/telemetry"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

// Config is the complete indexd configuration.
type Config struct {
	Logging    logging.Config          `koanf:"logging"`
	Chunking   ChunkingConfig          `koanf:"chunking"`
	Embeddings embeddings.Config       `koanf:"embeddings"`
	Storage    sqlite.Config           `koanf:"storage"`
	Vector     vectorstore.DualConfig  `koanf:"vector"`
	Scheduler  rebuild.SchedulerConfig `koanf:"scheduler"`
	Telemetry  telemetry.Config        `koanf:"telemetry"`
}

// ChunkingConfig carries the engine defaults plus per-source-type
// preset overrides.
type ChunkingConfig struct {
	Defaults chunking.Config                         `koanf:"defaults"`
	Presets  map[chunking.SourceType]chunking.Config `koanf:"presets"`
}

// applyDefaults fills every section's missing values.
func applyDefaults(cfg *Config) {
	cfg.Logging.ApplyDefaults()
	if cfg.Chunking.Defaults.Strategy == "" {
		cfg.Chunking.Defaults.Strategy = chunking.StrategyFixed
	}
	cfg.Chunking.Defaults.ApplyDefaults()
	if cfg.Chunking.Presets == nil {
		cfg.Chunking.Presets = chunking.DefaultPresets()
	}
	cfg.Embeddings.ApplyDefaults()
	cfg.Vector.ApplyDefaults()
	cfg.Scheduler.ApplyDefaults()
	cfg.Telemetry.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Chunking.Defaults.Validate(); err != nil {
		return fmt.Errorf("chunking defaults: %w", err)
	}
	for st, preset := range c.Chunking.Presets {
		if !st.Valid() {
			return fmt.Errorf("chunking presets: unknown source type %q", st)
		}
		p := preset
		p.ApplyDefaults()
		if err := p.Validate(); err != nil {
			return fmt.Errorf("chunking preset %s: %w", st, err)
		}
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
