package chunking

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Strategy selects the segmentation algorithm.
type Strategy string

const (
	StrategyFixed     Strategy = "fixed"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategySemantic  Strategy = "semantic"
)

var (
	ErrInvalidStrategy = errors.New("invalid chunking strategy")
	ErrInvalidConfig   = errors.New("invalid chunking config")
)

// Config controls one chunking pass. Sizes and overlap are measured in
// characters of the normalized text.
type Config struct {
	Strategy      Strategy `koanf:"strategy"`
	ChunkSize     int      `koanf:"chunk_size"`
	MinChunkSize  int      `koanf:"min_chunk_size"`
	MaxChunkSize  int      `koanf:"max_chunk_size"`
	ChunkOverlap  int      `koanf:"chunk_overlap"`
	PreserveWords bool     `koanf:"preserve_words"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategySentence
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 100
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 1200
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyFixed, StrategySentence, StrategyParagraph, StrategySemantic:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidStrategy, c.Strategy)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if c.MinChunkSize < 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: sizes must be non-negative", ErrInvalidConfig)
	}
	if c.MaxChunkSize < c.MinChunkSize {
		return fmt.Errorf("%w: max_chunk_size below min_chunk_size", ErrInvalidConfig)
	}
	if c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("%w: min_chunk_size exceeds chunk_size", ErrInvalidConfig)
	}
	return nil
}

// span is a half-open byte range into the normalized text.
type span struct {
	start, end int
}

// Engine chunks source documents. A per-source-type preset, when present,
// overrides the default configuration.
type Engine struct {
	defaults Config
	presets  map[SourceType]Config
	logger   *zap.Logger
}

// NewEngine creates an Engine with the given default configuration and
// optional per-source-type presets.
func NewEngine(defaults Config, presets map[SourceType]Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults.ApplyDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	validated := make(map[SourceType]Config, len(presets))
	for st, cfg := range presets {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("preset %s: %w", st, err)
		}
		validated[st] = cfg
	}
	return &Engine{defaults: defaults, presets: validated, logger: logger}, nil
}

// ConfigFor returns the configuration the engine will use for a source type.
func (e *Engine) ConfigFor(st SourceType) Config {
	if cfg, ok := e.presets[st]; ok {
		return cfg
	}
	return e.defaults
}

// Chunk splits the document into ordered chunks. Empty or whitespace-only
// content yields an empty list, not an error.
func (e *Engine) Chunk(doc SourceDocument) ([]DocumentChunk, error) {
	cfg := e.ConfigFor(doc.SourceType)
	norm := Normalize(doc.Content)
	if norm == "" {
		return nil, nil
	}

	var spans []span
	switch cfg.Strategy {
	case StrategyFixed:
		spans = chunkFixed(norm, cfg)
	case StrategySentence:
		spans = chunkSentence(norm, cfg)
	case StrategyParagraph:
		spans = chunkParagraph(norm, cfg)
	case StrategySemantic:
		spans = chunkSemantic(norm, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, cfg.Strategy)
	}

	chunks := make([]DocumentChunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, DocumentChunk{
			ChunkID:       ChunkID(doc.SourceID, i),
			ChunkIndex:    i,
			TotalChunks:   len(spans),
			Content:       norm[s.start:s.end],
			StartPosition: s.start,
			EndPosition:   s.end,
			SourceType:    doc.SourceType,
			SourceID:      doc.SourceID,
			Title:         doc.Title,
			Domain:        doc.Domain,
			Version:       doc.Version,
			Metadata:      doc.Metadata,
		})
	}

	e.logger.Debug("chunked document",
		zap.String("source_type", string(doc.SourceType)),
		zap.String("source_id", doc.SourceID),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Int("chunks", len(chunks)))

	return chunks, nil
}
