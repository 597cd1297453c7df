package chunking

// DefaultPresets maps each source type to its chunking configuration.
// Policy documents keep whole paragraphs together, narrative content
// (exceptions, audit events) splits on sentences, and structured content
// (tool registry, playbooks) uses semantic section boundaries.
func DefaultPresets() map[SourceType]Config {
	return map[SourceType]Config{
		SourcePolicyDoc: {
			Strategy:      StrategyParagraph,
			ChunkSize:     1200,
			MinChunkSize:  100,
			MaxChunkSize:  1500,
			ChunkOverlap:  200,
			PreserveWords: true,
		},
		SourceResolvedException: {
			Strategy:      StrategySentence,
			ChunkSize:     800,
			MinChunkSize:  80,
			MaxChunkSize:  1000,
			ChunkOverlap:  100,
			PreserveWords: true,
		},
		SourceAuditEvent: {
			Strategy:      StrategySentence,
			ChunkSize:     600,
			MinChunkSize:  60,
			MaxChunkSize:  800,
			ChunkOverlap:  50,
			PreserveWords: true,
		},
		SourceToolRegistry: {
			Strategy:      StrategySemantic,
			ChunkSize:     1000,
			MinChunkSize:  100,
			MaxChunkSize:  1200,
			ChunkOverlap:  100,
			PreserveWords: true,
		},
		SourcePlaybook: {
			Strategy:      StrategySemantic,
			ChunkSize:     1000,
			MinChunkSize:  100,
			MaxChunkSize:  1200,
			ChunkOverlap:  150,
			PreserveWords: true,
		},
	}
}
