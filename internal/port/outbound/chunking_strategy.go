package outbound

// ChunkingConfig bounds chunk sizes. All sizes are counted in characters,
// not tokens or bytes; chunk boundaries must be deterministic for identical
// normalized input across reimplementations.
type ChunkingConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`
	MinChunkSize int `mapstructure:"min_chunk_size" yaml:"min_chunk_size"`
	OverlapSize  int `mapstructure:"overlap_size"   yaml:"overlap_size"`
}

// DefaultChunkingConfig returns the canonical chunk size bounds.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MaxChunkSize: 1000,
		MinChunkSize: 200,
		OverlapSize:  100,
	}
}

// Chunk is a contiguous, semantically bounded span of text assembled from
// one or more pages.
type Chunk struct {
	Index     int      `json:"index"`
	Content   string   `json:"content"`
	StartChar int      `json:"start_char"`
	EndChar   int      `json:"end_char"`
	FirstPage int      `json:"first_page"`
	LastPage  int      `json:"last_page"`
	Sentences []string `json:"-"` // size/overlap bookkeeping only, not persisted
}

// ChunkingStrategy splits parsed pages into overlapping, size-bounded chunks
// along sentence and paragraph boundaries.
type ChunkingStrategy interface {
	Chunk(pages []ParsedPage, config ChunkingConfig) []Chunk
}
