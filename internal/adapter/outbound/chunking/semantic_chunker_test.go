package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/port/outbound"
)

// testSentence is exactly 44 runes, so two sentences joined by a space are 89
// runes and three exceed a 100-rune chunk budget.
const testSentence = "The quick brown fox jumps over the lazy dog."

func testConfig() outbound.ChunkingConfig {
	return outbound.ChunkingConfig{
		MaxChunkSize: 100,
		MinChunkSize: 20,
		OverlapSize:  50,
	}
}

func repeatedSentences(n int) string {
	return strings.TrimSpace(strings.Repeat(testSentence+" ", n))
}

func TestSemanticChunker_EmptyInputYieldsNoChunks(t *testing.T) {
	chunker := NewSemanticChunker()

	assert.Empty(t, chunker.Chunk(nil, testConfig()))
	assert.Empty(t, chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: ""},
		{PageNumber: 2, Content: "  \n\n\t  "},
	}, testConfig()))
}

func TestSemanticChunker_TrailingBufferBelowMinimumIsDiscarded(t *testing.T) {
	chunker := NewSemanticChunker()

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: "Tiny."},
	}, testConfig())

	assert.Empty(t, chunks)
}

func TestSemanticChunker_SingleChunkDocument(t *testing.T) {
	chunker := NewSemanticChunker()

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: repeatedSentences(2)},
	}, testConfig())

	require.Len(t, chunks, 1)
	chunk := chunks[0]
	assert.Equal(t, 0, chunk.Index)
	assert.Equal(t, testSentence+" "+testSentence, chunk.Content)
	assert.Equal(t, 0, chunk.StartChar)
	assert.Equal(t, 89, chunk.EndChar)
	assert.Equal(t, 1, chunk.FirstPage)
	assert.Equal(t, 1, chunk.LastPage)
}

func TestSemanticChunker_OverlapSeedsNextChunk(t *testing.T) {
	chunker := NewSemanticChunker()

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: repeatedSentences(6)},
	}, testConfig())

	// Six 44-rune sentences under a 100-rune budget with 50-rune overlap
	// produce a sliding window of two sentences advancing one at a time.
	require.Len(t, chunks, 5)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, testSentence+" "+testSentence, chunk.Content)
		assert.Equal(t, i*45, chunk.StartChar)
		assert.Equal(t, i*45+89, chunk.EndChar)
		assert.LessOrEqual(t, len(chunk.Content), testConfig().MaxChunkSize)
		assert.GreaterOrEqual(t, len(chunk.Content), testConfig().MinChunkSize)
	}
}

func TestSemanticChunker_ChunkSpansPageBoundary(t *testing.T) {
	chunker := NewSemanticChunker()

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: repeatedSentences(3)},
		{PageNumber: 2, Content: repeatedSentences(3)},
	}, testConfig())

	require.Len(t, chunks, 5)
	assert.Equal(t, 1, chunks[0].FirstPage)
	assert.Equal(t, 1, chunks[0].LastPage)
	// The middle chunk carries the last sentence of page 1 and the first of
	// page 2.
	assert.Equal(t, 1, chunks[2].FirstPage)
	assert.Equal(t, 2, chunks[2].LastPage)
	assert.Equal(t, 2, chunks[4].FirstPage)
	assert.Equal(t, 2, chunks[4].LastPage)
}

func TestSemanticChunker_PagesProcessedInPageNumberOrder(t *testing.T) {
	chunker := NewSemanticChunker()

	first := "Page one opens the document with a full sentence of text."
	second := "Page two closes the document with another full sentence."

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 2, Content: second},
		{PageNumber: 1, Content: first},
	}, outbound.ChunkingConfig{MaxChunkSize: 500, MinChunkSize: 20, OverlapSize: 0})

	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0].Content, first))
	assert.Equal(t, 1, chunks[0].FirstPage)
	assert.Equal(t, 2, chunks[0].LastPage)
}

func TestSemanticChunker_DeterministicForIdenticalInput(t *testing.T) {
	chunker := NewSemanticChunker()
	pages := []outbound.ParsedPage{
		{PageNumber: 1, Content: repeatedSentences(6)},
		{PageNumber: 2, Content: repeatedSentences(4)},
	}

	first := chunker.Chunk(pages, testConfig())
	second := chunker.Chunk(pages, testConfig())

	assert.Equal(t, first, second)
}

func TestSemanticChunker_ZeroConfigFallsBackToDefaults(t *testing.T) {
	chunker := NewSemanticChunker()
	content := repeatedSentences(10)

	chunks := chunker.Chunk([]outbound.ParsedPage{
		{PageNumber: 1, Content: content},
	}, outbound.ChunkingConfig{})

	require.NotEmpty(t, chunks)
	defaults := outbound.DefaultChunkingConfig()
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), defaults.MaxChunkSize)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name      string
		paragraph string
		want      []string
	}{
		{
			name:      "boundary requires capital after punctuation",
			paragraph: "First point. Second point. third continues here.",
			want:      []string{"First point.", "Second point. third continues here."},
		},
		{
			name:      "no boundary returns whole paragraph",
			paragraph: "a single run of lowercase words without breaks",
			want:      []string{"a single run of lowercase words without breaks"},
		},
		{
			name:      "closing quote extends the sentence",
			paragraph: `He said "stop." Then he left.`,
			want:      []string{`He said "stop."`, "Then he left."},
		},
		{
			name:      "newline after punctuation is a boundary",
			paragraph: "end of line.\nnext line continues.",
			want:      []string{"end of line.", "next line continues."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.paragraph))
		})
	}
}

func TestOverlapSuffix(t *testing.T) {
	buffer := []sentence{
		{text: strings.Repeat("a", 30)},
		{text: strings.Repeat("b", 30)},
		{text: strings.Repeat("c", 30)},
	}

	t.Run("takes as many trailing sentences as fit", func(t *testing.T) {
		overlap := overlapSuffix(buffer, 65)
		require.Len(t, overlap, 2)
		assert.Equal(t, buffer[1].text, overlap[0].text)
	})

	t.Run("zero overlap disables seeding", func(t *testing.T) {
		assert.Nil(t, overlapSuffix(buffer, 0))
	})

	t.Run("overlap smaller than last sentence yields nothing", func(t *testing.T) {
		assert.Nil(t, overlapSuffix(buffer, 10))
	})
}
