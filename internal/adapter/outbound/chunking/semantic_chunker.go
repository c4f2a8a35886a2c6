// Package chunking splits parsed document pages into overlapping,
// size-bounded chunks along sentence and paragraph boundaries.
package chunking

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"docingest/internal/port/outbound"
)

// sentence is one sentence in the flattened page stream, carrying the page
// it came from and its character offsets in the stream.
type sentence struct {
	text      string
	page      int
	startChar int
	endChar   int
}

// SemanticChunker implements outbound.ChunkingStrategy. Chunk boundaries are
// deterministic for identical input: sizes and offsets are counted in
// characters over the flattened sentence stream.
type SemanticChunker struct{}

// NewSemanticChunker creates a new semantic chunker.
func NewSemanticChunker() *SemanticChunker {
	return &SemanticChunker{}
}

// Chunk transforms pages into size-bounded, context-preserving chunks.
// Sentences are accumulated greedily up to MaxChunkSize; each closed chunk
// seeds the next with the suffix of its sentences whose combined length is
// closest to but not exceeding OverlapSize, taken from the end backward.
// Trailing buffers shorter than MinChunkSize are discarded, never padded.
func (c *SemanticChunker) Chunk(pages []outbound.ParsedPage, config outbound.ChunkingConfig) []outbound.Chunk {
	config = applyConfigDefaults(config)

	sentences := c.flatten(pages)
	if len(sentences) == 0 {
		return []outbound.Chunk{}
	}

	var chunks []outbound.Chunk
	var buffer []sentence

	for _, s := range sentences {
		if len(buffer) > 0 && bufferLength(buffer)+1+runeLen(s.text) > config.MaxChunkSize {
			if chunk, ok := c.closeChunk(buffer, len(chunks), config.MinChunkSize); ok {
				chunks = append(chunks, chunk)
			}
			buffer = overlapSuffix(buffer, config.OverlapSize)
		}
		buffer = append(buffer, s)
	}

	if chunk, ok := c.closeChunk(buffer, len(chunks), config.MinChunkSize); ok {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// flatten walks pages in page-number order and splits each into sentences,
// assigning running character offsets over the sentence stream.
func (c *SemanticChunker) flatten(pages []outbound.ParsedPage) []sentence {
	ordered := make([]outbound.ParsedPage, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PageNumber < ordered[j].PageNumber
	})

	var sentences []sentence
	offset := 0
	for _, page := range ordered {
		for _, paragraph := range splitParagraphs(page.Content) {
			for _, text := range splitSentences(paragraph) {
				length := runeLen(text)
				sentences = append(sentences, sentence{
					text:      text,
					page:      page.PageNumber,
					startChar: offset,
					endChar:   offset + length,
				})
				offset += length + 1
			}
		}
	}
	return sentences
}

// closeChunk emits the buffer as a chunk when it meets the minimum size.
func (c *SemanticChunker) closeChunk(buffer []sentence, index, minChunkSize int) (outbound.Chunk, bool) {
	if len(buffer) == 0 || bufferLength(buffer) < minChunkSize {
		return outbound.Chunk{}, false
	}

	texts := make([]string, len(buffer))
	firstPage, lastPage := buffer[0].page, buffer[0].page
	for i, s := range buffer {
		texts[i] = s.text
		if s.page < firstPage {
			firstPage = s.page
		}
		if s.page > lastPage {
			lastPage = s.page
		}
	}

	return outbound.Chunk{
		Index:     index,
		Content:   strings.Join(texts, " "),
		StartChar: buffer[0].startChar,
		EndChar:   buffer[len(buffer)-1].endChar,
		FirstPage: firstPage,
		LastPage:  lastPage,
		Sentences: texts,
	}, true
}

// overlapSuffix returns the suffix of the buffer whose combined length is
// closest to but not exceeding overlapSize, accumulated from the end
// backward.
func overlapSuffix(buffer []sentence, overlapSize int) []sentence {
	if overlapSize <= 0 {
		return nil
	}
	total := 0
	start := len(buffer)
	for i := len(buffer) - 1; i >= 0; i-- {
		length := runeLen(buffer[i].text)
		if total > 0 {
			length++ // joining space
		}
		if total+length > overlapSize {
			break
		}
		total += length
		start = i
	}
	if start == len(buffer) {
		return nil
	}
	overlap := make([]sentence, len(buffer)-start)
	copy(overlap, buffer[start:])
	return overlap
}

// bufferLength returns the joined character length of the buffered sentences.
func bufferLength(buffer []sentence) int {
	if len(buffer) == 0 {
		return 0
	}
	total := len(buffer) - 1 // joining spaces
	for _, s := range buffer {
		total += runeLen(s.text)
	}
	return total
}

// splitParagraphs splits page content on blank lines.
func splitParagraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var paragraphs []string
	for _, block := range strings.Split(normalized, "\n\n") {
		if strings.TrimSpace(block) != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

// splitSentences splits a paragraph at sentence boundaries: sentence-ending
// punctuation followed by whitespace and a capital letter, or punctuation
// followed by a line break. A paragraph with no detected boundary is
// returned whole as a single sentence.
func splitSentences(paragraph string) []string {
	runes := []rune(paragraph)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}

		// Extend over closing quotes and brackets.
		end := i + 1
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}

		// The boundary needs trailing whitespace.
		next := end
		sawNewline := false
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			if runes[next] == '\n' {
				sawNewline = true
			}
			next++
		}
		if next == end || next >= len(runes) {
			continue
		}
		if !sawNewline && !unicode.IsUpper(runes[next]) {
			continue
		}

		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			sentences = append(sentences, text)
		}
		start = next
		i = next - 1
	}

	if text := strings.TrimSpace(string(runes[start:])); text != "" {
		sentences = append(sentences, text)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func applyConfigDefaults(config outbound.ChunkingConfig) outbound.ChunkingConfig {
	defaults := outbound.DefaultChunkingConfig()
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = defaults.MaxChunkSize
	}
	if config.MinChunkSize <= 0 {
		config.MinChunkSize = defaults.MinChunkSize
	}
	if config.OverlapSize < 0 {
		config.OverlapSize = defaults.OverlapSize
	}
	return config
}
