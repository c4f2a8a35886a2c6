package outbound

import (
	"context"
)

// ParsedPage is one logical page extracted from a source file. Page numbers
// are 1-based and sequence order is significant.
type ParsedPage struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
	CharCount  int    `json:"char_count"`
}

// ParseResult is the output of routing a raw file through a parser.
type ParseResult struct {
	Pages      []ParsedPage `json:"pages"`
	TotalPages int          `json:"total_pages"`
	TotalWords int          `json:"total_words"`
	ParserUsed string       `json:"parser_used"`
}

// ParserRouter routes raw bytes to a file-type-specific parser. Parser
// internals are a black box to the pipeline; the router only promises pages
// back in reading order.
type ParserRouter interface {
	// IsSupported reports whether the mime/source-type pair is handled.
	IsSupported(mimeType, sourceType string) bool

	// Parse extracts logical pages from the raw bytes.
	Parse(ctx context.Context, data []byte, mimeType, sourceType string) (*ParseResult, error)
}
