package parser

import (
	"context"
	"strings"

	"docingest/internal/port/outbound"
)

// plainTextParser handles text/plain and text/markdown. Form feeds split the
// document into pages; a document without form feeds is a single page.
type plainTextParser struct{}

func newPlainTextParser() *plainTextParser { return &plainTextParser{} }

func (p *plainTextParser) Name() string { return "plaintext" }

func (p *plainTextParser) Parse(_ context.Context, data []byte) ([]outbound.ParsedPage, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	segments := strings.Split(text, "\f")
	pages := make([]outbound.ParsedPage, 0, len(segments))
	for _, segment := range segments {
		pages = append(pages, outbound.ParsedPage{Content: strings.TrimSpace(segment)})
	}
	return pages, nil
}
