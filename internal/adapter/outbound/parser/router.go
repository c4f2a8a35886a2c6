// Package parser implements the parser router and the format-specific
// extractors behind it. Each extractor turns raw bytes into an ordered
// sequence of pages with derived character counts.
package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"docingest/internal/port/outbound"
)

// documentParser extracts pages from the raw bytes of one format family.
type documentParser interface {
	Name() string
	Parse(ctx context.Context, data []byte) ([]outbound.ParsedPage, error)
}

type registration struct {
	parser      documentParser
	sourceTypes map[string]bool
}

// Router dispatches raw document bytes to the extractor registered for the
// mime/source-type pair. It implements outbound.ParserRouter.
type Router struct {
	registry map[string]registration
}

// NewRouter creates a router with the default format registrations.
func NewRouter() *Router {
	r := &Router{registry: make(map[string]registration)}

	anySource := map[string]bool{"upload": true, "scrape": true}
	uploadOnly := map[string]bool{"upload": true}

	plain := newPlainTextParser()
	r.register("text/plain", plain, anySource)
	r.register("text/markdown", plain, anySource)
	r.register("application/pdf", newPDFParser(), uploadOnly)
	r.register("text/html", newHTMLParser(), anySource)

	return r
}

func (r *Router) register(mimeType string, p documentParser, sourceTypes map[string]bool) {
	r.registry[mimeType] = registration{parser: p, sourceTypes: sourceTypes}
}

// IsSupported reports whether a mime/source-type pair has a registered
// extractor.
func (r *Router) IsSupported(mimeType, sourceType string) bool {
	reg, ok := r.registry[normalizeMimeType(mimeType)]
	return ok && reg.sourceTypes[sourceType]
}

// Parse extracts pages from raw bytes and derives the document totals.
func (r *Router) Parse(
	ctx context.Context,
	data []byte,
	mimeType, sourceType string,
) (*outbound.ParseResult, error) {
	reg, ok := r.registry[normalizeMimeType(mimeType)]
	if !ok || !reg.sourceTypes[sourceType] {
		return nil, fmt.Errorf("no parser registered for %s/%s", mimeType, sourceType)
	}

	pages, err := reg.parser.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s parser failed: %w", reg.parser.Name(), err)
	}

	totalWords := 0
	for i := range pages {
		pages[i].PageNumber = i + 1
		pages[i].CharCount = utf8.RuneCountInString(pages[i].Content)
		totalWords += len(strings.Fields(pages[i].Content))
	}

	return &outbound.ParseResult{
		Pages:      pages,
		TotalPages: len(pages),
		TotalWords: totalWords,
		ParserUsed: reg.parser.Name(),
	}, nil
}

// normalizeMimeType strips parameters such as charset and lowercases the
// media type.
func normalizeMimeType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
