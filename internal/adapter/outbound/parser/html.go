package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"docingest/internal/port/outbound"
)

// htmlParser extracts readable text from HTML. Script, style and chrome
// elements are stripped before extraction. HTML has no page concept, so the
// whole document becomes a single page.
type htmlParser struct{}

func newHTMLParser() *htmlParser { return &htmlParser{} }

func (p *htmlParser) Name() string { return "html" }

func (p *htmlParser) Parse(_ context.Context, data []byte) ([]outbound.ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, aside").Remove()

	root := doc.Find("main, article, #content, #main, body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var builder strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").
		Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			builder.WriteString(text)
			builder.WriteString("\n\n")
		})

	content := strings.TrimSpace(builder.String())
	if content == "" {
		// Fallback for documents without block-level structure
		content = strings.TrimSpace(root.Text())
	}

	return []outbound.ParsedPage{{Content: content}}, nil
}
