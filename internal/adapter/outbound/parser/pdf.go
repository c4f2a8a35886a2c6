package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docingest/internal/port/outbound"
)

// pdfParser extracts plain text from PDF documents, one ParsedPage per PDF
// page. Pages the reader cannot decode yield empty content rather than
// failing the whole document, so the quality gate sees the real density.
type pdfParser struct{}

func newPDFParser() *pdfParser { return &pdfParser{} }

func (p *pdfParser) Name() string { return "pdf" }

func (p *pdfParser) Parse(ctx context.Context, data []byte) ([]outbound.ParsedPage, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	pages := make([]outbound.ParsedPage, 0, totalPages)

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, outbound.ParsedPage{})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, outbound.ParsedPage{})
			continue
		}
		pages = append(pages, outbound.ParsedPage{Content: strings.TrimSpace(text)})
	}

	return pages, nil
}
