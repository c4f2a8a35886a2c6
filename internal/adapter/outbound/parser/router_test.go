package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_IsSupported(t *testing.T) {
	router := NewRouter()

	tests := []struct {
		mimeType   string
		sourceType string
		supported  bool
	}{
		{"text/plain", "upload", true},
		{"text/plain", "scrape", true},
		{"text/markdown", "upload", true},
		{"text/html", "scrape", true},
		{"application/pdf", "upload", true},

		// PDFs only arrive through uploads.
		{"application/pdf", "scrape", false},

		{"application/msword", "upload", false},
		{"image/png", "upload", false},
		{"text/plain", "carrier_pigeon", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.supported, router.IsSupported(tt.mimeType, tt.sourceType),
			"%s from %s", tt.mimeType, tt.sourceType)
	}
}

func TestRouter_IsSupportedNormalizesMimeType(t *testing.T) {
	router := NewRouter()

	assert.True(t, router.IsSupported("text/plain; charset=utf-8", "upload"))
	assert.True(t, router.IsSupported("Text/HTML", "scrape"))
	assert.True(t, router.IsSupported("  text/markdown  ", "upload"))
}

func TestNormalizeMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", normalizeMimeType("text/plain; charset=utf-8"))
	assert.Equal(t, "application/pdf", normalizeMimeType("Application/PDF"))
	assert.Equal(t, "text/html", normalizeMimeType("  text/html  "))
}

func TestRouter_ParseRejectsUnsupportedPair(t *testing.T) {
	router := NewRouter()

	_, err := router.Parse(context.Background(), []byte("data"), "application/pdf", "scrape")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser registered")
}

func TestRouter_ParsePlainTextDerivesTotals(t *testing.T) {
	router := NewRouter()
	data := []byte("page one has five words\fpage two here")

	result, err := router.Parse(context.Background(), data, "text/plain", "upload")

	require.NoError(t, err)
	assert.Equal(t, "plaintext", result.ParserUsed)
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, 8, result.TotalWords)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, 1, result.Pages[0].PageNumber)
	assert.Equal(t, "page one has five words", result.Pages[0].Content)
	assert.Equal(t, 23, result.Pages[0].CharCount)
	assert.Equal(t, 2, result.Pages[1].PageNumber)
	assert.Equal(t, "page two here", result.Pages[1].Content)
}

func TestPlainTextParser_FormFeedPaging(t *testing.T) {
	p := newPlainTextParser()

	pages, err := p.Parse(context.Background(), []byte("  first \r\nline \f second \f"))

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "first \nline", pages[0].Content)
	assert.Equal(t, "second", pages[1].Content)
	assert.Equal(t, "", pages[2].Content)
}

func TestPlainTextParser_NoFormFeedIsSinglePage(t *testing.T) {
	p := newPlainTextParser()

	pages, err := p.Parse(context.Background(), []byte("just one page"))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "just one page", pages[0].Content)
}

func TestHTMLParser_ExtractsBlockText(t *testing.T) {
	p := newHTMLParser()
	html := `<html><head><style>body{color:red}</style></head><body>
		<nav>Skip me</nav>
		<h1>Quarterly Report</h1>
		<p>Revenue grew this quarter.</p>
		<script>alert("noise")</script>
		<footer>Ignore the footer</footer>
	</body></html>`

	pages, err := p.Parse(context.Background(), []byte(html))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Quarterly Report\n\nRevenue grew this quarter.", pages[0].Content)
}

func TestHTMLParser_PrefersMainContentRegion(t *testing.T) {
	p := newHTMLParser()
	html := `<html><body>
		<main><p>Main content only.</p></main>
		<div><p>Sidebar noise outside main.</p></div>
	</body></html>`

	pages, err := p.Parse(context.Background(), []byte(html))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Main content only.", pages[0].Content)
}

func TestHTMLParser_FallsBackToRawTextWithoutBlocks(t *testing.T) {
	p := newHTMLParser()

	pages, err := p.Parse(context.Background(), []byte(`<html><body><span>inline only</span></body></html>`))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "inline only", pages[0].Content)
}
