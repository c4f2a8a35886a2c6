package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/domain/valueobject"
)

func readablePage(number int, sentences int) PageSample {
	content := strings.TrimSpace(strings.Repeat("The quarterly report covers revenue and expenses in detail. ", sentences))
	return PageSample{PageNumber: number, Content: content, CharCount: len(content)}
}

func TestQualityGate_PassesReadableText(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	report := gate.Check([]PageSample{
		readablePage(1, 5),
		readablePage(2, 5),
	})

	assert.True(t, report.Passed)
	assert.Empty(t, report.Issues)
	assert.Nil(t, report.ErrorCode)
}

func TestQualityGate_FailsWhenNoPages(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	report := gate.Check(nil)

	assert.False(t, report.Passed)
	require.NotNil(t, report.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeEmptyExtraction, *report.ErrorCode)
	assert.NotEmpty(t, report.Issues)
}

func TestQualityGate_FailsWhenAllPagesEmpty(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: "   \n\t  "},
		{PageNumber: 2, Content: ""},
	})

	assert.False(t, report.Passed)
	require.NotNil(t, report.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeEmptyExtraction, *report.ErrorCode)
}

func TestQualityGate_FailsGarbledContent(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	// Half the runes are replacement characters, far past the 5% ceiling.
	garbled := strings.Repeat("a�", 200)
	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: garbled, CharCount: len(garbled)},
	})

	assert.False(t, report.Passed)
	require.NotNil(t, report.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeGarbledText, *report.ErrorCode)
}

func TestQualityGate_FailsLowDensity(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: "ok", CharCount: 2},
		{PageNumber: 2, Content: "hi", CharCount: 2},
	})

	assert.False(t, report.Passed)
	require.NotNil(t, report.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeLowDensity, *report.ErrorCode)
}

func TestQualityGate_SeverityRankingPicksGarbledOverLowDensity(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	// Short and mostly replacement runes: triggers both garbled_text and
	// low_density. The canonical code must be the more severe garbled_text.
	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: "���ab", CharCount: 5},
	})

	assert.False(t, report.Passed)
	require.NotNil(t, report.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeGarbledText, *report.ErrorCode)
	assert.Len(t, report.Issues, 2)
}

func TestQualityGate_EmptyPagesAmongReadableOnesWarnOnly(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	report := gate.Check([]PageSample{
		readablePage(1, 5),
		{PageNumber: 2, Content: ""},
		readablePage(3, 5),
	})

	assert.True(t, report.Passed)
	assert.Nil(t, report.ErrorCode)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "1 of 3 pages")
}

func TestQualityGate_ShortDocumentWarnsOnly(t *testing.T) {
	gate := NewQualityGate(QualityGateConfig{
		MinAvgCharsPerPage: 25,
		MaxGarbledRatio:    0.05,
		WarnShortDocChars:  200,
	})

	content := "This single page has enough density but the document is tiny."
	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: content, CharCount: len(content)},
	})

	assert.True(t, report.Passed)
	assert.Nil(t, report.ErrorCode)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "very short")
}

func TestQualityGate_DeterministicForIdenticalInput(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())
	pages := []PageSample{readablePage(1, 5), {PageNumber: 2, Content: ""}}

	first := gate.Check(pages)
	second := gate.Check(pages)

	assert.Equal(t, first, second)
}

func TestNewQualityGate_AppliesDefaultsForUnsetThresholds(t *testing.T) {
	gate := NewQualityGate(QualityGateConfig{})

	assert.Equal(t, DefaultQualityGateConfig(), gate.config)
}

func TestQualityGate_WhitespaceControlRunesAreNotGarbled(t *testing.T) {
	gate := NewQualityGate(DefaultQualityGateConfig())

	content := strings.Repeat("Structured text with\ttabs and\nnewlines throughout the page. ", 5)
	report := gate.Check([]PageSample{
		{PageNumber: 1, Content: content, CharCount: len(content)},
	})

	assert.True(t, report.Passed)
}
