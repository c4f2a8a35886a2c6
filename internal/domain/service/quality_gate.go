// Package service contains pure domain services with no I/O dependencies.
package service

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"docingest/internal/domain/valueobject"
)

// PageSample is the per-page input to the quality gate: page number, raw
// extracted content and its character count.
type PageSample struct {
	PageNumber int
	Content    string
	CharCount  int
}

// QualityReport is the gate's verdict. Non-fatal concerns are returned as
// issues with Passed=true and logged as warnings upstream; a failed report
// carries exactly one canonical error code.
type QualityReport struct {
	Passed    bool
	Issues    []string
	ErrorCode *valueobject.ErrorCode
}

// QualityGateConfig tunes the extraction-defect heuristics.
type QualityGateConfig struct {
	// MinAvgCharsPerPage is the character-density floor averaged across
	// non-empty pages.
	MinAvgCharsPerPage int `mapstructure:"min_avg_chars_per_page" yaml:"min_avg_chars_per_page"`
	// MaxGarbledRatio is the tolerated fraction of replacement and control
	// runes in the extracted text.
	MaxGarbledRatio float64 `mapstructure:"max_garbled_ratio" yaml:"max_garbled_ratio"`
	// WarnShortDocChars marks documents below this total size with a
	// non-fatal issue.
	WarnShortDocChars int `mapstructure:"warn_short_doc_chars" yaml:"warn_short_doc_chars"`
}

// DefaultQualityGateConfig returns the canonical gate thresholds.
func DefaultQualityGateConfig() QualityGateConfig {
	return QualityGateConfig{
		MinAvgCharsPerPage: 25,
		MaxGarbledRatio:    0.05,
		WarnShortDocChars:  200,
	}
}

// QualityGate decides whether parsed output is trustworthy enough to
// persist. It is pure and deterministic: identical input always yields an
// identical report. When uncertain it fails closed rather than letting
// garbage through.
type QualityGate struct {
	config QualityGateConfig
}

// NewQualityGate creates a quality gate, applying defaults for unset
// thresholds.
func NewQualityGate(config QualityGateConfig) *QualityGate {
	defaults := DefaultQualityGateConfig()
	if config.MinAvgCharsPerPage <= 0 {
		config.MinAvgCharsPerPage = defaults.MinAvgCharsPerPage
	}
	if config.MaxGarbledRatio <= 0 {
		config.MaxGarbledRatio = defaults.MaxGarbledRatio
	}
	if config.WarnShortDocChars <= 0 {
		config.WarnShortDocChars = defaults.WarnShortDocChars
	}
	return &QualityGate{config: config}
}

// Check evaluates parsed page statistics. When several severe defects are
// detected at once, the canonical error code is chosen by the fixed severity
// ranking empty_extraction > garbled_text > low_density.
func (g *QualityGate) Check(pages []PageSample) QualityReport {
	report := QualityReport{Passed: true, Issues: []string{}}

	nonEmptyPages := 0
	totalChars := 0
	emptyPages := 0
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			emptyPages++
			continue
		}
		nonEmptyPages++
		totalChars += utf8.RuneCountInString(page.Content)
	}

	var failures []valueobject.ErrorCode

	if len(pages) == 0 || nonEmptyPages == 0 {
		report.Issues = append(report.Issues, "no extractable text on any page")
		failures = append(failures, valueobject.ErrorCodeEmptyExtraction)
	}

	if nonEmptyPages > 0 {
		if ratio := g.garbledRatio(pages); ratio > g.config.MaxGarbledRatio {
			report.Issues = append(report.Issues,
				fmt.Sprintf("garbled content: %.1f%% of runes are control or replacement characters", ratio*100))
			failures = append(failures, valueobject.ErrorCodeGarbledText)
		}

		if avg := totalChars / nonEmptyPages; avg < g.config.MinAvgCharsPerPage {
			report.Issues = append(report.Issues,
				fmt.Sprintf("anomalously low character density: %d chars per page on average", avg))
			failures = append(failures, valueobject.ErrorCodeLowDensity)
		}
	}

	if len(failures) > 0 {
		report.Passed = false
		canonical := failures[0]
		for _, code := range failures[1:] {
			canonical = valueobject.MoreSevereQualityCode(canonical, code)
		}
		report.ErrorCode = &canonical
		return report
	}

	// Non-fatal concerns.
	if emptyPages > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d of %d pages contain no extractable text", emptyPages, len(pages)))
	}
	if totalChars < g.config.WarnShortDocChars {
		report.Issues = append(report.Issues,
			fmt.Sprintf("document is very short: %d characters total", totalChars))
	}

	return report
}

// garbledRatio measures the fraction of replacement and non-whitespace
// control runes across all page content.
func (g *QualityGate) garbledRatio(pages []PageSample) float64 {
	var garbled, total int
	for _, page := range pages {
		for _, r := range page.Content {
			total++
			if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t') {
				garbled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(garbled) / float64(total)
}
