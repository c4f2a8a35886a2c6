package valueobject

import "fmt"

// ErrorCode is a stable classification of why an ingestion job failed,
// independent of its status. A job with status failed always carries a
// non-empty error code or message; a job with status done never does.
type ErrorCode string

// Error code constants.
const (
	// ErrorCodeUnsupportedFormat marks a mime/source-type pair the parser
	// router does not handle.
	ErrorCodeUnsupportedFormat ErrorCode = "unsupported_format"

	// Quality-gate codes, one per severe extraction defect.
	ErrorCodeEmptyExtraction ErrorCode = "empty_extraction"
	ErrorCodeGarbledText     ErrorCode = "garbled_text"
	ErrorCodeLowDensity      ErrorCode = "low_density"

	// ErrorCodeTimeout marks a job whose wall-clock deadline elapsed before
	// the pipeline finished.
	ErrorCodeTimeout ErrorCode = "timeout"

	// Runtime failure buckets for the best-effort classifier.
	ErrorCodeStorageError   ErrorCode = "storage_error"
	ErrorCodeParseError     ErrorCode = "parse_error"
	ErrorCodeEmbeddingError ErrorCode = "embedding_error"
	ErrorCodeDatabaseError  ErrorCode = "database_error"
	ErrorCodeUnknown        ErrorCode = "unknown"
)

var validErrorCodes = map[ErrorCode]bool{
	ErrorCodeUnsupportedFormat: true,
	ErrorCodeEmptyExtraction:   true,
	ErrorCodeGarbledText:       true,
	ErrorCodeLowDensity:        true,
	ErrorCodeTimeout:           true,
	ErrorCodeStorageError:      true,
	ErrorCodeParseError:        true,
	ErrorCodeEmbeddingError:    true,
	ErrorCodeDatabaseError:     true,
	ErrorCodeUnknown:           true,
}

// qualitySeverity is the fixed, total severity ordering used to pick a single
// canonical code when the quality gate detects multiple defects at once.
// Higher wins: empty_extraction > garbled_text > low_density.
var qualitySeverity = map[ErrorCode]int{
	ErrorCodeEmptyExtraction: 3,
	ErrorCodeGarbledText:     2,
	ErrorCodeLowDensity:      1,
}

// NewErrorCode creates a new ErrorCode with validation.
func NewErrorCode(code string) (ErrorCode, error) {
	c := ErrorCode(code)
	if !validErrorCodes[c] {
		return "", fmt.Errorf("invalid error code: %s", code)
	}
	return c, nil
}

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// IsQualityCode returns true if this code originates from the quality gate.
func (c ErrorCode) IsQualityCode() bool {
	_, ok := qualitySeverity[c]
	return ok
}

// MoreSevereQualityCode returns the more severe of two quality-gate codes
// under the fixed severity ranking. Non-quality codes rank lowest.
func MoreSevereQualityCode(a, b ErrorCode) ErrorCode {
	if qualitySeverity[a] >= qualitySeverity[b] {
		return a
	}
	return b
}
