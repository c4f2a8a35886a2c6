package outbound

import (
	"context"
	"time"

	"docingest/internal/domain/valueobject"
)

// EmbeddingResult is one vector plus the full provenance record needed to
// prove two vectors are safe to compare: vectors are directly comparable only
// if provider, model, dimensions and preprocess version are all equal.
type EmbeddingResult struct {
	Vector            []float64 `json:"vector"`
	Provider          string    `json:"provider"`
	Model             string    `json:"model"`
	Dimensions        int       `json:"dimensions"`
	PreprocessVersion string    `json:"preprocess_version"`
	// ContentHash is the digest of the normalized text that was embedded,
	// not the raw chunk text.
	ContentHash string    `json:"content_hash"`
	TokenCount  int       `json:"token_count,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Provenance returns the comparability tuple of this result.
func (r *EmbeddingResult) Provenance() valueobject.EmbeddingConfig {
	return valueobject.EmbeddingConfig{
		Provider:          r.Provider,
		Model:             r.Model,
		Dimensions:        r.Dimensions,
		PreprocessVersion: r.PreprocessVersion,
	}
}

// DefaultEmbedBatchSize is the maximum number of texts per provider call
// when the caller does not specify one.
const DefaultEmbedBatchSize = 50

type tenantContextKey struct{}

// WithTenant attaches the tenant identifier used for usage metering to the
// context of an EmbedBatch call.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the metering tenant, or empty string.
func TenantFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantContextKey{}).(string); ok {
		return tenantID
	}
	return ""
}

// EmbeddingService produces provenance-tagged embedding vectors.
type EmbeddingService interface {
	// EmbedBatch generates one EmbeddingResult per input text, preserving
	// input order. Inputs are normalized before hashing and submission;
	// provider calls are batched up to batchSize texts per round-trip.
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([]*EmbeddingResult, error)
}

// EmbeddingProvider is the raw outbound provider API: one vector per input
// text, input order preserved. Implementations do no normalization.
type EmbeddingProvider interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error)
	ModelInfo() (model string, dimensions int)
}

// EmbeddingError represents an error from the embedding provider.
type EmbeddingError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Type      string `json:"type"` // auth, quota, validation, server
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	if e.Cause != nil {
		return "embedding provider error (" + e.Type + "/" + e.Code + "): " + e.Message + ": " + e.Cause.Error()
	}
	return "embedding provider error (" + e.Type + "/" + e.Code + "): " + e.Message
}

// Unwrap returns the underlying cause error.
func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable.
func (e *EmbeddingError) IsRetryable() bool {
	return e.Retryable
}

// IsQuotaError returns whether the error is a quota/rate limit error.
func (e *EmbeddingError) IsQuotaError() bool {
	return e.Type == "quota" || e.Code == "rate_limit_exceeded" || e.Code == "quota_exceeded"
}
