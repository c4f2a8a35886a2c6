package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docingest/internal/application/common/slogger"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/outbound"
)

const (
	// interBatchDelay spaces out provider round-trips to respect rate
	// limits. Batches run strictly in sequence, never in parallel.
	interBatchDelay = 200 * time.Millisecond

	meteringChannel = "document_ingestion"
)

// ProvenanceEmbedder implements outbound.EmbeddingService. Every vector it
// returns carries the full provenance tuple (provider, model, dimensions,
// preprocess version) plus the content hash of the normalized text, so the
// persistence layer can prove two vectors are safe to compare.
type ProvenanceEmbedder struct {
	provider outbound.EmbeddingProvider
	meter    outbound.UsageMeter
	config   valueobject.EmbeddingConfig
	delay    time.Duration
}

// NewProvenanceEmbedder creates the provenance service. The meter may be nil
// when usage accounting is disabled.
func NewProvenanceEmbedder(
	provider outbound.EmbeddingProvider,
	meter outbound.UsageMeter,
	config valueobject.EmbeddingConfig,
) (*ProvenanceEmbedder, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding config: %w", err)
	}

	model, dimensions := provider.ModelInfo()
	if model != config.Model || dimensions != config.Dimensions {
		return nil, fmt.Errorf(
			"provider reports %s/%d but provenance config declares %s/%d; refusing to produce split-brain vectors",
			model, dimensions, config.Model, config.Dimensions)
	}

	return &ProvenanceEmbedder{
		provider: provider,
		meter:    meter,
		config:   config,
		delay:    interBatchDelay,
	}, nil
}

// Config returns the provenance configuration stamped onto results.
func (e *ProvenanceEmbedder) Config() valueobject.EmbeddingConfig {
	return e.config
}

// EmbedBatch normalizes and embeds texts, preserving input order. Provider
// calls carry at most batchSize texts each, with a fixed delay between
// round-trips. A usage record is emitted per successful provider call;
// metering is best-effort and never fails the embedding.
func (e *ProvenanceEmbedder) EmbedBatch(
	ctx context.Context,
	texts []string,
	batchSize int,
) ([]*outbound.EmbeddingResult, error) {
	if len(texts) == 0 {
		return []*outbound.EmbeddingResult{}, nil
	}
	if batchSize <= 0 {
		batchSize = outbound.DefaultEmbedBatchSize
	}

	normalized := make([]string, len(texts))
	hashes := make([]string, len(texts))
	for i, text := range texts {
		normalized[i] = NormalizeText(text)
		hashes[i] = HashText(normalized[i])
	}

	results := make([]*outbound.EmbeddingResult, 0, len(texts))
	for start := 0; start < len(normalized); start += batchSize {
		end := start + batchSize
		if end > len(normalized) {
			end = len(normalized)
		}
		batch := normalized[start:end]

		if start > 0 && e.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.delay):
			}
		}

		vectors, err := e.provider.GenerateEmbeddings(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors for %d texts",
				start, end-1, len(vectors), len(batch))
		}

		now := time.Now()
		for i, vector := range vectors {
			results = append(results, &outbound.EmbeddingResult{
				Vector:            vector,
				Provider:          e.config.Provider,
				Model:             e.config.Model,
				Dimensions:        e.config.Dimensions,
				PreprocessVersion: e.config.PreprocessVersion,
				ContentHash:       hashes[start+i],
				TokenCount:        estimateTokens(batch[i]),
				GeneratedAt:       now,
			})
		}

		e.recordUsage(ctx, batch)
	}

	return results, nil
}

// recordUsage emits a fire-and-forget usage-accounting record. Failures are
// the meter's problem, not ours.
func (e *ProvenanceEmbedder) recordUsage(ctx context.Context, batch []string) {
	if e.meter == nil {
		return
	}

	tokens := 0
	for _, text := range batch {
		tokens += estimateTokens(text)
	}
	record := outbound.UsageRecord{
		TenantID:   outbound.TenantFromContext(ctx),
		Model:      e.config.Model,
		Channel:    meteringChannel,
		TokenCount: tokens,
		TextCount:  len(batch),
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slogger.WarnNoCtx("Usage meter panicked", slogger.Fields{"panic": fmt.Sprint(r)})
			}
		}()
		e.meter.Record(context.WithoutCancel(ctx), record)
	}()
}

// estimateTokens approximates token usage from the word count. Natural
// language averages roughly 1.3 tokens per word.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words) * 1.3)
}
