// Package simple provides a deterministic, offline embedding provider used
// when no Gemini API key is configured. It exercises the full pipeline
// without external network calls.
package simple

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

const embedDim = 768

// Provider implements outbound.EmbeddingProvider with vectors seeded by the
// SHA-256 of the input text, so identical texts always map to identical
// vectors.
type Provider struct{}

// New creates a new deterministic provider.
func New() *Provider { return &Provider{} }

// ModelInfo identifies the stub model.
func (p *Provider) ModelInfo() (string, int) {
	return "simple-deterministic", embedDim
}

// GenerateEmbeddings returns one L2-normalized vector per input text,
// preserving input order.
func (p *Provider) GenerateEmbeddings(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text)
	}
	return vectors, nil
}

// deterministicVector derives a fixed-size vector from an xorshift64* PRNG
// seeded by the SHA-256 of the text.
func deterministicVector(text string) []float64 {
	sum := sha256.Sum256([]byte(text))
	seed := binary.LittleEndian.Uint64(sum[:8])
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	x := seed

	out := make([]float64, embedDim)
	for i := 0; i < embedDim; i++ {
		x ^= x >> 12
		x ^= x << 25
		x ^= x >> 27
		x *= 0x2545F4914F6CDD1D

		mantissa := (x >> 11) & ((1 << 53) - 1)
		out[i] = 2.0*(float64(mantissa)/float64(1<<53)) - 1.0
	}

	var normSq float64
	for _, v := range out {
		normSq += v * v
	}
	if n := math.Sqrt(normSq); n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
