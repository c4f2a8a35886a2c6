package valueobject

import (
	"errors"
	"fmt"
)

// EmbeddingConfig is the versioned provenance configuration stamped onto
// every embedding. Two vectors are safe to mix in similarity search only if
// provider, model, dimensions and preprocess version are all equal; bumping
// PreprocessVersion is the mechanism that invalidates stale vectors after a
// normalization change. Treat a bump as a deliberate, audited change.
type EmbeddingConfig struct {
	Provider          string `mapstructure:"provider"           yaml:"provider"`
	Model             string `mapstructure:"model"              yaml:"model"`
	Dimensions        int    `mapstructure:"dimensions"         yaml:"dimensions"`
	PreprocessVersion string `mapstructure:"preprocess_version" yaml:"preprocess_version"`
}

// DefaultEmbeddingConfig returns the current process-wide embedding
// provenance configuration.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:          "gemini",
		Model:             "gemini-embedding-001",
		Dimensions:        768,
		PreprocessVersion: "v1",
	}
}

// Validate checks that every provenance field is set.
func (c EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Dimensions)
	}
	if c.PreprocessVersion == "" {
		return errors.New("embedding preprocess version is required")
	}
	return nil
}

// Comparable reports whether vectors produced under c and other are safe to
// compare in similarity search.
func (c EmbeddingConfig) Comparable(other EmbeddingConfig) bool {
	return c.Provider == other.Provider &&
		c.Model == other.Model &&
		c.Dimensions == other.Dimensions &&
		c.PreprocessVersion == other.PreprocessVersion
}
