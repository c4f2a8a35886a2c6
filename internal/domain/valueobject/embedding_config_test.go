package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultEmbeddingConfig().Validate())

	invalid := []EmbeddingConfig{
		{Model: "m", Dimensions: 768, PreprocessVersion: "v1"},
		{Provider: "p", Dimensions: 768, PreprocessVersion: "v1"},
		{Provider: "p", Model: "m", PreprocessVersion: "v1"},
		{Provider: "p", Model: "m", Dimensions: -1, PreprocessVersion: "v1"},
		{Provider: "p", Model: "m", Dimensions: 768},
	}
	for _, config := range invalid {
		assert.Error(t, config.Validate(), "%+v", config)
	}
}

func TestEmbeddingConfig_Comparable(t *testing.T) {
	base := DefaultEmbeddingConfig()

	assert.True(t, base.Comparable(DefaultEmbeddingConfig()))

	bumped := base
	bumped.PreprocessVersion = "v2"
	assert.False(t, base.Comparable(bumped))

	otherModel := base
	otherModel.Model = "gemini-embedding-002"
	assert.False(t, base.Comparable(otherModel))
}
