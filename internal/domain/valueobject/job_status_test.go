package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobStatus(t *testing.T) {
	status, err := NewJobStatus("parsing")
	require.NoError(t, err)
	assert.Equal(t, JobStatusParsing, status)

	_, err = NewJobStatus("exploded")
	assert.Error(t, err)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusDone.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())

	assert.False(t, JobStatusQueued.IsTerminal())
	assert.False(t, JobStatusParsing.IsTerminal())
	assert.False(t, JobStatusChunking.IsTerminal())
	assert.False(t, JobStatusEmbedding.IsTerminal())
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusQueued, JobStatusParsing, true},
		{JobStatusParsing, JobStatusChunking, true},
		{JobStatusChunking, JobStatusEmbedding, true},
		{JobStatusEmbedding, JobStatusDone, true},

		// Empty documents finish before the embedding status is reached.
		{JobStatusParsing, JobStatusDone, true},
		{JobStatusChunking, JobStatusDone, true},

		// Any in-flight status may fail or be cancelled.
		{JobStatusQueued, JobStatusFailed, true},
		{JobStatusParsing, JobStatusCancelled, true},
		{JobStatusEmbedding, JobStatusCancelled, true},

		// No backward or skipping transitions.
		{JobStatusChunking, JobStatusParsing, false},
		{JobStatusQueued, JobStatusDone, false},

		// Terminal states are final.
		{JobStatusDone, JobStatusParsing, false},
		{JobStatusFailed, JobStatusQueued, false},
		{JobStatusCancelled, JobStatusDone, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
