package valueobject

import "fmt"

// JobStatus represents the operational state of an ingestion job. Status
// describes where processing stopped; the error code describes why.
type JobStatus string

// Job status constants.
const (
	JobStatusUploaded  JobStatus = "uploaded"
	JobStatusQueued    JobStatus = "queued"
	JobStatusParsing   JobStatus = "parsing"
	JobStatusChunking  JobStatus = "chunking"
	JobStatusEmbedding JobStatus = "embedding"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// validJobStatuses contains all valid job statuses.
var validJobStatuses = map[JobStatus]bool{
	JobStatusUploaded:  true,
	JobStatusQueued:    true,
	JobStatusParsing:   true,
	JobStatusChunking:  true,
	JobStatusEmbedding: true,
	JobStatusDone:      true,
	JobStatusFailed:    true,
	JobStatusCancelled: true,
}

// NewJobStatus creates a new JobStatus with validation.
func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !validJobStatuses[s] {
		return "", fmt.Errorf("invalid job status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state. Only
// terminal states may persist across process restarts; an in-flight status
// left behind by a crashed worker is reset by an external watchdog.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	transitions := map[JobStatus][]JobStatus{
		JobStatusUploaded:  {JobStatusQueued, JobStatusParsing, JobStatusFailed, JobStatusCancelled},
		JobStatusQueued:    {JobStatusParsing, JobStatusFailed, JobStatusCancelled},
		JobStatusParsing:   {JobStatusChunking, JobStatusDone, JobStatusFailed, JobStatusCancelled},
		JobStatusChunking:  {JobStatusEmbedding, JobStatusDone, JobStatusFailed, JobStatusCancelled},
		JobStatusEmbedding: {JobStatusDone, JobStatusFailed, JobStatusCancelled},
		// Terminal states cannot transition
		JobStatusDone:      {},
		JobStatusFailed:    {},
		JobStatusCancelled: {},
	}

	validTransitions, exists := transitions[s]
	if !exists {
		return false
	}

	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllJobStatuses returns all valid job statuses.
func AllJobStatuses() []JobStatus {
	statuses := make([]JobStatus, 0, len(validJobStatuses))
	for status := range validJobStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
