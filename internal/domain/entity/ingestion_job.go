package entity

import (
	"time"

	"docingest/internal/domain/valueobject"

	"github.com/google/uuid"
)

// JobMetrics is the opaque structured payload recorded against a job when it
// reaches a terminal state.
type JobMetrics struct {
	PageCount   int   `json:"page_count"`
	ChunkCount  int   `json:"chunk_count"`
	WordCount   int   `json:"word_count"`
	DurationMs  int64 `json:"duration_ms"`
	DownloadMs  int64 `json:"download_ms,omitempty"`
	ParseMs     int64 `json:"parse_ms,omitempty"`
	ChunkMs     int64 `json:"chunk_ms,omitempty"`
	EmbedMs     int64 `json:"embed_ms,omitempty"`
	EmbedBytes  int64 `json:"embed_bytes,omitempty"`
	BatchesSent int   `json:"batches_sent,omitempty"`
}

// IngestionJob represents one unit of ingestion work for a document version.
// Only the processor executing a given attempt may mutate a job; exclusivity
// is granted by the external queue, not enforced here.
type IngestionJob struct {
	id                uuid.UUID
	documentVersionID uuid.UUID
	tenantID          uuid.UUID
	source            valueobject.SourceDescriptor
	status            valueobject.JobStatus
	stage             valueobject.JobStage
	errorCode         *valueobject.ErrorCode
	errorMessage      *string
	attempts          int
	maxAttempts       int
	metrics           *JobMetrics
	heartbeatAt       *time.Time
	startedAt         *time.Time
	completedAt       *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// NewIngestionJob creates a new IngestionJob in queued status.
func NewIngestionJob(
	documentVersionID, tenantID uuid.UUID,
	source valueobject.SourceDescriptor,
	maxAttempts int,
) *IngestionJob {
	now := time.Now()
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &IngestionJob{
		id:                uuid.New(),
		documentVersionID: documentVersionID,
		tenantID:          tenantID,
		source:            source,
		status:            valueobject.JobStatusQueued,
		stage:             valueobject.JobStageDownloading,
		maxAttempts:       maxAttempts,
		createdAt:         now,
		updatedAt:         now,
	}
}

// RestoreIngestionJob creates an IngestionJob entity from stored data.
func RestoreIngestionJob(
	id, documentVersionID, tenantID uuid.UUID,
	source valueobject.SourceDescriptor,
	status valueobject.JobStatus,
	stage valueobject.JobStage,
	errorCode *valueobject.ErrorCode,
	errorMessage *string,
	attempts, maxAttempts int,
	metrics *JobMetrics,
	heartbeatAt, startedAt, completedAt *time.Time,
	createdAt, updatedAt time.Time,
) *IngestionJob {
	return &IngestionJob{
		id:                id,
		documentVersionID: documentVersionID,
		tenantID:          tenantID,
		source:            source,
		status:            status,
		stage:             stage,
		errorCode:         errorCode,
		errorMessage:      errorMessage,
		attempts:          attempts,
		maxAttempts:       maxAttempts,
		metrics:           metrics,
		heartbeatAt:       heartbeatAt,
		startedAt:         startedAt,
		completedAt:       completedAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the job ID.
func (j *IngestionJob) ID() uuid.UUID {
	return j.id
}

// DocumentVersionID returns the target document version.
func (j *IngestionJob) DocumentVersionID() uuid.UUID {
	return j.documentVersionID
}

// TenantID returns the owning tenant.
func (j *IngestionJob) TenantID() uuid.UUID {
	return j.tenantID
}

// Source returns the source descriptor.
func (j *IngestionJob) Source() valueobject.SourceDescriptor {
	return j.source
}

// Status returns the current operational status.
func (j *IngestionJob) Status() valueobject.JobStatus {
	return j.status
}

// Stage returns the current pipeline stage.
func (j *IngestionJob) Stage() valueobject.JobStage {
	return j.stage
}

// ErrorCode returns the failure classification, if any.
func (j *IngestionJob) ErrorCode() *valueobject.ErrorCode {
	return j.errorCode
}

// ErrorMessage returns the human-readable failure message, if any.
func (j *IngestionJob) ErrorMessage() *string {
	return j.errorMessage
}

// Attempts returns how many times this job has been attempted.
func (j *IngestionJob) Attempts() int {
	return j.attempts
}

// MaxAttempts returns the retry budget owned by the external scheduler.
func (j *IngestionJob) MaxAttempts() int {
	return j.maxAttempts
}

// Metrics returns the recorded metrics payload, if any.
func (j *IngestionJob) Metrics() *JobMetrics {
	return j.metrics
}

// HeartbeatAt returns the last liveness timestamp.
func (j *IngestionJob) HeartbeatAt() *time.Time {
	return j.heartbeatAt
}

// StartedAt returns the attempt start timestamp.
func (j *IngestionJob) StartedAt() *time.Time {
	return j.startedAt
}

// CompletedAt returns the terminal timestamp.
func (j *IngestionJob) CompletedAt() *time.Time {
	return j.completedAt
}

// CreatedAt returns the creation timestamp.
func (j *IngestionJob) CreatedAt() time.Time {
	return j.createdAt
}

// UpdatedAt returns the last update timestamp.
func (j *IngestionJob) UpdatedAt() time.Time {
	return j.updatedAt
}

// IsTerminal returns true if the job is in a terminal state.
func (j *IngestionJob) IsTerminal() bool {
	return j.status.IsTerminal()
}

// Start marks the attempt as started and moves the stage to downloading.
// Re-entry after a watchdog reset is tolerated: a non-terminal stage left by
// a crashed attempt is overwritten rather than rejected.
func (j *IngestionJob) Start() error {
	if j.status.IsTerminal() {
		return NewDomainError("cannot start job in terminal status", "INVALID_STATUS_TRANSITION")
	}
	now := time.Now()
	j.status = valueobject.JobStatusParsing
	j.stage = valueobject.JobStageDownloading
	j.attempts++
	j.startedAt = &now
	j.updatedAt = now
	return nil
}

// AdvanceStage moves the job to a later pipeline stage, mirroring it into the
// status field for the stages that double as operational states.
func (j *IngestionJob) AdvanceStage(stage valueobject.JobStage) error {
	if !j.stage.CanTransitionTo(stage) {
		return NewDomainError("stage transitions must be strictly forward", "INVALID_STAGE_TRANSITION")
	}
	j.stage = stage
	switch stage {
	case valueobject.JobStageParsing:
		j.status = valueobject.JobStatusParsing
	case valueobject.JobStageChunking:
		j.status = valueobject.JobStatusChunking
	case valueobject.JobStageEmbedding:
		j.status = valueobject.JobStatusEmbedding
	}
	j.updatedAt = time.Now()
	return nil
}

// Complete marks the job done and clears any previous error classification.
func (j *IngestionJob) Complete(metrics JobMetrics) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusDone) {
		return NewDomainError("cannot complete job in current status", "INVALID_STATUS_TRANSITION")
	}
	now := time.Now()
	j.status = valueobject.JobStatusDone
	j.stage = valueobject.JobStageDone
	j.errorCode = nil
	j.errorMessage = nil
	j.metrics = &metrics
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// Fail marks the job failed with a classification and message.
func (j *IngestionJob) Fail(code valueobject.ErrorCode, message string) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusFailed) {
		return NewDomainError("cannot fail job in current status", "INVALID_STATUS_TRANSITION")
	}
	now := time.Now()
	j.status = valueobject.JobStatusFailed
	j.stage = valueobject.JobStageFailed
	j.errorCode = &code
	j.errorMessage = &message
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// Cancel marks the job cancelled. Cancellation is cooperative and expected
// (the owning document was deleted mid-flight), so no error code is set.
func (j *IngestionJob) Cancel() error {
	if !j.status.CanTransitionTo(valueobject.JobStatusCancelled) {
		return NewDomainError("cannot cancel job in current status", "INVALID_STATUS_TRANSITION")
	}
	now := time.Now()
	j.status = valueobject.JobStatusCancelled
	j.stage = valueobject.JobStageCancelled
	j.errorCode = nil
	j.errorMessage = nil
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// Heartbeat records a liveness timestamp for the external watchdog.
func (j *IngestionJob) Heartbeat() {
	now := time.Now()
	j.heartbeatAt = &now
	j.updatedAt = now
}

// HasAttemptsLeft reports whether the external scheduler may re-enqueue this
// job after a failure.
func (j *IngestionJob) HasAttemptsLeft() bool {
	return j.attempts < j.maxAttempts
}

// Equal compares two IngestionJob entities by identity.
func (j *IngestionJob) Equal(other *IngestionJob) bool {
	if other == nil {
		return false
	}
	return j.id == other.id
}
