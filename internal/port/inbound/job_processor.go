package inbound

import (
	"context"
	"time"

	"docingest/internal/domain/entity"
	"docingest/internal/domain/valueobject"
)

// ProcessResult is the structured outcome of a single job execution attempt.
// ProcessJob never returns an error to the caller; every failure is captured
// here and persisted on the job record before the call returns.
type ProcessResult struct {
	Success    bool
	PageCount  int
	ChunkCount int
	WordCount  int
	Duration   time.Duration
	Status     valueobject.JobStatus
	ErrorCode  *valueobject.ErrorCode
	Message    string
}

// JobProcessor executes exactly one ingestion job end-to-end under a bounded
// wall-clock budget.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *entity.IngestionJob) ProcessResult
}

// ConsumerHealthStatus reports the health of a message consumer.
type ConsumerHealthStatus struct {
	Subject         string
	QueueGroup      string
	IsRunning       bool
	IsConnected     bool
	MessagesHandled int64
	ErrorCount      int64
	LastError       string
	LastMessageTime time.Time
}

// Consumer consumes ingestion job messages and hands them to a JobProcessor.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() ConsumerHealthStatus
}

// WorkerService owns the consumer lifecycle and graceful shutdown.
type WorkerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	AddConsumer(consumer Consumer) error
}
