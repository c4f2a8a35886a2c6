package outbound

import (
	"context"

	"docingest/internal/domain/entity"
	"docingest/internal/domain/valueobject"

	"github.com/google/uuid"
)

// IngestionJobRepository persists job state. Every write is durable before
// ProcessJob returns, so status, stage and error classification survive a
// caller crash.
type IngestionJobRepository interface {
	Save(ctx context.Context, job *entity.IngestionJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.IngestionJob, error)
	UpdateStage(ctx context.Context, jobID uuid.UUID, stage valueobject.JobStage) error
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status valueobject.JobStatus, metrics *entity.JobMetrics, message string) error
	SetErrorCode(ctx context.Context, jobID uuid.UUID, code valueobject.ErrorCode) error
	Heartbeat(ctx context.Context, jobID uuid.UUID) error
	// HandleFailure records the last error and attempt bookkeeping consumed
	// by the external scheduler's retry policy.
	HandleFailure(ctx context.Context, job *entity.IngestionJob, failure error) error
}

// DocumentRepository exposes the document-version reads and page writes the
// pipeline needs. The wider relational schema is out of scope.
type DocumentRepository interface {
	GetTitle(ctx context.Context, versionID uuid.UUID) (string, error)
	// IsDeleted is the cooperative cancellation check polled at pipeline
	// safe points.
	IsDeleted(ctx context.Context, versionID uuid.UUID) (bool, error)
	SavePages(ctx context.Context, versionID uuid.UUID, pages []ParsedPage) error
}

// ChunkRecord pairs one chunk with its embedding for persistence. Records
// are positional: record i corresponds to chunk i.
type ChunkRecord struct {
	Chunk     Chunk
	Embedding *EmbeddingResult
}

// ChunkStorageRepository persists chunks with their embeddings.
type ChunkStorageRepository interface {
	SaveChunksWithEmbeddings(ctx context.Context, versionID, tenantID uuid.UUID, records []ChunkRecord) error
}
