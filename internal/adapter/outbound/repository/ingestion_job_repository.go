package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docingest/internal/domain/entity"
	"docingest/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLIngestionJobRepository implements the IngestionJobRepository
// interface.
type PostgreSQLIngestionJobRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLIngestionJobRepository creates a new PostgreSQL ingestion job
// repository.
func NewPostgreSQLIngestionJobRepository(pool *pgxpool.Pool) *PostgreSQLIngestionJobRepository {
	return &PostgreSQLIngestionJobRepository{pool: pool}
}

// Save upserts an ingestion job. Upsert keeps Save idempotent under queue
// redelivery of the same job.
func (r *PostgreSQLIngestionJobRepository) Save(ctx context.Context, job *entity.IngestionJob) error {
	if job == nil {
		return ErrInvalidArgument
	}

	metricsJSON, err := marshalMetrics(job.Metrics())
	if err != nil {
		return fmt.Errorf("marshal job metrics: %w", err)
	}

	query := `
		INSERT INTO docingest.ingestion_jobs (
			id, document_version_id, tenant_id, mime_type, source_type,
			storage_key, status, stage, error_code, error_message,
			attempts, max_attempts, metrics, heartbeat_at, started_at,
			completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			attempts = EXCLUDED.attempts,
			metrics = EXCLUDED.metrics,
			heartbeat_at = EXCLUDED.heartbeat_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`

	qi := GetQueryInterface(ctx, r.pool)
	_, err = qi.Exec(ctx, query,
		job.ID(),
		job.DocumentVersionID(),
		job.TenantID(),
		job.Source().MimeType(),
		job.Source().SourceType().String(),
		job.Source().StorageKey(),
		job.Status().String(),
		job.Stage().String(),
		errorCodeString(job.ErrorCode()),
		job.ErrorMessage(),
		job.Attempts(),
		job.MaxAttempts(),
		metricsJSON,
		job.HeartbeatAt(),
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save ingestion job")
	}

	return nil
}

// FindByID finds an ingestion job by its ID. Returns nil when no job exists.
func (r *PostgreSQLIngestionJobRepository) FindByID(
	ctx context.Context,
	id uuid.UUID,
) (*entity.IngestionJob, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT id, document_version_id, tenant_id, mime_type, source_type,
			   storage_key, status, stage, error_code, error_message,
			   attempts, max_attempts, metrics, heartbeat_at, started_at,
			   completed_at, created_at, updated_at
		FROM docingest.ingestion_jobs
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	row := qi.QueryRow(ctx, query, id)

	var documentVersionID, tenantID uuid.UUID
	var mimeType, sourceTypeStr, storageKey, statusStr, stageStr string
	var errorCodeStr, errorMessage *string
	var attempts, maxAttempts int
	var metricsJSON []byte
	var heartbeatAt, startedAt, completedAt *time.Time
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&id, &documentVersionID, &tenantID, &mimeType, &sourceTypeStr,
		&storageKey, &statusStr, &stageStr, &errorCodeStr, &errorMessage,
		&attempts, &maxAttempts, &metricsJSON, &heartbeatAt, &startedAt,
		&completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, WrapError(err, "find ingestion job by ID")
	}

	sourceType, err := valueobject.NewSourceType(sourceTypeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored source type: %w", err)
	}
	source, err := valueobject.NewSourceDescriptor(mimeType, sourceType, storageKey)
	if err != nil {
		return nil, fmt.Errorf("invalid stored source descriptor: %w", err)
	}
	status, err := valueobject.NewJobStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored job status: %w", err)
	}
	stage, err := valueobject.NewJobStage(stageStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored job stage: %w", err)
	}

	var errorCode *valueobject.ErrorCode
	if errorCodeStr != nil && *errorCodeStr != "" {
		code := valueobject.ErrorCode(*errorCodeStr)
		errorCode = &code
	}

	var metrics *entity.JobMetrics
	if len(metricsJSON) > 0 {
		metrics = &entity.JobMetrics{}
		if err := json.Unmarshal(metricsJSON, metrics); err != nil {
			return nil, fmt.Errorf("unmarshal job metrics: %w", err)
		}
	}

	return entity.RestoreIngestionJob(
		id, documentVersionID, tenantID,
		source, status, stage,
		errorCode, errorMessage,
		attempts, maxAttempts,
		metrics,
		heartbeatAt, startedAt, completedAt,
		createdAt, updatedAt,
	), nil
}

// UpdateStage records the current pipeline stage.
func (r *PostgreSQLIngestionJobRepository) UpdateStage(
	ctx context.Context,
	jobID uuid.UUID,
	stage valueobject.JobStage,
) error {
	if jobID == uuid.Nil {
		return ErrInvalidArgument
	}

	query := `
		UPDATE docingest.ingestion_jobs
		SET stage = $2, updated_at = NOW()
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, jobID, stage.String())
	if err != nil {
		return WrapError(err, "update ingestion job stage")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus records the operational status plus optional terminal metrics
// and message. Terminal statuses also stamp completed_at.
func (r *PostgreSQLIngestionJobRepository) UpdateStatus(
	ctx context.Context,
	jobID uuid.UUID,
	status valueobject.JobStatus,
	metrics *entity.JobMetrics,
	message string,
) error {
	if jobID == uuid.Nil {
		return ErrInvalidArgument
	}

	metricsJSON, err := marshalMetrics(metrics)
	if err != nil {
		return fmt.Errorf("marshal job metrics: %w", err)
	}

	var messageArg *string
	if message != "" {
		messageArg = &message
	}

	query := `
		UPDATE docingest.ingestion_jobs
		SET status = $2,
			metrics = COALESCE($3, metrics),
			error_message = $4,
			completed_at = CASE WHEN $5 THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, jobID, status.String(), metricsJSON, messageArg, status.IsTerminal())
	if err != nil {
		return WrapError(err, "update ingestion job status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetErrorCode records the failure classification.
func (r *PostgreSQLIngestionJobRepository) SetErrorCode(
	ctx context.Context,
	jobID uuid.UUID,
	code valueobject.ErrorCode,
) error {
	if jobID == uuid.Nil {
		return ErrInvalidArgument
	}

	query := `
		UPDATE docingest.ingestion_jobs
		SET error_code = $2, updated_at = NOW()
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, jobID, code.String())
	if err != nil {
		return WrapError(err, "set ingestion job error code")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Heartbeat stamps the liveness timestamp read by the external watchdog.
func (r *PostgreSQLIngestionJobRepository) Heartbeat(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return ErrInvalidArgument
	}

	query := `
		UPDATE docingest.ingestion_jobs
		SET heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, jobID)
	if err != nil {
		return WrapError(err, "heartbeat ingestion job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HandleFailure records the last error and attempt bookkeeping consumed by
// the external scheduler's retry policy.
func (r *PostgreSQLIngestionJobRepository) HandleFailure(
	ctx context.Context,
	job *entity.IngestionJob,
	failure error,
) error {
	if job == nil {
		return ErrInvalidArgument
	}

	message := ""
	if failure != nil {
		message = failure.Error()
	}

	query := `
		UPDATE docingest.ingestion_jobs
		SET attempts = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, job.ID(), job.Attempts(), message)
	if err != nil {
		return WrapError(err, "handle ingestion job failure")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalMetrics(metrics *entity.JobMetrics) ([]byte, error) {
	if metrics == nil {
		return nil, nil
	}
	return json.Marshal(metrics)
}

func errorCodeString(code *valueobject.ErrorCode) *string {
	if code == nil {
		return nil
	}
	s := code.String()
	return &s
}
