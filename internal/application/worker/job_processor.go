package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"docingest/internal/application/common/slogger"
	"docingest/internal/domain/entity"
	"docingest/internal/domain/service"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/inbound"
	"docingest/internal/port/outbound"
)

const (
	// DefaultJobTimeout is the wall-clock budget for one job execution
	// attempt.
	DefaultJobTimeout = 300 * time.Second

	// untitledFallback prefixes chunks of documents that have no title.
	// Every chunk of a document gets the same header, title or fallback,
	// so embeddings stay comparable within the document.
	untitledFallback = "Untitled Document"
)

// Config tunes one job processor instance.
type Config struct {
	JobTimeout     time.Duration
	Chunking       outbound.ChunkingConfig
	EmbedBatchSize int
}

// JobProcessor executes ingestion jobs end to end. It implements
// inbound.JobProcessor: ProcessJob never returns an error; every outcome is
// persisted on the job record and reported in the ProcessResult.
type JobProcessor struct {
	blobStorage outbound.BlobStorage
	parser      outbound.ParserRouter
	qualityGate *service.QualityGate
	chunker     outbound.ChunkingStrategy
	embedder    outbound.EmbeddingService
	jobRepo     outbound.IngestionJobRepository
	docRepo     outbound.DocumentRepository
	chunkRepo   outbound.ChunkStorageRepository
	metrics     *PipelineMetrics
	config      Config
}

// NewJobProcessor creates a job processor. The metrics collector may be nil.
func NewJobProcessor(
	blobStorage outbound.BlobStorage,
	parser outbound.ParserRouter,
	qualityGate *service.QualityGate,
	chunker outbound.ChunkingStrategy,
	embedder outbound.EmbeddingService,
	jobRepo outbound.IngestionJobRepository,
	docRepo outbound.DocumentRepository,
	chunkRepo outbound.ChunkStorageRepository,
	metrics *PipelineMetrics,
	config Config,
) (*JobProcessor, error) {
	switch {
	case blobStorage == nil:
		return nil, errors.New("blob storage cannot be nil")
	case parser == nil:
		return nil, errors.New("parser router cannot be nil")
	case qualityGate == nil:
		return nil, errors.New("quality gate cannot be nil")
	case chunker == nil:
		return nil, errors.New("chunking strategy cannot be nil")
	case embedder == nil:
		return nil, errors.New("embedding service cannot be nil")
	case jobRepo == nil:
		return nil, errors.New("job repository cannot be nil")
	case docRepo == nil:
		return nil, errors.New("document repository cannot be nil")
	case chunkRepo == nil:
		return nil, errors.New("chunk repository cannot be nil")
	}

	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}

	return &JobProcessor{
		blobStorage: blobStorage,
		parser:      parser,
		qualityGate: qualityGate,
		chunker:     chunker,
		embedder:    embedder,
		jobRepo:     jobRepo,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		metrics:     metrics,
		config:      config,
	}, nil
}

// pipelineHalt is a sentinel carried by pipeline phases to abort the run with
// an already-decided outcome.
type pipelineHalt struct {
	cancelled bool
	code      valueobject.ErrorCode
	message   string
}

func (h *pipelineHalt) Error() string {
	if h.cancelled {
		return "job cancelled: " + h.message
	}
	return fmt.Sprintf("job failed (%s): %s", h.code, h.message)
}

func halt(code valueobject.ErrorCode, format string, args ...any) *pipelineHalt {
	return &pipelineHalt{code: code, message: fmt.Sprintf(format, args...)}
}

func haltCancelled(reason string) *pipelineHalt {
	return &pipelineHalt{cancelled: true, message: reason}
}

// ProcessJob executes one job under the wall-clock budget. The deadline is
// enforced cooperatively: every phase runs under the deadline context and the
// timer races the pipeline through it, so a job stuck in a slow phase is cut
// off at the next blocking call or safe point.
func (p *JobProcessor) ProcessJob(ctx context.Context, job *entity.IngestionJob) inbound.ProcessResult {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	// Terminal writes must survive the expired deadline that caused them.
	persistCtx := context.WithoutCancel(runCtx)

	metrics := &entity.JobMetrics{}

	var haltErr *pipelineHalt
	func() {
		defer func() {
			if r := recover(); r != nil {
				slogger.Error(runCtx, "Job processing panicked", slogger.Fields{
					"job_id": job.ID().String(),
					"panic":  fmt.Sprint(r),
					"stack":  string(debug.Stack()),
				})
				haltErr = halt(valueobject.ErrorCodeUnknown, "internal error: %v", r)
			}
		}()
		haltErr = p.run(runCtx, job, metrics)
	}()

	metrics.DurationMs = time.Since(start).Milliseconds()
	return p.settle(persistCtx, job, haltErr, metrics, time.Since(start))
}

// run executes the pipeline phases. A nil return means the job completed;
// a pipelineHalt describes cancellation or failure.
func (p *JobProcessor) run(ctx context.Context, job *entity.IngestionJob, metrics *entity.JobMetrics) *pipelineHalt {
	if err := job.Start(); err != nil {
		return halt(valueobject.ErrorCodeUnknown, "cannot start job: %v", err)
	}
	if err := p.jobRepo.Save(ctx, job); err != nil {
		return halt(valueobject.ErrorCodeDatabaseError, "persist job start: %v", err)
	}

	source := job.Source()
	if !p.parser.IsSupported(source.MimeType(), source.SourceType().String()) {
		return halt(valueobject.ErrorCodeUnsupportedFormat,
			"no parser for %s documents from %s source", source.MimeType(), source.SourceType())
	}

	// Phase: download
	downloadStart := time.Now()
	data, err := p.blobStorage.Download(ctx, source.StorageKey())
	if err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeStorageError, "download %s", source.StorageKey())
	}
	metrics.DownloadMs = time.Since(downloadStart).Milliseconds()
	p.heartbeat(ctx, job)

	// Safe point: deletion check before parsing
	if h := p.checkDeleted(ctx, job, "before parsing"); h != nil {
		return h
	}

	// Phase: parse
	if h := p.advance(ctx, job, valueobject.JobStageParsing); h != nil {
		return h
	}
	parseStart := time.Now()
	parsed, err := p.parser.Parse(ctx, data, source.MimeType(), source.SourceType().String())
	if err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeParseError, "parse %s", source.MimeType())
	}
	metrics.ParseMs = time.Since(parseStart).Milliseconds()
	metrics.PageCount = parsed.TotalPages
	metrics.WordCount = parsed.TotalWords
	p.heartbeat(ctx, job)

	// Phase: quality gate
	report := p.qualityGate.Check(toPageSamples(parsed.Pages))
	if !report.Passed {
		code := valueobject.ErrorCodeEmptyExtraction
		if report.ErrorCode != nil {
			code = *report.ErrorCode
		}
		return halt(code, "quality gate rejected extraction: %v", report.Issues)
	}
	for _, issue := range report.Issues {
		slogger.Warn(ctx, "Quality gate warning", slogger.Fields{
			"job_id": job.ID().String(),
			"issue":  issue,
		})
	}

	if err := p.docRepo.SavePages(ctx, job.DocumentVersionID(), parsed.Pages); err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeDatabaseError, "persist pages")
	}

	// Safe point: deletion check before chunking
	if h := p.checkDeleted(ctx, job, "before chunking"); h != nil {
		return h
	}

	// Phase: chunk
	if h := p.advance(ctx, job, valueobject.JobStageChunking); h != nil {
		return h
	}
	chunkStart := time.Now()
	chunks := p.chunker.Chunk(parsed.Pages, p.config.Chunking)
	metrics.ChunkMs = time.Since(chunkStart).Milliseconds()
	metrics.ChunkCount = len(chunks)
	p.heartbeat(ctx, job)

	// An empty document is a valid outcome, not a failure.
	if len(chunks) == 0 {
		return nil
	}

	// Safe point: deletion check before embedding
	if h := p.checkDeleted(ctx, job, "before embedding"); h != nil {
		return h
	}

	// Phase: embed
	if h := p.advance(ctx, job, valueobject.JobStageEmbedding); h != nil {
		return h
	}
	embedStart := time.Now()
	results, h := p.embedChunks(ctx, job, chunks, metrics)
	if h != nil {
		return h
	}
	metrics.EmbedMs = time.Since(embedStart).Milliseconds()
	p.heartbeat(ctx, job)

	// Safe point: deletion check before the final persist
	if h := p.checkDeleted(ctx, job, "before final persist"); h != nil {
		return h
	}

	records := make([]outbound.ChunkRecord, len(chunks))
	for i := range chunks {
		records[i] = outbound.ChunkRecord{Chunk: chunks[i], Embedding: results[i]}
	}
	if err := p.chunkRepo.SaveChunksWithEmbeddings(ctx, job.DocumentVersionID(), job.TenantID(), records); err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeDatabaseError, "persist chunks")
	}

	return nil
}

// embedChunks builds the embedding inputs and calls the embedding service.
// Each input is the document title and the chunk text; documents without a
// title share a fixed fallback header.
func (p *JobProcessor) embedChunks(
	ctx context.Context,
	job *entity.IngestionJob,
	chunks []outbound.Chunk,
	metrics *entity.JobMetrics,
) ([]*outbound.EmbeddingResult, *pipelineHalt) {
	title, err := p.docRepo.GetTitle(ctx, job.DocumentVersionID())
	if err != nil {
		return nil, p.classifyHalt(ctx, err, valueobject.ErrorCodeDatabaseError, "get document title")
	}
	if title == "" {
		title = untitledFallback
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = title + "\n\n" + chunk.Content
		metrics.EmbedBytes += int64(len(texts[i]))
	}

	batchSize := p.config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = outbound.DefaultEmbedBatchSize
	}
	metrics.BatchesSent = (len(texts) + batchSize - 1) / batchSize

	embedCtx := outbound.WithTenant(ctx, job.TenantID().String())
	results, err := p.embedder.EmbedBatch(embedCtx, texts, batchSize)
	if err != nil {
		return nil, p.classifyHalt(ctx, err, valueobject.ErrorCodeEmbeddingError, "embed %d chunks", len(chunks))
	}
	if len(results) != len(chunks) {
		return nil, halt(valueobject.ErrorCodeEmbeddingError,
			"embedding service returned %d results for %d chunks", len(results), len(chunks))
	}
	return results, nil
}

// settle applies the terminal state transition, persists it, records metrics
// and builds the ProcessResult.
func (p *JobProcessor) settle(
	ctx context.Context,
	job *entity.IngestionJob,
	haltErr *pipelineHalt,
	metrics *entity.JobMetrics,
	duration time.Duration,
) inbound.ProcessResult {
	result := inbound.ProcessResult{
		PageCount:  metrics.PageCount,
		ChunkCount: metrics.ChunkCount,
		WordCount:  metrics.WordCount,
		Duration:   duration,
	}

	switch {
	case haltErr == nil:
		if err := job.Complete(*metrics); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to mark job done", slogger.Fields{
				"job_id": job.ID().String(),
			})
		}
		p.persistTerminal(ctx, job, metrics, "")
		result.Success = true
		result.Status = valueobject.JobStatusDone

	case haltErr.cancelled:
		if err := job.Cancel(); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to mark job cancelled", slogger.Fields{
				"job_id": job.ID().String(),
			})
		}
		p.persistTerminal(ctx, job, metrics, haltErr.message)
		result.Status = valueobject.JobStatusCancelled
		result.Message = haltErr.message

	default:
		if err := job.Fail(haltErr.code, haltErr.message); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to mark job failed", slogger.Fields{
				"job_id": job.ID().String(),
			})
		}
		if err := p.jobRepo.SetErrorCode(ctx, job.ID(), haltErr.code); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to persist error code", slogger.Fields{
				"job_id": job.ID().String(),
			})
		}
		p.persistTerminal(ctx, job, metrics, haltErr.message)
		if err := p.jobRepo.HandleFailure(ctx, job, haltErr); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to record failure bookkeeping", slogger.Fields{
				"job_id": job.ID().String(),
			})
		}
		result.Status = valueobject.JobStatusFailed
		code := haltErr.code
		result.ErrorCode = &code
		result.Message = haltErr.message
	}

	errorCode := ""
	if result.ErrorCode != nil {
		errorCode = result.ErrorCode.String()
	}
	p.metrics.RecordJob(ctx, result.Status.String(), errorCode, duration, result.PageCount, result.ChunkCount)

	return result
}

// persistTerminal writes the terminal stage and status. Persistence failures
// here are logged, not raised: the job outcome is already decided.
func (p *JobProcessor) persistTerminal(
	ctx context.Context,
	job *entity.IngestionJob,
	metrics *entity.JobMetrics,
	message string,
) {
	if err := p.jobRepo.UpdateStage(ctx, job.ID(), job.Stage()); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist terminal stage", slogger.Fields{
			"job_id": job.ID().String(),
		})
	}
	if err := p.jobRepo.UpdateStatus(ctx, job.ID(), job.Status(), metrics, message); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist terminal status", slogger.Fields{
			"job_id": job.ID().String(),
		})
	}
}

// advance moves the job to the next stage and persists it.
func (p *JobProcessor) advance(
	ctx context.Context,
	job *entity.IngestionJob,
	stage valueobject.JobStage,
) *pipelineHalt {
	if err := job.AdvanceStage(stage); err != nil {
		return halt(valueobject.ErrorCodeUnknown, "advance to %s: %v", stage, err)
	}
	if err := p.jobRepo.UpdateStage(ctx, job.ID(), stage); err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeDatabaseError, "persist stage %s", stage)
	}
	return nil
}

// checkDeleted polls the cooperative cancellation signal. A deleted owning
// document cancels the job without an error code.
func (p *JobProcessor) checkDeleted(ctx context.Context, job *entity.IngestionJob, point string) *pipelineHalt {
	deleted, err := p.docRepo.IsDeleted(ctx, job.DocumentVersionID())
	if err != nil {
		return p.classifyHalt(ctx, err, valueobject.ErrorCodeDatabaseError, "deletion check %s", point)
	}
	if deleted {
		return haltCancelled("document deleted " + point)
	}
	return nil
}

// heartbeat stamps job liveness. A failed heartbeat is logged but never
// fails the job; the watchdog tolerates gaps shorter than its threshold.
func (p *JobProcessor) heartbeat(ctx context.Context, job *entity.IngestionJob) {
	job.Heartbeat()
	if err := p.jobRepo.Heartbeat(ctx, job.ID()); err != nil {
		slogger.Warn(ctx, "Failed to persist heartbeat", slogger.Fields{
			"job_id": job.ID().String(),
			"error":  err.Error(),
		})
	}
}

// classifyHalt converts a phase error into a halt, promoting deadline and
// cancellation errors to the timeout classification.
func (p *JobProcessor) classifyHalt(
	ctx context.Context,
	err error,
	defaultCode valueobject.ErrorCode,
	format string,
	args ...any,
) *pipelineHalt {
	operation := fmt.Sprintf(format, args...)
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		return halt(valueobject.ErrorCodeTimeout, "%s: job exceeded %s budget", operation, p.config.JobTimeout)
	}

	var embedErr *outbound.EmbeddingError
	if errors.As(err, &embedErr) {
		return halt(valueobject.ErrorCodeEmbeddingError, "%s: %v", operation, err)
	}

	return halt(defaultCode, "%s: %v", operation, err)
}

func toPageSamples(pages []outbound.ParsedPage) []service.PageSample {
	samples := make([]service.PageSample, len(pages))
	for i, page := range pages {
		samples[i] = service.PageSample{
			PageNumber: page.PageNumber,
			Content:    page.Content,
			CharCount:  page.CharCount,
		}
	}
	return samples
}
