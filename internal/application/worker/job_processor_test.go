package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/domain/entity"
	"docingest/internal/domain/service"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/outbound"
)

// fakeBlobStorage serves canned bytes or a canned error. With stall set it
// blocks until the caller's context expires, like a trickling transfer.
type fakeBlobStorage struct {
	data      []byte
	err       error
	stall     bool
	downloads int
}

func (f *fakeBlobStorage) Download(ctx context.Context, _ string) ([]byte, error) {
	f.downloads++
	if f.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// fakeParser returns a fixed parse result for every supported pair.
type fakeParser struct {
	supported bool
	result    *outbound.ParseResult
	err       error
	parses    int
}

func (f *fakeParser) IsSupported(_, _ string) bool { return f.supported }

func (f *fakeParser) Parse(_ context.Context, _ []byte, _, _ string) (*outbound.ParseResult, error) {
	f.parses++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeChunker returns fixed chunks regardless of input.
type fakeChunker struct {
	chunks []outbound.Chunk
}

func (f *fakeChunker) Chunk(_ []outbound.ParsedPage, _ outbound.ChunkingConfig) []outbound.Chunk {
	return f.chunks
}

// fakeEmbedder records inputs and returns one result per text.
type fakeEmbedder struct {
	err        error
	shortBy    int
	texts      []string
	batchSizes []int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string, batchSize int) ([]*outbound.EmbeddingResult, error) {
	f.texts = texts
	f.batchSizes = append(f.batchSizes, batchSize)
	if f.err != nil {
		return nil, f.err
	}
	results := make([]*outbound.EmbeddingResult, 0, len(texts))
	for i := 0; i < len(texts)-f.shortBy; i++ {
		results = append(results, &outbound.EmbeddingResult{
			Vector:            []float64{float64(i)},
			Provider:          "fake",
			Model:             "fake-model",
			Dimensions:        1,
			PreprocessVersion: "v1",
			ContentHash:       "hash",
		})
	}
	return results, nil
}

// fakeJobRepo captures every persistence call in order.
type fakeJobRepo struct {
	saveErr        error
	stageErr       error
	heartbeatErr   error
	saves          int
	stages         []valueobject.JobStage
	statuses       []valueobject.JobStatus
	messages       []string
	metrics        []*entity.JobMetrics
	errorCodes     []valueobject.ErrorCode
	heartbeats     int
	failuresLogged int
}

func (f *fakeJobRepo) Save(_ context.Context, _ *entity.IngestionJob) error {
	f.saves++
	return f.saveErr
}

func (f *fakeJobRepo) FindByID(_ context.Context, _ uuid.UUID) (*entity.IngestionJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) UpdateStage(_ context.Context, _ uuid.UUID, stage valueobject.JobStage) error {
	if f.stageErr != nil {
		return f.stageErr
	}
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeJobRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status valueobject.JobStatus, metrics *entity.JobMetrics, message string) error {
	f.statuses = append(f.statuses, status)
	f.metrics = append(f.metrics, metrics)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeJobRepo) SetErrorCode(_ context.Context, _ uuid.UUID, code valueobject.ErrorCode) error {
	f.errorCodes = append(f.errorCodes, code)
	return nil
}

func (f *fakeJobRepo) Heartbeat(_ context.Context, _ uuid.UUID) error {
	f.heartbeats++
	return f.heartbeatErr
}

func (f *fakeJobRepo) HandleFailure(_ context.Context, _ *entity.IngestionJob, _ error) error {
	f.failuresLogged++
	return nil
}

// fakeDocRepo scripts the deletion checks: deletedAfter N means the Nth and
// later IsDeleted calls report the document gone.
type fakeDocRepo struct {
	title         string
	titleErr      error
	deletedAfter  int
	deletionCalls int
	savedPages    []outbound.ParsedPage
	savePagesErr  error
}

func (f *fakeDocRepo) GetTitle(_ context.Context, _ uuid.UUID) (string, error) {
	return f.title, f.titleErr
}

func (f *fakeDocRepo) IsDeleted(_ context.Context, _ uuid.UUID) (bool, error) {
	f.deletionCalls++
	return f.deletedAfter > 0 && f.deletionCalls >= f.deletedAfter, nil
}

func (f *fakeDocRepo) SavePages(_ context.Context, _ uuid.UUID, pages []outbound.ParsedPage) error {
	if f.savePagesErr != nil {
		return f.savePagesErr
	}
	f.savedPages = pages
	return nil
}

// fakeChunkRepo captures persisted records.
type fakeChunkRepo struct {
	err     error
	records []outbound.ChunkRecord
	saves   int
}

func (f *fakeChunkRepo) SaveChunksWithEmbeddings(_ context.Context, _, _ uuid.UUID, records []outbound.ChunkRecord) error {
	f.saves++
	if f.err != nil {
		return f.err
	}
	f.records = records
	return nil
}

type processorFixture struct {
	blob      *fakeBlobStorage
	parser    *fakeParser
	chunker   *fakeChunker
	embedder  *fakeEmbedder
	jobRepo   *fakeJobRepo
	docRepo   *fakeDocRepo
	chunkRepo *fakeChunkRepo
}

func defaultParseResult() *outbound.ParseResult {
	content := "Net 30 days. Payment is due within thirty days of the invoice date."
	return &outbound.ParseResult{
		Pages: []outbound.ParsedPage{
			{PageNumber: 1, Content: content, CharCount: len(content)},
		},
		TotalPages: 1,
		TotalWords: 13,
		ParserUsed: "plaintext",
	}
}

func newFixture() *processorFixture {
	return &processorFixture{
		blob:   &fakeBlobStorage{data: []byte("raw document bytes")},
		parser: &fakeParser{supported: true, result: defaultParseResult()},
		chunker: &fakeChunker{chunks: []outbound.Chunk{
			{Index: 0, Content: "Net 30 days.", StartChar: 0, EndChar: 12, FirstPage: 1, LastPage: 1},
			{Index: 1, Content: "Payment is due within thirty days of the invoice date.", StartChar: 13, EndChar: 67, FirstPage: 1, LastPage: 1},
		}},
		embedder:  &fakeEmbedder{},
		jobRepo:   &fakeJobRepo{},
		docRepo:   &fakeDocRepo{title: "Invoice Terms"},
		chunkRepo: &fakeChunkRepo{},
	}
}

func (fx *processorFixture) build(t *testing.T, config Config) *JobProcessor {
	t.Helper()
	processor, err := NewJobProcessor(
		fx.blob, fx.parser,
		service.NewQualityGate(service.DefaultQualityGateConfig()),
		fx.chunker, fx.embedder,
		fx.jobRepo, fx.docRepo, fx.chunkRepo,
		nil, config,
	)
	require.NoError(t, err)
	return processor
}

func newQueuedJob(t *testing.T) *entity.IngestionJob {
	t.Helper()
	source, err := valueobject.NewSourceDescriptor("text/plain", valueobject.SourceTypeUpload, "tenant/doc/v1.txt")
	require.NoError(t, err)
	return entity.NewIngestionJob(uuid.New(), uuid.New(), source, 3)
}

func TestNewJobProcessor_RejectsNilDependencies(t *testing.T) {
	fx := newFixture()

	_, err := NewJobProcessor(nil, fx.parser,
		service.NewQualityGate(service.DefaultQualityGateConfig()),
		fx.chunker, fx.embedder, fx.jobRepo, fx.docRepo, fx.chunkRepo, nil, Config{})
	assert.Error(t, err)

	_, err = NewJobProcessor(fx.blob, fx.parser, nil,
		fx.chunker, fx.embedder, fx.jobRepo, fx.docRepo, fx.chunkRepo, nil, Config{})
	assert.Error(t, err)
}

func TestProcessJob_HappyPath(t *testing.T) {
	fx := newFixture()
	processor := fx.build(t, Config{})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.True(t, result.Success)
	assert.Equal(t, valueobject.JobStatusDone, result.Status)
	assert.Nil(t, result.ErrorCode)
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 13, result.WordCount)

	assert.Equal(t, valueobject.JobStatusDone, job.Status())
	assert.Equal(t, valueobject.JobStageDone, job.Stage())

	// Stages advance through the pipeline and finish terminal.
	assert.Equal(t, []valueobject.JobStage{
		valueobject.JobStageParsing,
		valueobject.JobStageChunking,
		valueobject.JobStageEmbedding,
		valueobject.JobStageDone,
	}, fx.jobRepo.stages)

	// Exactly one terminal status write, with metrics attached.
	require.Len(t, fx.jobRepo.statuses, 1)
	assert.Equal(t, valueobject.JobStatusDone, fx.jobRepo.statuses[0])
	require.NotNil(t, fx.jobRepo.metrics[0])
	assert.Equal(t, 1, fx.jobRepo.metrics[0].PageCount)
	assert.Equal(t, 2, fx.jobRepo.metrics[0].ChunkCount)

	// Heartbeats after download, parse, chunk and embed.
	assert.Equal(t, 4, fx.jobRepo.heartbeats)

	// Deletion checked before parsing, chunking, embedding and final persist.
	assert.Equal(t, 4, fx.docRepo.deletionCalls)

	assert.Empty(t, fx.jobRepo.errorCodes)
	assert.Len(t, fx.docRepo.savedPages, 1)
}

func TestProcessJob_ChunkRecordsArePositional(t *testing.T) {
	fx := newFixture()
	processor := fx.build(t, Config{})

	processor.ProcessJob(context.Background(), newQueuedJob(t))

	require.Len(t, fx.chunkRepo.records, 2)
	for i, record := range fx.chunkRepo.records {
		assert.Equal(t, i, record.Chunk.Index)
		require.NotNil(t, record.Embedding)
	}
}

func TestProcessJob_EmbedInputsCarryTitleHeader(t *testing.T) {
	fx := newFixture()
	processor := fx.build(t, Config{})

	processor.ProcessJob(context.Background(), newQueuedJob(t))

	require.Len(t, fx.embedder.texts, 2)
	assert.Equal(t, "Invoice Terms\n\nNet 30 days.", fx.embedder.texts[0])
	assert.Equal(t, "Invoice Terms\n\nPayment is due within thirty days of the invoice date.", fx.embedder.texts[1])
}

func TestProcessJob_UntitledDocumentsShareFallbackHeader(t *testing.T) {
	fx := newFixture()
	fx.docRepo.title = ""
	processor := fx.build(t, Config{})

	processor.ProcessJob(context.Background(), newQueuedJob(t))

	require.Len(t, fx.embedder.texts, 2)
	assert.Equal(t, "Untitled Document\n\nNet 30 days.", fx.embedder.texts[0])
	assert.Equal(t, "Untitled Document\n\nPayment is due within thirty days of the invoice date.", fx.embedder.texts[1])
}

func TestProcessJob_UnsupportedFormatFailsBeforeDownload(t *testing.T) {
	fx := newFixture()
	fx.parser.supported = false
	processor := fx.build(t, Config{})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeUnsupportedFormat, *result.ErrorCode)

	assert.Equal(t, 0, fx.blob.downloads)
	assert.Equal(t, 0, fx.parser.parses)
	assert.Equal(t, []valueobject.ErrorCode{valueobject.ErrorCodeUnsupportedFormat}, fx.jobRepo.errorCodes)
	assert.Equal(t, 1, fx.jobRepo.failuresLogged)
}

func TestProcessJob_CancelledBeforeParsing(t *testing.T) {
	fx := newFixture()
	fx.docRepo.deletedAfter = 1
	processor := fx.build(t, Config{})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, valueobject.JobStatusCancelled, result.Status)
	assert.Nil(t, result.ErrorCode)
	assert.Contains(t, result.Message, "document deleted before parsing")

	assert.Equal(t, valueobject.JobStatusCancelled, job.Status())
	assert.Nil(t, job.ErrorCode())

	// Nothing downstream of the safe point ran or was persisted.
	assert.Equal(t, 0, fx.parser.parses)
	assert.Nil(t, fx.docRepo.savedPages)
	assert.Equal(t, 0, fx.chunkRepo.saves)
	assert.Empty(t, fx.jobRepo.errorCodes)
	assert.Equal(t, 0, fx.jobRepo.failuresLogged)
}

func TestProcessJob_CancelledBeforeFinalPersist(t *testing.T) {
	fx := newFixture()
	fx.docRepo.deletedAfter = 4
	processor := fx.build(t, Config{})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.Equal(t, valueobject.JobStatusCancelled, result.Status)
	assert.Contains(t, result.Message, "before final persist")
	assert.Equal(t, 0, fx.chunkRepo.saves)
	// The embedding work happened but its output was discarded.
	assert.NotEmpty(t, fx.embedder.texts)
}

func TestProcessJob_EmptyChunksCompletesWithZeroCount(t *testing.T) {
	fx := newFixture()
	fx.chunker.chunks = []outbound.Chunk{}
	processor := fx.build(t, Config{})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.True(t, result.Success)
	assert.Equal(t, valueobject.JobStatusDone, result.Status)
	assert.Equal(t, 0, result.ChunkCount)

	assert.Empty(t, fx.embedder.texts)
	assert.Equal(t, 0, fx.chunkRepo.saves)
	// Pages are still persisted for an empty document.
	assert.Len(t, fx.docRepo.savedPages, 1)
}

func TestProcessJob_QualityGateFailure(t *testing.T) {
	fx := newFixture()
	fx.parser.result = &outbound.ParseResult{
		Pages:      []outbound.ParsedPage{{PageNumber: 1, Content: "   "}},
		TotalPages: 1,
	}
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.False(t, result.Success)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeEmptyExtraction, *result.ErrorCode)

	// Rejected extractions are never persisted.
	assert.Nil(t, fx.docRepo.savedPages)
	assert.Equal(t, 0, fx.chunkRepo.saves)
}

func TestProcessJob_DownloadFailureIsStorageError(t *testing.T) {
	fx := newFixture()
	fx.blob.err = errors.New("object not found")
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeStorageError, *result.ErrorCode)
	assert.Contains(t, result.Message, "object not found")
}

func TestProcessJob_DeadlineExceededIsTimeout(t *testing.T) {
	fx := newFixture()
	fx.blob.err = context.DeadlineExceeded
	processor := fx.build(t, Config{JobTimeout: 50 * time.Millisecond})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeTimeout, *result.ErrorCode)
	assert.Contains(t, result.Message, "budget")

	// The terminal state is persisted even though the run context expired.
	require.Len(t, fx.jobRepo.statuses, 1)
	assert.Equal(t, valueobject.JobStatusFailed, fx.jobRepo.statuses[0])
}

func TestProcessJob_SlowDownloadLosesDeadlineRace(t *testing.T) {
	fx := newFixture()
	fx.blob.stall = true
	deadline := 60 * time.Millisecond
	processor := fx.build(t, Config{JobTimeout: deadline})
	job := newQueuedJob(t)

	result := processor.ProcessJob(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeTimeout, *result.ErrorCode)
	assert.GreaterOrEqual(t, result.Duration, deadline)

	// One terminal status write, durable despite the expired run context.
	require.Len(t, fx.jobRepo.statuses, 1)
	assert.Equal(t, valueobject.JobStatusFailed, fx.jobRepo.statuses[0])
}

func TestProcessJob_EmbeddingCountMismatch(t *testing.T) {
	fx := newFixture()
	fx.embedder.shortBy = 1
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeEmbeddingError, *result.ErrorCode)
	assert.Equal(t, 0, fx.chunkRepo.saves)
}

func TestProcessJob_EmbeddingProviderErrorClassified(t *testing.T) {
	fx := newFixture()
	fx.embedder.err = &outbound.EmbeddingError{Code: "quota_exceeded", Type: "quota", Message: "slow down"}
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeEmbeddingError, *result.ErrorCode)
}

func TestProcessJob_ConfiguredBatchSizePassedThrough(t *testing.T) {
	fx := newFixture()
	processor := fx.build(t, Config{EmbedBatchSize: 7})

	processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, []int{7}, fx.embedder.batchSizes)
}

func TestProcessJob_ZeroBatchSizeUsesDefault(t *testing.T) {
	fx := newFixture()
	processor := fx.build(t, Config{})

	processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, []int{outbound.DefaultEmbedBatchSize}, fx.embedder.batchSizes)
}

func TestProcessJob_HeartbeatFailureNeverFailsJob(t *testing.T) {
	fx := newFixture()
	fx.jobRepo.heartbeatErr = errors.New("transient database hiccup")
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.True(t, result.Success)
	assert.Equal(t, valueobject.JobStatusDone, result.Status)
}

func TestProcessJob_PersistStartFailure(t *testing.T) {
	fx := newFixture()
	fx.jobRepo.saveErr = errors.New("connection refused")
	processor := fx.build(t, Config{})

	result := processor.ProcessJob(context.Background(), newQueuedJob(t))

	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, valueobject.ErrorCodeDatabaseError, *result.ErrorCode)
	assert.Equal(t, 0, fx.blob.downloads)
}
