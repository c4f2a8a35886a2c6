// Package worker executes ingestion jobs: download, parse, quality gate,
// chunk, embed and persist, under a bounded wall-clock budget.
package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names following OpenTelemetry semantic conventions.
const (
	JobDurationHistogramName = "ingestion_job_duration_seconds"
	JobCounterName           = "ingestion_jobs_total"
	ChunkHistogramName       = "ingestion_chunks_per_job"
	PageHistogramName        = "ingestion_pages_per_job"
)

// Common attribute keys for consistent labeling.
const (
	AttrStatus    = "status"     // done, failed, cancelled
	AttrErrorCode = "error_code" // failure classification, empty on success
	AttrParser    = "parser"     // parser that handled the document
)

// PipelineMetrics provides OpenTelemetry-based metrics for job execution.
type PipelineMetrics struct {
	jobDuration  metric.Float64Histogram
	jobsTotal    metric.Int64Counter
	chunksPerJob metric.Int64Histogram
	pagesPerJob  metric.Int64Histogram
}

// NewPipelineMetrics creates the pipeline metrics collector.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("docingest/worker", metric.WithInstrumentationVersion("1.0.0"))

	// Job durations span quick rejections to the full 300s budget.
	durationBuckets := []float64{
		0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0,
	}

	jobDuration, err := meter.Float64Histogram(
		JobDurationHistogramName,
		metric.WithDescription("Duration of ingestion job execution in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		JobCounterName,
		metric.WithDescription("Total number of ingestion jobs executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	chunksPerJob, err := meter.Int64Histogram(
		ChunkHistogramName,
		metric.WithDescription("Chunks produced per ingestion job"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pagesPerJob, err := meter.Int64Histogram(
		PageHistogramName,
		metric.WithDescription("Pages parsed per ingestion job"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		jobDuration:  jobDuration,
		jobsTotal:    jobsTotal,
		chunksPerJob: chunksPerJob,
		pagesPerJob:  pagesPerJob,
	}, nil
}

// RecordJob records the outcome of one job execution attempt.
func (m *PipelineMetrics) RecordJob(
	ctx context.Context,
	status string,
	errorCode string,
	duration time.Duration,
	pageCount, chunkCount int,
) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrStatus, status),
		attribute.String(AttrErrorCode, errorCode),
	)
	m.jobsTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
	m.pagesPerJob.Record(ctx, int64(pageCount), attrs)
	m.chunksPerJob.Record(ctx, int64(chunkCount), attrs)
}
