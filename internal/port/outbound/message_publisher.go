package outbound

import (
	"context"

	"docingest/internal/domain/messaging"
)

// MessagePublisher publishes ingestion job messages to the job queue. The
// queue owns scheduling and retry policy; the pipeline only consumes.
type MessagePublisher interface {
	PublishIngestionJob(ctx context.Context, message messaging.IngestionJobMessage) error
}
