package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	natsmessaging "docingest/internal/adapter/outbound/messaging"
	"docingest/internal/application/common/slogger"
	"docingest/internal/domain/entity"
	"docingest/internal/domain/messaging"
	"docingest/internal/domain/valueobject"
)

// newEnqueueCmd creates and returns the enqueue command.
func newEnqueueCmd() *cobra.Command {
	var (
		versionID  string
		tenantID   string
		mimeType   string
		sourceType string
		storageKey string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue an ingestion job",
		Long: `Enqueue an ingestion job message onto the job queue.

The job references a document version whose raw bytes already live in the
object store under the given storage key. A worker picks the job up and runs
the full pipeline against it.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runEnqueue(versionID, tenantID, mimeType, sourceType, storageKey)
		},
	}

	cmd.Flags().StringVar(&versionID, "version-id", "", "Document version UUID (required)")
	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&mimeType, "mime-type", "text/plain", "Mime type of the stored document")
	cmd.Flags().StringVar(&sourceType, "source-type", "upload", "Source type (upload or scrape)")
	cmd.Flags().StringVar(&storageKey, "storage-key", "", "Object store key of the raw bytes (required)")

	return cmd
}

func runEnqueue(versionID, tenantID, mimeType, sourceType, storageKey string) error {
	cfg := GetConfig()

	documentVersionID, err := uuid.Parse(versionID)
	if err != nil {
		return errors.New("version-id must be a valid UUID")
	}
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return errors.New("tenant-id must be a valid UUID")
	}
	st, err := valueobject.NewSourceType(sourceType)
	if err != nil {
		return err
	}
	source, err := valueobject.NewSourceDescriptor(mimeType, st, storageKey)
	if err != nil {
		return err
	}

	job := entity.NewIngestionJob(documentVersionID, tenant, source, cfg.Worker.MaxAttempts)

	publisher, err := natsmessaging.NewNATSMessagePublisher(cfg.NATS)
	if err != nil {
		return err
	}
	if err := publisher.Connect(); err != nil {
		return err
	}
	defer func() {
		if err := publisher.Disconnect(); err != nil {
			slogger.WarnNoCtx("Failed to disconnect publisher", slogger.Fields{"error": err.Error()})
		}
	}()
	if err := publisher.EnsureStream(); err != nil {
		return err
	}

	message := messaging.IngestionJobMessage{
		MessageID:         uuid.New().String(),
		JobID:             job.ID(),
		DocumentVersionID: job.DocumentVersionID(),
		TenantID:          job.TenantID(),
		MimeType:          mimeType,
		SourceType:        sourceType,
		StorageKey:        storageKey,
		MaxAttempts:       job.MaxAttempts(),
		Timestamp:         time.Now(),
		SchemaVersion:     "1",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.PublishIngestionJob(ctx, message); err != nil {
		return err
	}

	slogger.InfoNoCtx("Ingestion job enqueued", slogger.Fields{
		"job_id":     job.ID().String(),
		"version_id": documentVersionID.String(),
	})
	return nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newEnqueueCmd())
}
