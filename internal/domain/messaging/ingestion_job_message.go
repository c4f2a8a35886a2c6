// Package messaging provides the wire schema for ingestion job messages
// exchanged over the job queue.
package messaging

import (
	"errors"
	"fmt"
	"time"

	"docingest/internal/domain/valueobject"

	"github.com/google/uuid"
)

const maxMessageIDLength = 255

// IngestionJobMessage is the queue message that triggers one ingestion job
// execution attempt.
type IngestionJobMessage struct {
	MessageID         string    `json:"message_id"`
	JobID             uuid.UUID `json:"job_id"`
	DocumentVersionID uuid.UUID `json:"document_version_id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	MimeType          string    `json:"mime_type"`
	SourceType        string    `json:"source_type"`
	StorageKey        string    `json:"storage_key"`
	MaxAttempts       int       `json:"max_attempts,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	SchemaVersion     string    `json:"schema_version,omitempty"`
}

// Validate checks the message for structural problems before it is handed to
// the job processor.
func (m *IngestionJobMessage) Validate() error {
	if m.MessageID == "" {
		return errors.New("message ID cannot be empty")
	}
	if len(m.MessageID) > maxMessageIDLength {
		return fmt.Errorf("message ID exceeds %d characters", maxMessageIDLength)
	}
	if m.JobID == uuid.Nil {
		return errors.New("job ID is required")
	}
	if m.DocumentVersionID == uuid.Nil {
		return errors.New("document version ID is required")
	}
	if m.TenantID == uuid.Nil {
		return errors.New("tenant ID is required")
	}
	if _, err := valueobject.NewSourceType(m.SourceType); err != nil {
		return err
	}
	if m.MimeType == "" {
		return errors.New("mime type cannot be empty")
	}
	if m.StorageKey == "" {
		return errors.New("storage key cannot be empty")
	}
	return nil
}

// Source builds the job source descriptor from the message fields.
func (m *IngestionJobMessage) Source() (valueobject.SourceDescriptor, error) {
	sourceType, err := valueobject.NewSourceType(m.SourceType)
	if err != nil {
		return valueobject.SourceDescriptor{}, err
	}
	return valueobject.NewSourceDescriptor(m.MimeType, sourceType, m.StorageKey)
}
