// Package metering publishes usage-accounting records to the billing
// subject.
package metering

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"docingest/internal/application/common/slogger"
	"docingest/internal/port/outbound"
)

// SubjectUsageEmbeddings is the subject usage records are published to.
const SubjectUsageEmbeddings = "usage.embeddings"

// usageEvent is the wire form of a usage record.
type usageEvent struct {
	TenantID   string    `json:"tenant_id"`
	Model      string    `json:"model"`
	Channel    string    `json:"channel"`
	TokenCount int       `json:"token_count"`
	TextCount  int       `json:"text_count"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NATSUsageMeter implements outbound.UsageMeter over core NATS publish.
// Delivery is fire-and-forget: billing reconciles from its own ledger, so a
// dropped event costs accuracy, never correctness.
type NATSUsageMeter struct {
	conn *nats.Conn
}

// NewNATSUsageMeter creates a usage meter on an established connection.
func NewNATSUsageMeter(conn *nats.Conn) (*NATSUsageMeter, error) {
	if conn == nil {
		return nil, errors.New("NATS connection cannot be nil")
	}
	return &NATSUsageMeter{conn: conn}, nil
}

// Record publishes one usage record. Failures are logged and swallowed.
func (m *NATSUsageMeter) Record(ctx context.Context, record outbound.UsageRecord) {
	event := usageEvent{
		TenantID:   record.TenantID,
		Model:      record.Model,
		Channel:    record.Channel,
		TokenCount: record.TokenCount,
		TextCount:  record.TextCount,
		RecordedAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		slogger.Warn(ctx, "Failed to marshal usage record", slogger.Fields{"error": err.Error()})
		return
	}

	if err := m.conn.Publish(SubjectUsageEmbeddings, data); err != nil {
		slogger.Warn(ctx, "Failed to publish usage record", slogger.Fields{
			"error":     err.Error(),
			"tenant_id": record.TenantID,
		})
	}
}
