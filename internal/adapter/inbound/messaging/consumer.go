// Package messaging implements the NATS JetStream consumer that feeds
// ingestion job messages to the job processor.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"docingest/internal/application/common/logging"
	"docingest/internal/application/common/slogger"
	"docingest/internal/config"
	"docingest/internal/domain/entity"
	"docingest/internal/domain/messaging"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/inbound"
	"docingest/internal/port/outbound"
)

const natsConnectionTimeout = 5 * time.Second

// ConsumerConfig holds configuration for the message consumer.
type ConsumerConfig struct {
	Subject       string
	QueueGroup    string
	DurableName   string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAckPending int
}

// NATSConsumer pulls ingestion job messages from JetStream and executes them
// one at a time through the job processor. Per-message concurrency lives in
// the worker service, which runs multiple consumers.
type NATSConsumer struct {
	config       ConsumerConfig
	natsConfig   config.NATSConfig
	jobProcessor inbound.JobProcessor
	jobRepo      outbound.IngestionJobRepository

	conn *nats.Conn
	sub  *nats.Subscription

	mu              sync.RWMutex
	running         bool
	messagesHandled int64
	errorCount      int64
	lastError       string
	lastMessageTime time.Time
}

// NewNATSConsumer creates a new NATS consumer.
func NewNATSConsumer(
	consumerConfig ConsumerConfig,
	natsConfig config.NATSConfig,
	processor inbound.JobProcessor,
	jobRepo outbound.IngestionJobRepository,
) (*NATSConsumer, error) {
	if err := validateConsumerConfig(consumerConfig); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}
	if processor == nil {
		return nil, errors.New("job processor cannot be nil")
	}
	if jobRepo == nil {
		return nil, errors.New("job repository cannot be nil")
	}

	return &NATSConsumer{
		config:       consumerConfig,
		natsConfig:   natsConfig,
		jobProcessor: processor,
		jobRepo:      jobRepo,
	}, nil
}

func validateConsumerConfig(config ConsumerConfig) error {
	if config.Subject == "" {
		return errors.New("subject cannot be empty")
	}
	if config.QueueGroup == "" {
		return errors.New("queue group cannot be empty")
	}
	if config.AckWait <= 0 {
		return errors.New("ack wait duration must be positive")
	}
	if config.MaxDeliver <= 0 {
		return errors.New("max deliver count must be positive")
	}
	if config.MaxAckPending <= 0 {
		return errors.New("max ack pending must be positive")
	}
	return nil
}

// Start connects to NATS and begins consuming messages.
func (n *NATSConsumer) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("consumer already running for subject %s", n.config.Subject)
	}

	conn, err := nats.Connect(n.natsConfig.URL,
		nats.MaxReconnects(n.natsConfig.MaxReconnects),
		nats.ReconnectWait(n.natsConfig.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sub, err := js.QueueSubscribe(
		n.config.Subject,
		n.config.QueueGroup,
		func(msg *nats.Msg) { n.handleMessage(ctx, msg) },
		nats.Durable(n.config.DurableName),
		nats.ManualAck(),
		nats.AckWait(n.config.AckWait),
		nats.MaxDeliver(n.config.MaxDeliver),
		nats.MaxAckPending(n.config.MaxAckPending),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", n.config.Subject, err)
	}

	n.conn = conn
	n.sub = sub
	n.running = true

	slogger.Info(ctx, "Consumer started", slogger.Fields{
		"subject":     n.config.Subject,
		"queue_group": n.config.QueueGroup,
	})
	return nil
}

// Stop drains the subscription and closes the connection.
func (n *NATSConsumer) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	if n.sub != nil {
		if err := n.sub.Drain(); err != nil {
			slogger.Warn(ctx, "Failed to drain subscription", slogger.Fields{"error": err.Error()})
		}
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.running = false

	slogger.Info(ctx, "Consumer stopped", slogger.Fields{"subject": n.config.Subject})
	return nil
}

// Health reports the consumer health snapshot.
func (n *NATSConsumer) Health() inbound.ConsumerHealthStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return inbound.ConsumerHealthStatus{
		Subject:         n.config.Subject,
		QueueGroup:      n.config.QueueGroup,
		IsRunning:       n.running,
		IsConnected:     n.conn != nil && n.conn.IsConnected(),
		MessagesHandled: n.messagesHandled,
		ErrorCount:      n.errorCount,
		LastError:       n.lastError,
		LastMessageTime: n.lastMessageTime,
	}
}

// handleMessage decodes and executes one ingestion job message.
//
// Ack policy: malformed messages are terminated (redelivery cannot fix them);
// jobs the processor completed in any terminal state are acked; only
// infrastructure failures before the processor ran are nak'd for redelivery.
func (n *NATSConsumer) handleMessage(ctx context.Context, msg *nats.Msg) {
	n.mu.Lock()
	n.lastMessageTime = time.Now()
	n.mu.Unlock()

	var message messaging.IngestionJobMessage
	if err := json.Unmarshal(msg.Data, &message); err != nil {
		n.recordError(err)
		slogger.ErrorWithError(ctx, err, "Dropping malformed job message", nil)
		n.terminate(ctx, msg)
		return
	}

	if err := message.Validate(); err != nil {
		n.recordError(err)
		slogger.ErrorWithError(ctx, err, "Dropping invalid job message", slogger.Fields{
			"message_id": message.MessageID,
		})
		n.terminate(ctx, msg)
		return
	}

	job, err := n.loadOrRestoreJob(ctx, &message)
	if err != nil {
		n.recordError(err)
		slogger.ErrorWithError(ctx, err, "Failed to load job, requesting redelivery", slogger.Fields{
			"job_id": message.JobID.String(),
		})
		if nakErr := msg.Nak(); nakErr != nil {
			slogger.Warn(ctx, "Failed to nak message", slogger.Fields{"error": nakErr.Error()})
		}
		return
	}

	if job.IsTerminal() {
		slogger.Info(ctx, "Skipping job already in terminal state", slogger.Fields{
			"job_id": job.ID().String(),
			"status": job.Status().String(),
		})
		n.ack(ctx, msg)
		return
	}

	result := n.jobProcessor.ProcessJob(logging.NewCorrelationID(ctx), job)

	n.mu.Lock()
	n.messagesHandled++
	n.mu.Unlock()

	slogger.Info(ctx, "Job processed", slogger.Fields{
		"job_id":      job.ID().String(),
		"success":     result.Success,
		"status":      result.Status.String(),
		"chunk_count": result.ChunkCount,
		"duration":    result.Duration.String(),
	})

	// The processor persisted the terminal state; redelivery would only
	// re-run a settled job.
	n.ack(ctx, msg)
}

// loadOrRestoreJob fetches the job record, falling back to the message fields
// when the record has not been persisted yet.
func (n *NATSConsumer) loadOrRestoreJob(
	ctx context.Context,
	message *messaging.IngestionJobMessage,
) (*entity.IngestionJob, error) {
	job, err := n.jobRepo.FindByID(ctx, message.JobID)
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", message.JobID, err)
	}
	if job != nil {
		return job, nil
	}

	source, err := message.Source()
	if err != nil {
		return nil, fmt.Errorf("invalid source in message %s: %w", message.MessageID, err)
	}

	job = entity.RestoreIngestionJob(
		message.JobID, message.DocumentVersionID, message.TenantID,
		source,
		valueobject.JobStatusQueued, valueobject.JobStageDownloading,
		nil, nil,
		0, message.MaxAttempts,
		nil,
		nil, nil, nil,
		message.Timestamp, message.Timestamp,
	)
	if saveErr := n.jobRepo.Save(ctx, job); saveErr != nil {
		return nil, fmt.Errorf("save restored job %s: %w", message.JobID, saveErr)
	}
	return job, nil
}

func (n *NATSConsumer) ack(ctx context.Context, msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		slogger.Warn(ctx, "Failed to ack message", slogger.Fields{"error": err.Error()})
	}
}

func (n *NATSConsumer) terminate(ctx context.Context, msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		slogger.Warn(ctx, "Failed to terminate message", slogger.Fields{"error": err.Error()})
	}
}

func (n *NATSConsumer) recordError(err error) {
	n.mu.Lock()
	n.errorCount++
	n.lastError = err.Error()
	n.mu.Unlock()
}
