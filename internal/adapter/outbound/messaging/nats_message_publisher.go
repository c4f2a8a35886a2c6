// Package messaging provides the NATS JetStream publisher for ingestion job
// messages.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"docingest/internal/config"
	"docingest/internal/domain/messaging"
)

const (
	// StreamName is the JetStream stream holding ingestion job messages.
	StreamName = "INGESTION"

	// SubjectIngestionJob is the subject ingestion jobs are published to.
	SubjectIngestionJob = "ingestion.job"

	natsConnectionTimeout = 5 * time.Second
	streamMaxAge          = 24 * time.Hour
)

// NATSMessagePublisher provides a NATS JetStream implementation of
// MessagePublisher.
type NATSMessagePublisher struct {
	config config.NATSConfig
	conn   *nats.Conn
	js     nats.JetStreamContext

	mutex          sync.RWMutex
	connected      bool
	reconnectCount int
	lastError      error
}

// NewNATSMessagePublisher creates a new NATS message publisher.
func NewNATSMessagePublisher(cfg config.NATSConfig) (*NATSMessagePublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}

	return &NATSMessagePublisher{config: cfg}, nil
}

// Connect establishes the connection to the NATS server and creates the
// JetStream context.
func (n *NATSMessagePublisher) Connect() error {
	opts := []nats.Option{
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			n.mutex.Lock()
			n.reconnectCount++
			n.connected = true
			n.mutex.Unlock()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.mutex.Lock()
			n.connected = false
			n.lastError = err
			n.mutex.Unlock()
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	n.mutex.Lock()
	n.conn = conn
	n.js = js
	n.connected = true
	n.mutex.Unlock()
	return nil
}

// Disconnect closes the NATS connection.
func (n *NATSMessagePublisher) Disconnect() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.js = nil
	}
	n.connected = false
	return nil
}

// EnsureStream creates the ingestion stream if it doesn't exist.
func (n *NATSMessagePublisher) EnsureStream() error {
	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	streamConfig := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"ingestion.>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    streamMaxAge,
		Storage:   nats.FileStorage,
	}

	if _, err := js.AddStream(streamConfig); err != nil {
		// Stream already existing is fine
		if _, infoErr := js.StreamInfo(StreamName); infoErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishIngestionJob publishes an ingestion job message to the queue.
func (n *NATSMessagePublisher) PublishIngestionJob(
	ctx context.Context,
	message messaging.IngestionJobMessage,
) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("invalid ingestion job message: %w", err)
	}

	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// MsgId enables JetStream de-duplication on redelivered publishes
	if _, err := js.Publish(SubjectIngestionJob, data,
		nats.Context(ctx), nats.MsgId(message.MessageID)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// IsConnected reports the current connection state.
func (n *NATSMessagePublisher) IsConnected() bool {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.connected
}
