package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/port/inbound"
)

// fakeConsumer tracks lifecycle calls and reports scripted health.
type fakeConsumer struct {
	startErr  error
	stopErr   error
	started   atomic.Int32
	stopped   atomic.Int32
	connected bool
}

func (c *fakeConsumer) Start(_ context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.started.Add(1)
	c.connected = true
	return nil
}

func (c *fakeConsumer) Stop(_ context.Context) error {
	c.stopped.Add(1)
	c.connected = false
	return c.stopErr
}

func (c *fakeConsumer) Health() inbound.ConsumerHealthStatus {
	return inbound.ConsumerHealthStatus{
		Subject:     "ingestion.job",
		QueueGroup:  "ingestion-workers",
		IsRunning:   c.started.Load() > c.stopped.Load(),
		IsConnected: c.connected,
	}
}

func testServiceConfig() WorkerServiceConfig {
	return WorkerServiceConfig{
		Concurrency:     2,
		QueueGroup:      "ingestion-workers",
		JobTimeout:      time.Minute,
		ShutdownTimeout: time.Second,
	}
}

func TestWorkerService_AddConsumer(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())

	require.NoError(t, svc.AddConsumer(&fakeConsumer{}))
	assert.Error(t, svc.AddConsumer(nil))
}

func TestWorkerService_StartWithoutConsumers(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())

	assert.Error(t, svc.Start(context.Background()))
}

func TestWorkerService_StartAndStop(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	first := &fakeConsumer{}
	second := &fakeConsumer{}
	require.NoError(t, svc.AddConsumer(first))
	require.NoError(t, svc.AddConsumer(second))

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.IsRunning())
	assert.Equal(t, int32(1), first.started.Load())
	assert.Equal(t, int32(1), second.started.Load())
	assert.Equal(t, 2, svc.HealthyConsumers())

	require.NoError(t, svc.Stop(context.Background()))
	assert.False(t, svc.IsRunning())
	assert.Equal(t, int32(1), first.stopped.Load())
	assert.Equal(t, int32(1), second.stopped.Load())
}

func TestWorkerService_DoubleStartRejected(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	require.NoError(t, svc.AddConsumer(&fakeConsumer{}))
	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(context.Background()) }()

	assert.Error(t, svc.Start(context.Background()))
}

func TestWorkerService_AddConsumerWhileRunningRejected(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	require.NoError(t, svc.AddConsumer(&fakeConsumer{}))
	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(context.Background()) }()

	assert.Error(t, svc.AddConsumer(&fakeConsumer{}))
}

func TestWorkerService_StartFailureRollsBack(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	healthy := &fakeConsumer{}
	broken := &fakeConsumer{startErr: errors.New("subscription refused")}
	require.NoError(t, svc.AddConsumer(healthy))
	require.NoError(t, svc.AddConsumer(broken))

	err := svc.Start(context.Background())

	require.Error(t, err)
	assert.False(t, svc.IsRunning())
	// Every consumer is stopped again during rollback.
	assert.Equal(t, int32(1), healthy.stopped.Load())
	assert.Equal(t, int32(1), broken.stopped.Load())
}

func TestWorkerService_StopIsIdempotent(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	require.NoError(t, svc.AddConsumer(&fakeConsumer{}))

	assert.NoError(t, svc.Stop(context.Background()))

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop(context.Background()))
	assert.NoError(t, svc.Stop(context.Background()))
}

func TestWorkerService_StopPropagatesConsumerError(t *testing.T) {
	svc := NewDefaultWorkerService(testServiceConfig())
	require.NoError(t, svc.AddConsumer(&fakeConsumer{stopErr: errors.New("drain timed out")}))
	require.NoError(t, svc.Start(context.Background()))

	err := svc.Stop(context.Background())

	require.Error(t, err)
	assert.False(t, svc.IsRunning())
}
