// Package service provides application-level orchestration around the job
// processing pipeline.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docingest/internal/application/common/slogger"
	"docingest/internal/port/inbound"
)

// WorkerServiceConfig holds configuration for the worker service.
type WorkerServiceConfig struct {
	Concurrency     int
	QueueGroup      string
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
}

// DefaultWorkerService owns the consumer lifecycle: it starts the configured
// consumers, reports their aggregate health and drains them on shutdown. It
// implements inbound.WorkerService.
type DefaultWorkerService struct {
	config    WorkerServiceConfig
	consumers []inbound.Consumer
	running   bool
	startTime time.Time
	mu        sync.RWMutex
}

// NewDefaultWorkerService creates a new worker service.
func NewDefaultWorkerService(serviceConfig WorkerServiceConfig) *DefaultWorkerService {
	return &DefaultWorkerService{config: serviceConfig}
}

// AddConsumer registers a consumer before the service starts.
func (w *DefaultWorkerService) AddConsumer(consumer inbound.Consumer) error {
	if consumer == nil {
		return errors.New("consumer cannot be nil")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("cannot add consumer while service is running")
	}
	w.consumers = append(w.consumers, consumer)
	return nil
}

// Start starts all registered consumers. If any consumer fails to start, the
// ones already running are stopped again.
func (w *DefaultWorkerService) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("worker service already running")
	}
	if len(w.consumers) == 0 {
		return errors.New("no consumers registered")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, consumer := range w.consumers {
		consumer := consumer
		group.Go(func() error {
			return consumer.Start(groupCtx)
		})
	}
	if err := group.Wait(); err != nil {
		for _, consumer := range w.consumers {
			if stopErr := consumer.Stop(ctx); stopErr != nil {
				slogger.Warn(ctx, "Failed to stop consumer during rollback", slogger.Fields{
					"error": stopErr.Error(),
				})
			}
		}
		return err
	}

	w.running = true
	w.startTime = time.Now()
	slogger.Info(ctx, "Worker service started", slogger.Fields{
		"consumers":   len(w.consumers),
		"queue_group": w.config.QueueGroup,
	})
	return nil
}

// Stop drains all consumers within the shutdown timeout.
func (w *DefaultWorkerService) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	if w.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.ShutdownTimeout)
		defer cancel()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, consumer := range w.consumers {
		consumer := consumer
		group.Go(func() error {
			return consumer.Stop(groupCtx)
		})
	}
	err := group.Wait()

	w.running = false
	slogger.Info(ctx, "Worker service stopped", slogger.Fields{
		"uptime": time.Since(w.startTime).String(),
	})
	return err
}

// HealthyConsumers returns how many consumers are running and connected.
func (w *DefaultWorkerService) HealthyConsumers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	healthy := 0
	for _, consumer := range w.consumers {
		health := consumer.Health()
		if health.IsRunning && health.IsConnected {
			healthy++
		}
	}
	return healthy
}

// IsRunning reports whether the service has been started.
func (w *DefaultWorkerService) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
