package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	inboundmessaging "docingest/internal/adapter/inbound/messaging"
	"docingest/internal/adapter/outbound/chunking"
	"docingest/internal/adapter/outbound/embeddings"
	"docingest/internal/adapter/outbound/embeddings/simple"
	"docingest/internal/adapter/outbound/gemini"
	"docingest/internal/adapter/outbound/metering"
	"docingest/internal/adapter/outbound/objectstore"
	"docingest/internal/adapter/outbound/parser"
	"docingest/internal/adapter/outbound/repository"
	"docingest/internal/application/common/slogger"
	"docingest/internal/application/service"
	"docingest/internal/application/worker"
	"docingest/internal/config"
	domainservice "docingest/internal/domain/service"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/outbound"
	"docingest/internal/version"
)

const defaultHost = "localhost"

// newWorkerCmd creates and returns the worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background ingestion worker",
		Long: `Start the background worker service that processes ingestion jobs from NATS JetStream.

The worker service:
- Consumes ingestion job messages from the job queue
- Downloads raw documents, parses them into pages and validates extraction quality
- Splits pages into semantically coherent chunks
- Generates provenance-tagged embeddings and persists chunks with vectors
- Enforces a wall-clock budget per job with liveness heartbeats

Configuration is loaded from config files and environment variables.`,
		Run: func(_ *cobra.Command, _ []string) {
			runWorkerService()
		},
	}
}

// runWorkerService starts and runs the worker service.
func runWorkerService() {
	cfg := GetConfig()

	slogger.InfoNoCtx("Starting ingestion worker", slogger.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queue_group": cfg.Worker.QueueGroup,
	})

	shutdownTelemetry, err := worker.SetupTelemetry(context.Background(), "docingest-worker", version.GetVersion().Version)
	if err != nil {
		slogger.WarnNoCtx("Failed to set up telemetry, continuing without", slogger.Fields{"error": err.Error()})
	} else {
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				slogger.WarnNoCtx("Telemetry shutdown failed", slogger.Fields{"error": err.Error()})
			}
		}()
	}

	dbPool, err := setupDatabaseConnection(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create database connection pool", slogger.Fields{"error": err.Error()})
		return
	}
	defer dbPool.Close()

	natsConn, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
	)
	if err != nil {
		slogger.ErrorNoCtx("Failed to connect to NATS", slogger.Fields{"error": err.Error()})
		return
	}
	defer natsConn.Close()

	workerService, err := createWorkerService(cfg, dbPool, natsConn)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create worker service", slogger.Fields{"error": err.Error()})
		return
	}

	if err := workerService.Start(context.Background()); err != nil {
		slogger.ErrorNoCtx("Failed to start worker service", slogger.Fields{"error": err.Error()})
		return
	}

	waitForShutdownAndStop(workerService)
}

// setupDatabaseConnection initializes the database connection with defaults.
func setupDatabaseConnection(cfg *config.Config) (*pgxpool.Pool, error) {
	dbConfig := repository.DatabaseConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Username:       cfg.Database.User,
		Password:       cfg.Database.Password,
		Schema:         cfg.Database.Schema,
		MaxConnections: cfg.Database.MaxConnections,
		SSLMode:        cfg.Database.SSLMode,
	}

	if dbConfig.Host == "" {
		dbConfig.Host = defaultHost
	}
	if dbConfig.Port == 0 {
		dbConfig.Port = 5432
	}
	if dbConfig.Schema == "" {
		dbConfig.Schema = "docingest"
	}
	if dbConfig.MaxConnections == 0 {
		dbConfig.MaxConnections = 10
	}
	if dbConfig.SSLMode == "" {
		dbConfig.SSLMode = "disable"
	}

	return repository.NewDatabaseConnection(dbConfig)
}

// createWorkerService creates and configures the worker service with all
// dependencies.
func createWorkerService(
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	natsConn *nats.Conn,
) (*service.DefaultWorkerService, error) {
	jobRepository := repository.NewPostgreSQLIngestionJobRepository(dbPool)
	documentRepository := repository.NewPostgreSQLDocumentRepository(dbPool)
	chunkRepository := repository.NewPostgreSQLChunkRepository(dbPool)

	js, err := natsConn.JetStream()
	if err != nil {
		return nil, err
	}
	blobStorage, err := objectstore.EnsureBucket(js, cfg.NATS.ObjectBucket)
	if err != nil {
		return nil, err
	}

	usageMeter, err := metering.NewNATSUsageMeter(natsConn)
	if err != nil {
		return nil, err
	}

	embeddingService, err := createEmbeddingService(cfg, usageMeter)
	if err != nil {
		return nil, err
	}

	pipelineMetrics, err := worker.NewPipelineMetrics()
	if err != nil {
		slogger.WarnNoCtx("Failed to create pipeline metrics, continuing without", slogger.Fields{
			"error": err.Error(),
		})
		pipelineMetrics = nil
	}

	jobProcessor, err := worker.NewJobProcessor(
		blobStorage,
		parser.NewRouter(),
		domainservice.NewQualityGate(cfg.QualityGate),
		chunking.NewSemanticChunker(),
		embeddingService,
		jobRepository,
		documentRepository,
		chunkRepository,
		pipelineMetrics,
		worker.Config{
			JobTimeout:     cfg.Worker.JobTimeout,
			Chunking:       cfg.Chunking,
			EmbedBatchSize: cfg.Gemini.BatchSize,
		},
	)
	if err != nil {
		return nil, err
	}

	workerService := service.NewDefaultWorkerService(service.WorkerServiceConfig{
		Concurrency:     cfg.Worker.Concurrency,
		QueueGroup:      cfg.Worker.QueueGroup,
		JobTimeout:      cfg.Worker.JobTimeout,
		ShutdownTimeout: 30 * time.Second,
	})

	// One consumer per concurrency slot, all in the same queue group, so
	// the queue spreads jobs across them.
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		consumerConfig := inboundmessaging.ConsumerConfig{
			Subject:       "ingestion.job",
			QueueGroup:    cfg.Worker.QueueGroup,
			DurableName:   "ingestion-consumer",
			AckWait:       cfg.Worker.JobTimeout + time.Minute,
			MaxDeliver:    cfg.Worker.MaxAttempts,
			MaxAckPending: cfg.Worker.Concurrency,
		}

		consumer, err := inboundmessaging.NewNATSConsumer(consumerConfig, cfg.NATS, jobProcessor, jobRepository)
		if err != nil {
			return nil, err
		}
		if err := workerService.AddConsumer(consumer); err != nil {
			return nil, err
		}
	}

	return workerService, nil
}

// createEmbeddingService builds the provenance embedding service, preferring
// Gemini but falling back to the deterministic offline provider.
func createEmbeddingService(cfg *config.Config, meter outbound.UsageMeter) (outbound.EmbeddingService, error) {
	provenance := cfg.Embedding
	if provenance == (valueobject.EmbeddingConfig{}) {
		provenance = valueobject.DefaultEmbeddingConfig()
	}

	geminiAPIKey := cfg.Gemini.APIKey
	if geminiAPIKey == "" {
		geminiAPIKey = os.Getenv("GEMINI_API_KEY")
		if geminiAPIKey == "" {
			geminiAPIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}

	var provider outbound.EmbeddingProvider
	if geminiAPIKey != "" {
		client, err := gemini.NewClient(&gemini.ClientConfig{
			APIKey:     geminiAPIKey,
			Model:      cfg.Gemini.Model,
			Timeout:    cfg.Gemini.Timeout,
			MaxRetries: cfg.Gemini.MaxRetries,
			Dimensions: provenance.Dimensions,
		})
		if err != nil {
			slogger.ErrorNoCtx("Failed to create Gemini client, falling back to deterministic provider", slogger.Fields{
				"error": err.Error(),
			})
		} else {
			slogger.InfoNoCtx("Using Gemini embedding service", slogger.Fields{"model": cfg.Gemini.Model})
			provider = client
		}
	} else {
		slogger.WarnNoCtx(
			"No Gemini API key found (DOCINGEST_GEMINI_API_KEY, GEMINI_API_KEY or GOOGLE_API_KEY), "+
				"falling back to deterministic provider", nil)
	}

	if provider == nil {
		fallback := simple.New()
		model, dimensions := fallback.ModelInfo()
		provenance.Provider = "simple"
		provenance.Model = model
		provenance.Dimensions = dimensions
		provider = fallback
	}

	return embeddings.NewProvenanceEmbedder(provider, meter, provenance)
}

// waitForShutdownAndStop waits for a shutdown signal and stops the service
// gracefully.
func waitForShutdownAndStop(workerService *service.DefaultWorkerService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slogger.InfoNoCtx("Received shutdown signal, initiating graceful shutdown", slogger.Fields{
		"signal": sig.String(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := workerService.Stop(shutdownCtx); err != nil {
		slogger.ErrorNoCtx("Error during worker service shutdown", slogger.Fields{"error": err.Error()})
		return
	}
	slogger.InfoNoCtx("Worker service shutdown completed", nil)
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newWorkerCmd())
}
