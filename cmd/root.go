// Package cmd provides the command-line interface for the docingest
// application.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docingest/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docingest",
	Short: "A document ingestion and embedding pipeline",
	Long: `DocIngest converts uploaded and scraped documents into searchable,
embedded text chunks for a multi-tenant platform.

The system supports:
- Staged job processing: download, parse, quality gate, chunk, embed, persist
- Plain text, Markdown, PDF and HTML extraction
- Extraction quality gating with fail-closed heuristics
- Provenance-tagged embeddings via Google Gemini
- Vector storage with PostgreSQL/pgvector
- Asynchronous job processing with NATS JetStream`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}
}

func initConfig() {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DOCINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}

	cfg = config.New(v)
}

func setDefaults(v *viper.Viper) {
	// Worker defaults
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_group", "ingestion-workers")
	v.SetDefault("worker.job_timeout", "300s")
	v.SetDefault("worker.max_attempts", 3)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "docingest")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "docingest")
	v.SetDefault("database.max_connections", 25)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.object_bucket", "documents")

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-embedding-001")
	v.SetDefault("gemini.timeout", "30s")
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.batch_size", 50)

	// Embedding provenance defaults
	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.preprocess_version", "v1")

	// Chunking defaults
	v.SetDefault("chunking.max_chunk_size", 1000)
	v.SetDefault("chunking.min_chunk_size", 200)
	v.SetDefault("chunking.overlap_size", 100)

	// Quality gate defaults
	v.SetDefault("quality_gate.min_avg_chars_per_page", 25)
	v.SetDefault("quality_gate.max_garbled_ratio", 0.05)
	v.SetDefault("quality_gate.warn_short_doc_chars", 200)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}
