// Package config holds the application configuration loaded through Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"docingest/internal/domain/service"
	"docingest/internal/domain/valueobject"
	"docingest/internal/port/outbound"
)

// Config holds the complete application configuration.
type Config struct {
	Worker      WorkerConfig                `mapstructure:"worker"`
	Database    DatabaseConfig              `mapstructure:"database"`
	NATS        NATSConfig                  `mapstructure:"nats"`
	Gemini      GeminiConfig                `mapstructure:"gemini"`
	Embedding   valueobject.EmbeddingConfig `mapstructure:"embedding"`
	Chunking    outbound.ChunkingConfig     `mapstructure:"chunking"`
	QualityGate service.QualityGateConfig   `mapstructure:"quality_gate"`
	Log         LogConfig                   `mapstructure:"log"`
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	QueueGroup  string        `mapstructure:"queue_group"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	Schema         string `mapstructure:"schema"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	ObjectBucket  string        `mapstructure:"object_bucket"`
}

// GeminiConfig holds Gemini API configuration.
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BatchSize  int           `mapstructure:"batch_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}

	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Worker.JobTimeout < 0 {
		return errors.New("worker.job_timeout cannot be negative")
	}

	if c.Gemini.BatchSize < 0 {
		return errors.New("gemini.batch_size cannot be negative")
	}

	if c.Embedding != (valueobject.EmbeddingConfig{}) {
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
	}

	return nil
}
