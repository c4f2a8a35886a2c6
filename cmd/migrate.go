package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docingest/internal/adapter/outbound/repository"
	"docingest/internal/application/common/slogger"
)

// newMigrateCmd creates and returns the migrate command.
func newMigrateCmd() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run database migrations to set up or update the database schema.

Applies the .sql files from the migrations directory in lexical order,
recording each applied file so re-runs are no-ops. Requires the pgvector
extension for chunk embedding storage.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMigrations(migrationsDir)
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "dir", "./migrations", "Directory containing migration .sql files")
	return cmd
}

func runMigrations(dir string) error {
	cfg := GetConfig()

	pool, err := setupDatabaseConnection(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	tm := repository.NewTransactionManager(pool)
	applied := 0
	for _, file := range files {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, file,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if exists {
			continue
		}

		sql, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		err = tm.WithTransaction(ctx, func(txCtx context.Context) error {
			qi := repository.GetQueryInterface(txCtx, pool)
			if _, execErr := qi.Exec(txCtx, string(sql)); execErr != nil {
				return execErr
			}
			_, recordErr := qi.Exec(txCtx,
				`INSERT INTO schema_migrations (filename) VALUES ($1)`, file)
			return recordErr
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}

		slogger.InfoNoCtx("Applied migration", slogger.Fields{"file": file})
		applied++
	}

	slogger.InfoNoCtx("Migrations complete", slogger.Fields{
		"applied": applied,
		"total":   len(files),
	})
	return nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newMigrateCmd())
}
