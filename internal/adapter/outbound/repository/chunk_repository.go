package repository

import (
	"context"
	"fmt"

	"docingest/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLChunkRepository implements the ChunkStorageRepository interface.
// Chunks and their pgvector embeddings are written in one transaction so a
// document version never has a partial chunk set.
type PostgreSQLChunkRepository struct {
	pool *pgxpool.Pool
	tx   *TransactionManager
}

// NewPostgreSQLChunkRepository creates a new PostgreSQL chunk repository.
func NewPostgreSQLChunkRepository(pool *pgxpool.Pool) *PostgreSQLChunkRepository {
	return &PostgreSQLChunkRepository{
		pool: pool,
		tx:   NewTransactionManager(pool),
	}
}

// SaveChunksWithEmbeddings replaces the chunk set for a document version.
// Records are positional: record i is chunk i with its embedding and
// provenance.
func (r *PostgreSQLChunkRepository) SaveChunksWithEmbeddings(
	ctx context.Context,
	versionID, tenantID uuid.UUID,
	records []outbound.ChunkRecord,
) error {
	if versionID == uuid.Nil || tenantID == uuid.Nil {
		return ErrInvalidArgument
	}
	for i, record := range records {
		if record.Embedding == nil {
			return fmt.Errorf("chunk record %d has no embedding: %w", i, ErrInvalidArgument)
		}
	}

	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		qi := GetQueryInterface(txCtx, r.pool)

		deleteQuery := `DELETE FROM docingest.chunks WHERE document_version_id = $1`
		if _, err := qi.Exec(txCtx, deleteQuery, versionID); err != nil {
			return WrapError(err, "clear chunks")
		}

		insertQuery := `
			INSERT INTO docingest.chunks (
				id, document_version_id, tenant_id, chunk_index, content,
				start_char, end_char, first_page, last_page,
				embedding, embedding_provider, embedding_model,
				embedding_dimensions, preprocess_version, content_hash,
				token_count, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9,
				$10::vector, $11, $12, $13, $14, $15, $16, NOW()
			)`

		for _, record := range records {
			chunk := record.Chunk
			embedding := record.Embedding
			if _, err := qi.Exec(txCtx, insertQuery,
				uuid.New(), versionID, tenantID, chunk.Index, chunk.Content,
				chunk.StartChar, chunk.EndChar, chunk.FirstPage, chunk.LastPage,
				VectorToString(embedding.Vector), embedding.Provider, embedding.Model,
				embedding.Dimensions, embedding.PreprocessVersion, embedding.ContentHash,
				embedding.TokenCount,
			); err != nil {
				return WrapError(err, "save chunk with embedding")
			}
		}

		return nil
	})
}
