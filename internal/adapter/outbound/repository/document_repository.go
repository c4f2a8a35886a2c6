package repository

import (
	"context"

	"docingest/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLDocumentRepository implements the DocumentRepository interface.
type PostgreSQLDocumentRepository struct {
	pool *pgxpool.Pool
	tx   *TransactionManager
}

// NewPostgreSQLDocumentRepository creates a new PostgreSQL document
// repository.
func NewPostgreSQLDocumentRepository(pool *pgxpool.Pool) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{
		pool: pool,
		tx:   NewTransactionManager(pool),
	}
}

// GetTitle returns the document title for a version, or empty string when
// the version has no title.
func (r *PostgreSQLDocumentRepository) GetTitle(ctx context.Context, versionID uuid.UUID) (string, error) {
	if versionID == uuid.Nil {
		return "", ErrInvalidArgument
	}

	query := `
		SELECT COALESCE(title, '')
		FROM docingest.document_versions
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	var title string
	if err := qi.QueryRow(ctx, query, versionID).Scan(&title); err != nil {
		if IsNotFoundError(err) {
			return "", nil
		}
		return "", WrapError(err, "get document title")
	}
	return title, nil
}

// IsDeleted reports whether the owning document version has been soft
// deleted. A missing row counts as deleted: there is nothing left to ingest
// into.
func (r *PostgreSQLDocumentRepository) IsDeleted(ctx context.Context, versionID uuid.UUID) (bool, error) {
	if versionID == uuid.Nil {
		return false, ErrInvalidArgument
	}

	query := `
		SELECT deleted_at IS NOT NULL
		FROM docingest.document_versions
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	var deleted bool
	if err := qi.QueryRow(ctx, query, versionID).Scan(&deleted); err != nil {
		if IsNotFoundError(err) {
			return true, nil
		}
		return false, WrapError(err, "check document deleted")
	}
	return deleted, nil
}

// SavePages replaces the stored pages for a document version. The delete and
// inserts share one transaction so a version never has a partial page set.
func (r *PostgreSQLDocumentRepository) SavePages(
	ctx context.Context,
	versionID uuid.UUID,
	pages []outbound.ParsedPage,
) error {
	if versionID == uuid.Nil {
		return ErrInvalidArgument
	}

	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		qi := GetQueryInterface(txCtx, r.pool)

		deleteQuery := `DELETE FROM docingest.document_pages WHERE document_version_id = $1`
		if _, err := qi.Exec(txCtx, deleteQuery, versionID); err != nil {
			return WrapError(err, "clear document pages")
		}

		insertQuery := `
			INSERT INTO docingest.document_pages (
				id, document_version_id, page_number, content, char_count, created_at
			) VALUES ($1, $2, $3, $4, $5, NOW())`

		for _, page := range pages {
			if _, err := qi.Exec(txCtx, insertQuery,
				uuid.New(), versionID, page.PageNumber, page.Content, page.CharCount,
			); err != nil {
				return WrapError(err, "save document page")
			}
		}

		return nil
	})
}
