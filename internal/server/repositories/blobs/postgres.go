// Package blobs provides the PostgreSQL-backed repository for blob
// manifests and the chunk index.
package blobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/dbx"
	"github.com/obsync-io/obsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertManifest records the declared manifest; a manifest already present
// for the hash is left untouched (init is idempotent).
func (r *PostgresRepository) UpsertManifest(ctx context.Context, blob *models.Blob) error {
	query := `
		INSERT INTO blobs (hash, size, chunk_count, cipher_alg)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING;
	`
	_, err := r.db.ExecContext(ctx, query, blob.Hash, blob.Size, blob.ChunkCount, blob.CipherAlg)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, hash string) (*models.Blob, error) {
	query :=
		`SELECT hash, size, chunk_count, cipher_alg, committed_at, created_at FROM blobs
		 WHERE hash = $1
		 `

	blob := &models.Blob{}
	var committedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&blob.Hash, &blob.Size, &blob.ChunkCount, &blob.CipherAlg, &committedAt, &blob.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if committedAt.Valid {
		blob.CommittedAt = &committedAt.Time
	}

	return blob, nil
}

// UpsertChunk replaces on conflict: re-uploading a verified chunk for the
// same index overwrites idempotently.
func (r *PostgresRepository) UpsertChunk(ctx context.Context, chunk *models.BlobChunk) error {
	query := `
		INSERT INTO blob_chunks (blob_hash, idx, chunk_hash, size, storage_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (blob_hash, idx)
		DO UPDATE SET
			chunk_hash = EXCLUDED.chunk_hash,
			size = EXCLUDED.size,
			storage_key = EXCLUDED.storage_key;
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.BlobHash, chunk.Index, chunk.ChunkHash, chunk.Size, chunk.StorageKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountChunks(ctx context.Context, blobHash string) (int, int64, error) {
	query :=
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM blob_chunks
		 WHERE blob_hash = $1
		 `

	var count int
	var sumSize int64
	err := r.db.QueryRowContext(ctx, query, blobHash).Scan(&count, &sumSize)
	if err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}

	return count, sumSize, nil
}

func (r *PostgresRepository) ListChunks(ctx context.Context, blobHash string) ([]*models.BlobChunk, error) {
	query :=
		`SELECT blob_hash, idx, chunk_hash, size, storage_key FROM blob_chunks
		 WHERE blob_hash = $1
		 ORDER BY idx
		 `

	rows, err := r.db.QueryContext(ctx, query, blobHash)
	if err != nil {
		return nil, fmt.Errorf("failed to select chunks: %w", err)
	}
	defer rows.Close()

	var result []*models.BlobChunk
	for rows.Next() {
		var item models.BlobChunk
		if err := rows.Scan(&item.BlobHash, &item.Index, &item.ChunkHash, &item.Size, &item.StorageKey); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetChunk(ctx context.Context, blobHash string, index int) (*models.BlobChunk, error) {
	query :=
		`SELECT blob_hash, idx, chunk_hash, size, storage_key FROM blob_chunks
		 WHERE blob_hash = $1 AND idx = $2
		 `

	chunk := &models.BlobChunk{}
	err := r.db.QueryRowContext(ctx, query, blobHash, index).Scan(
		&chunk.BlobHash, &chunk.Index, &chunk.ChunkHash, &chunk.Size, &chunk.StorageKey,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return chunk, nil
}

// MarkCommitted publishes the blob for reads. Only the first call flips the
// timestamp; re-committing an already committed blob is a no-op.
func (r *PostgresRepository) MarkCommitted(ctx context.Context, hash string) error {
	query := `
		UPDATE blobs SET committed_at = now()
		WHERE hash = $1 AND committed_at IS NULL;
	`
	_, err := r.db.ExecContext(ctx, query, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
