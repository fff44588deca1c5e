// Package oplog provides the PostgreSQL-backed repository for the
// append-only operation log. Rows are never updated or deleted.
package oplog

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

// GetByIdempotencyKey returns the already-recorded op for a key, or
// common.ErrNotFound. The push path uses this as its duplicate check while
// holding the vault row lock.
func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Operation, error) {
	query :=
		`SELECT vault_id, seq, COALESCE(file_id, ''), op_type, payload, idempotency_key,
		        COALESCE(author_device_id::text, ''), created_at
		 FROM op_log
		 WHERE idempotency_key = $1
		 `

	op := &models.Operation{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&op.VaultID, &op.Seq, &op.FileID, &op.OpType, &op.Payload,
		&op.IdempotencyKey, &op.AuthorDeviceID, &op.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return op, nil
}

// Insert appends the op with its pre-allocated seq and fills in the server
// commit timestamp.
func (r *PostgresRepository) Insert(ctx context.Context, op *models.Operation) error {
	query :=
		`INSERT INTO op_log (vault_id, seq, file_id, op_type, payload, idempotency_key, author_device_id)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, '')::uuid)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		op.VaultID, op.Seq, op.FileID, op.OpType, op.Payload,
		op.IdempotencyKey, op.AuthorDeviceID).Scan(&op.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// SelectSince returns ops with seq > sinceSeq ordered by seq ascending,
// capped at limit. Callers clamp limit before calling.
func (r *PostgresRepository) SelectSince(ctx context.Context, vaultID string, sinceSeq int64, limit int) ([]*models.Operation, error) {
	query :=
		`SELECT vault_id, seq, COALESCE(file_id, ''), op_type, payload, idempotency_key,
		        COALESCE(author_device_id::text, ''), created_at
		 FROM op_log
		 WHERE vault_id = $1 AND seq > $2
		 ORDER BY seq
		 LIMIT $3
		 `

	rows, err := r.db.QueryContext(ctx, query, vaultID, sinceSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select ops: %w", err)
	}
	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		var item models.Operation
		if err := rows.Scan(
			&item.VaultID, &item.Seq, &item.FileID, &item.OpType, &item.Payload,
			&item.IdempotencyKey, &item.AuthorDeviceID, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
