// Package cursors provides the PostgreSQL-backed repository for per-device
// sync cursors.
package cursors

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

const upsertSet = `
	INSERT INTO sync_cursors (device_id, vault_id, last_applied_seq)
	VALUES ($1, $2, $3)
	ON CONFLICT (device_id, vault_id)
	DO UPDATE SET
		last_applied_seq = EXCLUDED.last_applied_seq,
		updated_at = now();
`

const upsertMax = `
	INSERT INTO sync_cursors (device_id, vault_id, last_applied_seq)
	VALUES ($1, $2, $3)
	ON CONFLICT (device_id, vault_id)
	DO UPDATE SET
		last_applied_seq = GREATEST(sync_cursors.last_applied_seq, EXCLUDED.last_applied_seq),
		updated_at = now();
`

func (r *PostgresRepository) Upsert(ctx context.Context, deviceID, vaultID string, seq int64, policy Policy) error {
	var query string
	switch policy {
	case PolicySet:
		query = upsertSet
	case PolicyMax:
		query = upsertMax
	default:
		return fmt.Errorf("unknown cursor policy: %q", policy)
	}

	_, err := r.db.ExecContext(ctx, query, deviceID, vaultID, seq)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, deviceID, vaultID string) (*models.SyncCursor, error) {
	query :=
		`SELECT device_id, vault_id, last_applied_seq, updated_at FROM sync_cursors
		 WHERE device_id = $1 AND vault_id = $2
		 `

	cursor := &models.SyncCursor{}
	err := r.db.QueryRowContext(ctx, query, deviceID, vaultID).Scan(
		&cursor.DeviceID, &cursor.VaultID, &cursor.LastAppliedSeq, &cursor.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cursor, nil
}
