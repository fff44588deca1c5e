// Package vaults provides the PostgreSQL-backed repository for vault rows,
// including the per-vault sequence allocator used by the push path.
package vaults

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

func (r *PostgresRepository) Create(ctx context.Context, vault *models.Vault) (*models.Vault, error) {
	query :=
		`INSERT INTO vaults (id, owner, name)
		 VALUES ($1, $2, $3)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		vault.ID, vault.Owner, vault.Name).Scan(&vault.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vault, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Vault, error) {
	query :=
		`SELECT id, owner, name, current_seq, created_at FROM vaults
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the vault row for the duration of the surrounding
// transaction, serializing all writers of one vault.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Vault, error) {
	query :=
		`SELECT id, owner, name, current_seq, created_at FROM vaults
		 WHERE id = $1
		 FOR UPDATE
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Vault, error) {
	vault := &models.Vault{}
	err := row.Scan(&vault.ID, &vault.Owner, &vault.Name, &vault.CurrentSeq, &vault.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vault, nil
}

// IncrementCurrentSeq allocates the next sequence number for the vault.
// Callers must hold the vault row lock (GetForUpdate) so that allocation
// order equals insertion order.
func (r *PostgresRepository) IncrementCurrentSeq(ctx context.Context, id string) (int64, error) {
	query :=
		`UPDATE vaults SET current_seq = current_seq + 1
		 WHERE id = $1
		 RETURNING current_seq
		 `

	var seq int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&seq)

	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return seq, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]*models.Vault, error) {
	query :=
		`SELECT id, owner, name, current_seq, created_at FROM vaults
		 WHERE owner = $1
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select vaults: %w", err)
	}
	defer rows.Close()

	var result []*models.Vault
	for rows.Next() {
		var item models.Vault
		if err := rows.Scan(&item.ID, &item.Owner, &item.Name, &item.CurrentSeq, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
