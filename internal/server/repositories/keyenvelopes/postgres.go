// Package keyenvelopes provides the PostgreSQL-backed repository for
// per-device encrypted vault keys. Envelope contents are opaque to the core.
package keyenvelopes

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

func (r *PostgresRepository) Put(ctx context.Context, envelope *models.KeyEnvelope) error {
	query := `
		INSERT INTO key_envelopes (vault_id, device_id, version, encrypted_vault_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vault_id, device_id, version)
		DO UPDATE SET encrypted_vault_key = EXCLUDED.encrypted_vault_key;
	`
	_, err := r.db.ExecContext(ctx, query,
		envelope.VaultID, envelope.DeviceID, envelope.Version, envelope.EncryptedVaultKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, vaultID, deviceID string, version int64) (*models.KeyEnvelope, error) {
	query :=
		`SELECT vault_id, device_id, version, encrypted_vault_key, created_at FROM key_envelopes
		 WHERE vault_id = $1 AND device_id = $2 AND version = $3
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, vaultID, deviceID, version))
}

func (r *PostgresRepository) Latest(ctx context.Context, vaultID, deviceID string) (*models.KeyEnvelope, error) {
	query :=
		`SELECT vault_id, device_id, version, encrypted_vault_key, created_at FROM key_envelopes
		 WHERE vault_id = $1 AND device_id = $2
		 ORDER BY version DESC
		 LIMIT 1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, vaultID, deviceID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.KeyEnvelope, error) {
	envelope := &models.KeyEnvelope{}
	err := row.Scan(&envelope.VaultID, &envelope.DeviceID, &envelope.Version,
		&envelope.EncryptedVaultKey, &envelope.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return envelope, nil
}
