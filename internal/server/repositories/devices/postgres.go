// Package devices provides the PostgreSQL-backed repository for device rows.
package devices

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

// Touch records that the device was seen now, creating the row on first
// contact. A device id registered to a different owner is left untouched;
// touch is advisory and never fails the surrounding request.
func (r *PostgresRepository) Touch(ctx context.Context, id, owner string) error {
	query := `
		INSERT INTO devices (id, owner)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET last_seen_at = now()
			WHERE devices.owner = EXCLUDED.owner;
	`
	_, err := r.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Register upserts the full device row. The update only applies when the
// existing row belongs to the same owner; otherwise ErrForbidden.
func (r *PostgresRepository) Register(ctx context.Context, device *models.Device) (*models.Device, error) {
	query := `
		INSERT INTO devices (id, owner, display_name, public_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			public_key = EXCLUDED.public_key,
			last_seen_at = now()
			WHERE devices.owner = EXCLUDED.owner
		RETURNING id, owner, display_name, public_key, last_seen_at;
	`
	got := &models.Device{}
	err := r.db.QueryRowContext(ctx, query,
		device.ID, device.Owner, device.DisplayName, device.PublicKey).
		Scan(&got.ID, &got.Owner, &got.DisplayName, &got.PublicKey, &got.LastSeenAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return got, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]*models.Device, error) {
	query :=
		`SELECT id, owner, display_name, public_key, last_seen_at FROM devices
		 WHERE owner = $1
		 ORDER BY last_seen_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select devices: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		var item models.Device
		if err := rows.Scan(&item.ID, &item.Owner, &item.DisplayName, &item.PublicKey, &item.LastSeenAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
