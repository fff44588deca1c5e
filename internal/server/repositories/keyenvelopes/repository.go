package keyenvelopes

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

type Repository interface {
	Put(ctx context.Context, envelope *models.KeyEnvelope) error
	Get(ctx context.Context, vaultID, deviceID string, version int64) (*models.KeyEnvelope, error)
	Latest(ctx context.Context, vaultID, deviceID string) (*models.KeyEnvelope, error)
}
