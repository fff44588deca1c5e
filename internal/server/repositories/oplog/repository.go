package oplog

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

type Repository interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Operation, error)
	Insert(ctx context.Context, op *models.Operation) error
	SelectSince(ctx context.Context, vaultID string, sinceSeq int64, limit int) ([]*models.Operation, error)
}
