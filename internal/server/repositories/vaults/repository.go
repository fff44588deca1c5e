package vaults

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, vault *models.Vault) (*models.Vault, error)
	Get(ctx context.Context, id string) (*models.Vault, error)
	GetForUpdate(ctx context.Context, id string) (*models.Vault, error)
	IncrementCurrentSeq(ctx context.Context, id string) (int64, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.Vault, error)
}
