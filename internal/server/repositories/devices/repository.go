package devices

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

type Repository interface {
	Touch(ctx context.Context, id, owner string) error
	Register(ctx context.Context, device *models.Device) (*models.Device, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.Device, error)
}
