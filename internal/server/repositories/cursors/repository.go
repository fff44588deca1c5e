package cursors

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

// Policy selects how Upsert treats an existing cursor value.
type Policy string

const (
	// PolicySet replaces the stored seq unconditionally.
	PolicySet Policy = "set"
	// PolicyMax keeps the greater of the stored and the given seq.
	PolicyMax Policy = "max"
)

type Repository interface {
	Upsert(ctx context.Context, deviceID, vaultID string, seq int64, policy Policy) error
	Get(ctx context.Context, deviceID, vaultID string) (*models.SyncCursor, error)
}
