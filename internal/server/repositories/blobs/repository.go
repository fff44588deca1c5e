package blobs

import (
	"context"

	"github.com/obsync-io/obsync/internal/server/models"
)

type Repository interface {
	UpsertManifest(ctx context.Context, blob *models.Blob) error
	Get(ctx context.Context, hash string) (*models.Blob, error)
	UpsertChunk(ctx context.Context, chunk *models.BlobChunk) error
	CountChunks(ctx context.Context, blobHash string) (count int, sumSize int64, err error)
	ListChunks(ctx context.Context, blobHash string) ([]*models.BlobChunk, error)
	GetChunk(ctx context.Context, blobHash string, index int) (*models.BlobChunk, error)
	MarkCommitted(ctx context.Context, hash string) error
}
