package chunkstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/filex"
)

// Filesystem stores chunks as files under a root directory, laid out as
// {root}/blobs/{hash}/{index}.bin. Writes go through a temp file plus
// rename, so a crash mid-write never leaves a partial chunk under the
// final name.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed and returns the store.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("chunk root: %w", err)
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) WriteChunk(_ context.Context, blobHash string, index int, data []byte) (string, error) {
	key := ChunkKey(blobHash, index)

	path, err := f.resolve(key)
	if err != nil {
		return "", err
	}

	if err := filex.WriteFileAtomic(path, data, 0o660); err != nil {
		return "", fmt.Errorf("write chunk %s: %w", key, err)
	}

	return key, nil
}

func (f *Filesystem) ReadChunk(_ context.Context, storageKey string) ([]byte, error) {
	path, err := f.resolve(storageKey)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrChunkNotFound
		}
		return nil, fmt.Errorf("read chunk %s: %w", storageKey, err)
	}

	return data, nil
}

// resolve maps a storage key onto an absolute path, rejecting keys that
// would escape the root. Keys come from our own database, but the check is
// cheap and the key column is reachable through SQL.
func (f *Filesystem) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key escapes chunk root: %q", storageKey)
	}
	return filepath.Join(f.root, clean), nil
}
