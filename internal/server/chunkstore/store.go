// Package chunkstore stores opaque ciphertext chunks keyed by
// (blob hash, chunk index). Two backends exist: a local filesystem tree and
// an S3-compatible bucket. Both guarantee that a successful WriteChunk
// followed by ReadChunk of the returned key yields byte-identical content,
// and that readers never observe partial writes.
package chunkstore

import (
	"context"
	"path"
	"strconv"
)

type Store interface {
	WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (storageKey string, err error)
	ReadChunk(ctx context.Context, storageKey string) ([]byte, error)
}

// ChunkKey is the backend-independent locator layout: blobs/{hash}/{index}.bin.
func ChunkKey(blobHash string, index int) string {
	return path.Join("blobs", blobHash, strconv.Itoa(index)+".bin")
}
