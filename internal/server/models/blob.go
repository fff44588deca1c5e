package models

import "time"

// Blob is a content-addressed ciphertext object. Hash identifies the full
// ciphertext; the declared Size and ChunkCount are minimum thresholds
// checked at commit time.
type Blob struct {
	Hash       string
	Size       int64
	ChunkCount int
	CipherAlg  string
	// CommittedAt is nil until the commit phase proves completeness.
	// Readers only see committed blobs.
	CommittedAt *time.Time
	CreatedAt   time.Time
}

// Committed reports whether the blob has been published for reads.
func (b *Blob) Committed() bool {
	return b.CommittedAt != nil
}

// BlobChunk maps (BlobHash, Index) to the stored ciphertext piece.
// ChunkHash is the digest of the bytes exactly as stored; StorageKey is the
// chunk object store locator.
type BlobChunk struct {
	BlobHash   string
	Index      int
	ChunkHash  string
	Size       int64
	StorageKey string
}
