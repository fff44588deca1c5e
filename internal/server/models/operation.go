package models

import "time"

// Operation is one immutable record of a vault's append-only log.
type Operation struct {
	VaultID string
	// Seq is assigned by the store at commit time, strictly increasing and
	// gapless per vault.
	Seq int64
	// FileID is an optional logical file reference ("" when absent).
	FileID string
	OpType string
	// Payload is the raw JSON value as stored; the core never interprets it
	// except for blob_ref ops.
	Payload []byte
	// IdempotencyKey is the primary idempotence contract: a duplicate push
	// of the same key returns the already-assigned Seq.
	IdempotencyKey string
	AuthorDeviceID string
	CreatedAt      time.Time
}

// Op types accepted by the log.
const (
	OpTypeMdUpdate   = "md_update"
	OpTypeFileCreate = "file_create"
	OpTypeFileRename = "file_rename"
	OpTypeFileDelete = "file_delete"
	OpTypeBlobRef    = "blob_ref"
	OpTypeKeyRotate  = "key_rotate"
)
