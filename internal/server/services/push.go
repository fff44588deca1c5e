package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/cryptox"
	"github.com/obsync-io/obsync/internal/dbx"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/realtime"
	"github.com/obsync-io/obsync/internal/server/repositories/cursors"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

const (
	// MaxPushBatch caps ops per push request.
	MaxPushBatch = 100
	// MaxIdempotencyKeyLen caps the client-chosen idempotency key.
	MaxIdempotencyKeyLen = 255
)

var validOpTypes = map[string]bool{
	models.OpTypeMdUpdate:   true,
	models.OpTypeFileCreate: true,
	models.OpTypeFileRename: true,
	models.OpTypeFileDelete: true,
	models.OpTypeBlobRef:    true,
	models.OpTypeKeyRotate:  true,
}

// PushOp is one client-submitted operation. Fields the server does not
// interpret (path, logicalClock, client timestamps) stay inside Payload.
type PushOp struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	OpType         string          `json:"opType"`
	FileID         string          `json:"fileId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	DeviceID       string          `json:"deviceId,omitempty"`
}

type PushRequest struct {
	DeviceID string   `json:"deviceId"`
	Cursor   int64    `json:"cursor"`
	Ops      []PushOp `json:"ops"`
}

// MissingChunkRef points at a blob the log now references but the store
// cannot serve yet.
type MissingChunkRef struct {
	BlobHash string `json:"blobHash"`
	Index    int    `json:"index"`
}

type PushResult struct {
	AcknowledgedSeq int64             `json:"acknowledgedSeq"`
	AppliedCount    int               `json:"appliedCount"`
	MissingChunks   []MissingChunkRef `json:"missingChunks"`
	RebaseRequired  bool              `json:"rebaseRequired"`
}

// PushService appends client batches to a vault's operation log.
type PushService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
	bus         *realtime.Bus
}

func NewPushService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate, bus *realtime.Bus) *PushService {
	return &PushService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
		bus:         bus,
	}
}

type blobRef struct {
	BlobHash string `json:"blobHash"`
	Index    int    `json:"index"`
}

func validatePush(req *PushRequest) (map[int]blobRef, error) {
	fields := map[string]string{}

	if !isUUID(req.DeviceID) {
		fields["deviceId"] = "must be a UUID"
	}
	if req.Cursor < 0 {
		fields["cursor"] = "must not be negative"
	}
	switch {
	case len(req.Ops) == 0:
		fields["ops"] = "must contain at least one op"
	case len(req.Ops) > MaxPushBatch:
		fields["ops"] = fmt.Sprintf("must contain at most %d ops", MaxPushBatch)
	}

	refs := map[int]blobRef{}
	for i := range req.Ops {
		op := &req.Ops[i]
		name := fmt.Sprintf("ops[%d]", i)

		if op.IdempotencyKey == "" || len(op.IdempotencyKey) > MaxIdempotencyKeyLen {
			fields[name+".idempotencyKey"] = fmt.Sprintf("must be 1..%d characters", MaxIdempotencyKeyLen)
		}
		if !validOpTypes[op.OpType] {
			fields[name+".opType"] = "unknown op type"
		}
		if op.DeviceID != "" && !isUUID(op.DeviceID) {
			fields[name+".deviceId"] = "must be a UUID"
		}

		if len(op.Payload) == 0 || !json.Valid(op.Payload) {
			fields[name+".payload"] = "must be a JSON value"
			continue
		}
		if op.OpType == models.OpTypeBlobRef {
			var ref blobRef
			if err := json.Unmarshal(op.Payload, &ref); err != nil || !cryptox.IsHexDigest(ref.BlobHash) || ref.Index < 0 {
				fields[name+".payload"] = "must carry blobHash (hex digest) and a non-negative index"
				continue
			}
			ref.BlobHash = strings.ToLower(ref.BlobHash)
			refs[i] = ref
		}
	}

	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidPushPayload, fields)
	}
	return refs, nil
}

// Push appends the batch to the vault log inside a single transaction and
// fans the newly committed ops out to realtime subscribers afterwards.
//
// Ops whose idempotency key is already recorded are acknowledged without
// being re-appended, so retrying a batch never duplicates or reorders the
// log. AcknowledgedSeq never moves backwards from the cursor the client
// sent.
func (s *PushService) Push(ctx context.Context, principal auth.Principal, vaultID string, req *PushRequest) (*PushResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	refs, err := validatePush(req)
	if err != nil {
		return nil, err
	}

	result := &PushResult{
		AcknowledgedSeq: req.Cursor,
		MissingChunks:   []MissingChunkRef{},
	}
	var events []realtime.Event

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		vaultRepo := s.repomanager.Vaults(tx)
		opRepo := s.repomanager.Ops(tx)
		blobRepo := s.repomanager.Blobs(tx)

		// Serialize writers per vault for the whole batch. This is what
		// keeps seq allocation gapless: the row lock is released only at
		// commit, after every allocated seq is inserted.
		if _, err := vaultRepo.GetForUpdate(ctx, vaultID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrVaultNotFound
			}
			return err
		}

		for i := range req.Ops {
			op := &req.Ops[i]

			existing, err := opRepo.GetByIdempotencyKey(ctx, op.IdempotencyKey)
			switch {
			case err == nil:
				// Replay. Re-acknowledge the recorded seq, unless the key
				// was first used against another vault (client bug): then
				// the op is dropped without moving this vault's cursor.
				if existing.VaultID == vaultID && existing.Seq > result.AcknowledgedSeq {
					result.AcknowledgedSeq = existing.Seq
				}
			case errors.Is(err, common.ErrNotFound):
				seq, err := vaultRepo.IncrementCurrentSeq(ctx, vaultID)
				if err != nil {
					return err
				}

				record := &models.Operation{
					VaultID:        vaultID,
					Seq:            seq,
					FileID:         op.FileID,
					OpType:         op.OpType,
					Payload:        op.Payload,
					IdempotencyKey: op.IdempotencyKey,
					AuthorDeviceID: op.DeviceID,
				}
				if err := opRepo.Insert(ctx, record); err != nil {
					return err
				}

				result.AppliedCount++
				if seq > result.AcknowledgedSeq {
					result.AcknowledgedSeq = seq
				}
				events = append(events, realtime.Event{
					VaultID:   vaultID,
					Seq:       seq,
					OpType:    record.OpType,
					Payload:   json.RawMessage(record.Payload),
					CreatedAt: record.CreatedAt,
				})
			default:
				return err
			}

			// blob_ref ops are recorded even when the blob is not servable
			// yet; the response carries the diagnostic so the client can
			// finish or redo the upload. Replays are re-checked too: a
			// retry after the upload completes comes back clean.
			if ref, ok := refs[i]; ok {
				blob, err := blobRepo.Get(ctx, ref.BlobHash)
				switch {
				case errors.Is(err, common.ErrNotFound):
					result.MissingChunks = append(result.MissingChunks, MissingChunkRef{BlobHash: ref.BlobHash, Index: ref.Index})
				case err != nil:
					return err
				case !blob.Committed():
					result.MissingChunks = append(result.MissingChunks, MissingChunkRef{BlobHash: ref.BlobHash, Index: ref.Index})
				}
			}
		}

		if err := s.repomanager.Cursors(tx).Upsert(ctx, req.DeviceID, vaultID, result.AcknowledgedSeq, cursors.PolicySet); err != nil {
			return err
		}
		return s.repomanager.Devices(tx).Touch(ctx, req.DeviceID, principal.UserID)
	})
	if err != nil {
		return nil, err
	}

	// Publish only after the transaction commits, in seq order, so
	// subscribers never see an op that could still roll back.
	for _, event := range events {
		s.bus.Publish(ctx, event)
	}

	return result, nil
}
