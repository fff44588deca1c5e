package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/cursors"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

const (
	// PullDefaultLimit applies when the client sends no limit.
	PullDefaultLimit = 200
	// PullMaxLimit is the hard page cap; larger requests are clamped.
	PullMaxLimit = 1000
	// BacklogLimit caps the catch-up page sent on a realtime subscribe.
	BacklogLimit = 500
)

// OpRecord is one log entry as served to clients, over HTTP pull and over
// the realtime backlog alike.
type OpRecord struct {
	Seq            int64           `json:"seq"`
	OpType         string          `json:"opType"`
	FileID         string          `json:"fileId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotencyKey"`
	AuthorDeviceID string          `json:"authorDeviceId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type PullResult struct {
	Watermark int64      `json:"watermark"`
	Ops       []OpRecord `json:"ops"`
}

type CursorResult struct {
	DeviceID       string `json:"deviceId"`
	VaultID        string `json:"vaultId"`
	LastAppliedSeq int64  `json:"lastAppliedSeq"`
}

// PullService reads pages of a vault's log and tracks device cursors.
type PullService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
}

func NewPullService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate) *PullService {
	return &PullService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
	}
}

// ClampPullLimit folds a raw client limit into [1, PullMaxLimit], with
// PullDefaultLimit for "not given".
func ClampPullLimit(limit int) int {
	if limit <= 0 {
		return PullDefaultLimit
	}
	if limit > PullMaxLimit {
		return PullMaxLimit
	}
	return limit
}

func toOpRecords(ops []*models.Operation) []OpRecord {
	records := make([]OpRecord, 0, len(ops))
	for _, op := range ops {
		records = append(records, OpRecord{
			Seq:            op.Seq,
			OpType:         op.OpType,
			FileID:         op.FileID,
			Payload:        json.RawMessage(op.Payload),
			IdempotencyKey: op.IdempotencyKey,
			AuthorDeviceID: op.AuthorDeviceID,
			CreatedAt:      op.CreatedAt,
		})
	}
	return records
}

// Pull returns ops with seq > since, oldest first, at most limit of them.
// The watermark is the seq of the last op in the page, or since unchanged
// when the page is empty; feeding it back as the next since never skips or
// repeats an op. When deviceID is given the device's cursor is advanced
// (never rewound) to the watermark.
func (s *PullService) Pull(ctx context.Context, principal auth.Principal, vaultID string, since int64, limit int, deviceID string) (*PullResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if since < 0 {
		fields["since"] = "must not be negative"
	}
	if deviceID != "" && !isUUID(deviceID) {
		fields["deviceId"] = "must be a UUID"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidRequest, fields)
	}

	ops, err := s.repomanager.Ops(s.db).SelectSince(ctx, vaultID, since, ClampPullLimit(limit))
	if err != nil {
		return nil, err
	}

	watermark := since
	if len(ops) > 0 {
		watermark = ops[len(ops)-1].Seq
	}

	if deviceID != "" {
		if err := s.repomanager.Cursors(s.db).Upsert(ctx, deviceID, vaultID, watermark, cursors.PolicyMax); err != nil {
			return nil, err
		}
		if err := s.repomanager.Devices(s.db).Touch(ctx, deviceID, principal.UserID); err != nil {
			return nil, err
		}
	}

	return &PullResult{Watermark: watermark, Ops: toOpRecords(ops)}, nil
}

// Cursor reports the stored cursor for a device; a device that never
// synced reads as seq 0.
func (s *PullService) Cursor(ctx context.Context, principal auth.Principal, vaultID, deviceID string) (*CursorResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}
	if !isUUID(deviceID) {
		return nil, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"deviceId": "must be a UUID"})
	}

	cursor, err := s.repomanager.Cursors(s.db).Get(ctx, deviceID, vaultID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &CursorResult{DeviceID: deviceID, VaultID: vaultID, LastAppliedSeq: 0}, nil
		}
		return nil, err
	}

	return &CursorResult{DeviceID: cursor.DeviceID, VaultID: cursor.VaultID, LastAppliedSeq: cursor.LastAppliedSeq}, nil
}
