package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

type PutKeyRequest struct {
	DeviceID          string `json:"deviceId"`
	Version           int64  `json:"version"`
	EncryptedVaultKey string `json:"encryptedVaultKey"`
}

type KeyEnvelopeRecord struct {
	VaultID           string    `json:"vaultId"`
	DeviceID          string    `json:"deviceId"`
	Version           int64     `json:"version"`
	EncryptedVaultKey string    `json:"encryptedVaultKey"`
	CreatedAt         time.Time `json:"createdAt"`
}

// KeyEnvelopeService stores vault keys wrapped for individual devices. The
// envelopes are opaque: rotation policy and unwrapping live on clients.
type KeyEnvelopeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
}

func NewKeyEnvelopeService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate) *KeyEnvelopeService {
	return &KeyEnvelopeService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
	}
}

// Put stores one envelope. Writing the same (device, version) again
// overwrites, so a retried rotation converges.
func (s *KeyEnvelopeService) Put(ctx context.Context, principal auth.Principal, vaultID string, req *PutKeyRequest) (*KeyEnvelopeRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if !isUUID(req.DeviceID) {
		fields["deviceId"] = "must be a UUID"
	}
	if req.Version <= 0 {
		fields["version"] = "must be positive"
	}
	if req.EncryptedVaultKey == "" {
		fields["encryptedVaultKey"] = "must not be empty"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidRequest, fields)
	}

	envelope := &models.KeyEnvelope{
		VaultID:           vaultID,
		DeviceID:          req.DeviceID,
		Version:           req.Version,
		EncryptedVaultKey: req.EncryptedVaultKey,
	}
	if err := s.repomanager.KeyEnvelopes(s.db).Put(ctx, envelope); err != nil {
		return nil, err
	}

	return toKeyEnvelopeRecord(envelope), nil
}

// Get returns the envelope for a device at the given version, or the
// highest stored version when version <= 0.
func (s *KeyEnvelopeService) Get(ctx context.Context, principal auth.Principal, vaultID, deviceID string, version int64) (*KeyEnvelopeRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}
	if !isUUID(deviceID) {
		return nil, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"deviceId": "must be a UUID"})
	}

	repo := s.repomanager.KeyEnvelopes(s.db)

	var envelope *models.KeyEnvelope
	var err error
	if version > 0 {
		envelope, err = repo.Get(ctx, vaultID, deviceID, version)
	} else {
		envelope, err = repo.Latest(ctx, vaultID, deviceID)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: device %s", common.ErrKeyEnvelopeNotFound, deviceID)
		}
		return nil, err
	}

	return toKeyEnvelopeRecord(envelope), nil
}

func toKeyEnvelopeRecord(e *models.KeyEnvelope) *KeyEnvelopeRecord {
	return &KeyEnvelopeRecord{
		VaultID:           e.VaultID,
		DeviceID:          e.DeviceID,
		Version:           e.Version,
		EncryptedVaultKey: e.EncryptedVaultKey,
		CreatedAt:         e.CreatedAt,
	}
}
