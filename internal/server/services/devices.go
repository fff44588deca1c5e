package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

type RegisterDeviceRequest struct {
	DeviceID    string `json:"deviceId"`
	DisplayName string `json:"displayName,omitempty"`
	PublicKey   string `json:"publicKey,omitempty"`
}

type DeviceRecord struct {
	DeviceID    string    `json:"deviceId"`
	DisplayName string    `json:"displayName"`
	PublicKey   string    `json:"publicKey"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// DeviceService registers client devices. Ids are chosen by the client;
// registering an existing id refreshes its metadata.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
}

func NewDeviceService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate) *DeviceService {
	return &DeviceService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
	}
}

func (s *DeviceService) Register(ctx context.Context, principal auth.Principal, req *RegisterDeviceRequest) (*DeviceRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}

	if !isUUID(req.DeviceID) {
		return nil, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"deviceId": "must be a UUID"})
	}

	device, err := s.repomanager.Devices(s.db).Register(ctx, &models.Device{
		ID:          req.DeviceID,
		Owner:       principal.UserID,
		DisplayName: req.DisplayName,
		PublicKey:   req.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	return toDeviceRecord(device), nil
}

func (s *DeviceService) List(ctx context.Context, principal auth.Principal) ([]*DeviceRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}

	devices, err := s.repomanager.Devices(s.db).ListByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	records := make([]*DeviceRecord, 0, len(devices))
	for _, device := range devices {
		records = append(records, toDeviceRecord(device))
	}
	return records, nil
}

func toDeviceRecord(d *models.Device) *DeviceRecord {
	return &DeviceRecord{
		DeviceID:    d.ID,
		DisplayName: d.DisplayName,
		PublicKey:   d.PublicKey,
		LastSeenAt:  d.LastSeenAt,
	}
}
