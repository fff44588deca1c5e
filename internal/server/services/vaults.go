package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

type CreateVaultRequest struct {
	Name string `json:"name"`
	// Owner defaults to the caller when empty; only admins reach this
	// operation at all.
	Owner string `json:"owner,omitempty"`
}

type VaultRecord struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	CurrentSeq int64     `json:"currentSeq"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VaultService creates and lists vaults. Creation is an admin operation;
// the sync core has no self-service signup.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
}

func NewVaultService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
	}
}

func (s *VaultService) Create(ctx context.Context, principal auth.Principal, req *CreateVaultRequest) (*VaultRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeAdmin); err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"name": "must not be empty"})
	}

	owner := req.Owner
	if owner == "" {
		owner = principal.UserID
	}

	vault, err := s.repomanager.Vaults(s.db).Create(ctx, &models.Vault{
		ID:    uuid.NewString(),
		Owner: owner,
		Name:  req.Name,
	})
	if err != nil {
		return nil, err
	}

	return toVaultRecord(vault), nil
}

// List returns the caller's vaults, so a fresh device can discover what to
// sync before it has any local state.
func (s *VaultService) List(ctx context.Context, principal auth.Principal) ([]*VaultRecord, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}

	vaults, err := s.repomanager.Vaults(s.db).ListByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	records := make([]*VaultRecord, 0, len(vaults))
	for _, vault := range vaults {
		records = append(records, toVaultRecord(vault))
	}
	return records, nil
}

func toVaultRecord(v *models.Vault) *VaultRecord {
	return &VaultRecord{
		ID:         v.ID,
		Owner:      v.Owner,
		Name:       v.Name,
		CurrentSeq: v.CurrentSeq,
		CreatedAt:  v.CreatedAt,
	}
}
