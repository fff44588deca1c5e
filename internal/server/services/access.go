// Package services implements the sync core behind the HTTP layer: vault
// administration, the append-only operation log, device cursors, chunked
// blob uploads and key envelope distribution. Services validate input,
// enforce access and run repository calls, transactionally where a
// contract spans several tables.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
)

// AccessGate answers the two authorization questions every operation asks:
// does the principal hold the scope, and does it own the vault.
type AccessGate struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAccessGate(db *sql.DB, repomanager repomanager.RepositoryManager) *AccessGate {
	return &AccessGate{db: db, repomanager: repomanager}
}

// RequireScope returns ErrForbidden unless the principal holds the scope.
// The admin scope satisfies any requirement.
func (g *AccessGate) RequireScope(principal auth.Principal, scope string) error {
	if principal.HasScope(scope) {
		return nil
	}
	return fmt.Errorf("%w: scope %q required", common.ErrForbidden, scope)
}

// RequireVaultOwner loads the vault and checks ownership. A vault that does
// not exist and a vault owned by someone else both come back as
// ErrVaultNotFound, so callers cannot probe for foreign vault ids.
func (g *AccessGate) RequireVaultOwner(ctx context.Context, principal auth.Principal, vaultID string) (*models.Vault, error) {
	if !isUUID(vaultID) {
		return nil, common.ErrVaultNotFound
	}

	vault, err := g.repomanager.Vaults(g.db).Get(ctx, vaultID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrVaultNotFound
		}
		return nil, err
	}

	if vault.Owner != principal.UserID {
		return nil, common.ErrVaultNotFound
	}

	return vault, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
