package services

import (
	"context"
	"errors"
	"testing"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
)

func TestRequireScope(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	gate := newGate(db, newFakeRepoManager())

	if err := gate.RequireScope(readerPrincipal(), auth.ScopeRead); err != nil {
		t.Fatalf("reader must read: %v", err)
	}
	if err := gate.RequireScope(readerPrincipal(), auth.ScopeWrite); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("reader must not write, got %v", err)
	}
	if err := gate.RequireScope(writerPrincipal(), auth.ScopeAdmin); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("writer must not admin, got %v", err)
	}

	for _, scope := range []string{auth.ScopeRead, auth.ScopeWrite, auth.ScopeAdmin} {
		if err := gate.RequireScope(adminPrincipal(), scope); err != nil {
			t.Fatalf("admin must hold %s: %v", scope, err)
		}
	}
}

func TestRequireVaultOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := newFakeRepoManager()
	gate := newGate(db, m)
	ctx := context.Background()

	vault, err := gate.RequireVaultOwner(ctx, readerPrincipal(), testVaultID)
	if err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if vault.ID != testVaultID {
		t.Fatalf("unexpected vault: %+v", vault)
	}

	foreign := readerPrincipal()
	foreign.UserID = "somebody-else"
	if _, err := gate.RequireVaultOwner(ctx, foreign, testVaultID); !errors.Is(err, common.ErrVaultNotFound) {
		t.Fatalf("foreign owner must look like absence, got %v", err)
	}

	if _, err := gate.RequireVaultOwner(ctx, readerPrincipal(), "91f7d1f1-63f0-4be1-93cd-a1f4e3277e1c"); !errors.Is(err, common.ErrVaultNotFound) {
		t.Fatalf("unknown vault, got %v", err)
	}
}

func TestRequireVaultOwner_MalformedIDSkipsLookup(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := newFakeRepoManager()
	m.v.getErr = errBoom{} // would surface if the repo were consulted

	gate := newGate(db, m)

	if _, err := gate.RequireVaultOwner(context.Background(), readerPrincipal(), "not-a-uuid"); !errors.Is(err, common.ErrVaultNotFound) {
		t.Fatalf("malformed id must read as absence, got %v", err)
	}
}
