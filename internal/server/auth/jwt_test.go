package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/obsync-io/obsync/internal/common"
)

func TestGenerateAndResolve_Success(t *testing.T) {
	t.Parallel()

	secret := "super-secret"
	userID := "user-123"

	tok, err := GenerateToken(userID, []string{ScopeRead, ScopeWrite}, []byte(secret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	p, err := NewVerifier(secret).Resolve(tok)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if p.UserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", p.UserID, userID)
	}
	if p.AuthType != AuthTypeJWT {
		t.Fatalf("auth type mismatch: got %q", p.AuthType)
	}
	if !p.HasScope(ScopeRead) || !p.HasScope(ScopeWrite) {
		t.Fatalf("scopes not carried: %v", p.Scopes)
	}
	if p.HasScope(ScopeAdmin) {
		t.Fatalf("admin scope must not be implied by read+write")
	}
}

func TestResolve_Expired(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u1", []string{ScopeRead}, []byte("secret"), -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = NewVerifier("secret").Resolve(tok)
	if err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
	if !ErrTokenExpired(err) {
		t.Fatalf("expected expiry to be detectable, got %v", err)
	}
}

func TestResolve_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []string{ScopeRead}, []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = NewVerifier("wrong-secret").Resolve(tok)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for bad signature, got %v", err)
	}
}

func TestResolve_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier("k").Resolve("not.a.jwt")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestResolve_MissingSubject(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("", []string{ScopeRead}, []byte("k"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = NewVerifier("k").Resolve(tok)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for empty subject, got %v", err)
	}
}

func TestHasScope_AdminSupersedes(t *testing.T) {
	t.Parallel()

	p := Principal{UserID: "u", Scopes: []string{ScopeAdmin}}
	for _, scope := range []string{ScopeRead, ScopeWrite, ScopeAdmin} {
		if !p.HasScope(scope) {
			t.Fatalf("admin should satisfy %q", scope)
		}
	}

	reader := Principal{UserID: "u", Scopes: []string{ScopeRead}}
	if reader.HasScope(ScopeWrite) {
		t.Fatalf("read must not satisfy write")
	}
}
