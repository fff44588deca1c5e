// Package auth resolves bearer credentials into Principals. Credential
// issuance (accounts, passwords, token minting surfaces) lives in an
// external collaborator; this package is its in-process verification half.
package auth

// Scopes a credential can carry. Admin subsumes read and write; read and
// write are siblings.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// AuthTypeJWT marks principals resolved from a signed bearer JWT.
const AuthTypeJWT = "jwt"

// Principal is an authenticated identity with its scope set. Every
// operation of the core receives one; the access gate decides what it may
// touch.
type Principal struct {
	UserID   string
	Scopes   []string
	AuthType string
}

// HasScope reports whether the principal carries the requested scope.
// Admin satisfies every request.
func (p Principal) HasScope(requested string) bool {
	for _, s := range p.Scopes {
		if s == ScopeAdmin || s == requested {
			return true
		}
	}
	return false
}
