package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/obsync-io/obsync/internal/common"
)

// Claims are the JWT claims the server understands: the registered set
// plus the scope list granted to the subject.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// GenerateToken signs an HS256 token for userID carrying the given scopes.
// The server itself never mints tokens for clients; this exists for the
// operator bootstrap path and for tests.
func GenerateToken(userID string, scopes []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Scopes: scopes,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verifier resolves bearer tokens into Principals.
type Verifier struct {
	secretKey []byte
}

func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: []byte(secretKey)}
}

// Resolve parses and verifies tokenString and returns the Principal it
// asserts. Any parse, signature, or expiry failure collapses into
// common.ErrInvalidToken; callers should not leak the distinction to
// unauthenticated peers.
func (v *Verifier) Resolve(tokenString string) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return v.secretKey, nil
		})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return Principal{}, common.ErrInvalidToken
	}

	return Principal{
		UserID:   claims.Subject,
		Scopes:   claims.Scopes,
		AuthType: AuthTypeJWT,
	}, nil
}

// ErrTokenExpired reports whether the failure was an expiry, so transports
// can hint at credential refresh in the error envelope.
func ErrTokenExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
