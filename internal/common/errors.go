// Package common contains shared constants and sentinel errors used across
// Obsync components. Services return these sentinels (usually wrapped); the
// HTTP layer maps them onto the wire error envelope.
package common

import "errors"

var (

	// generic
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")

	// authentication / authorization
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidToken = errors.New("invalid token")

	// vault access: absence and foreign ownership are deliberately the
	// same error so callers cannot probe for other owners' vaults
	ErrVaultNotFound = errors.New("vault not found")

	// request schema
	ErrValidation = errors.New("validation error")

	// blob lifecycle
	ErrBlobNotFound      = errors.New("blob not found")
	ErrChunkNotFound     = errors.New("chunk not found")
	ErrBlobIncomplete    = errors.New("blob incomplete")
	ErrChunkHashMismatch = errors.New("chunk hash mismatch")

	// key envelopes
	ErrKeyEnvelopeNotFound = errors.New("key envelope not found")
)
