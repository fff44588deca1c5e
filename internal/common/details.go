package common

import (
	"fmt"
	"sort"
	"strings"
)

// Error codes carried in the wire error envelope.
const (
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeVaultNotFound            = "VAULT_NOT_FOUND"
	CodeInvalidPushPayload       = "INVALID_PUSH_PAYLOAD"
	CodeInvalidBlobInitPayload   = "INVALID_BLOB_INIT_PAYLOAD"
	CodeInvalidBlobCommitPayload = "INVALID_BLOB_COMMIT_PAYLOAD"
	CodeInvalidChunkPayload      = "INVALID_CHUNK_PAYLOAD"
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeChunkHashMismatch        = "CHUNK_HASH_MISMATCH"
	CodeBlobIncomplete           = "BLOB_INCOMPLETE"
	CodeBlobNotFound             = "BLOB_NOT_FOUND"
	CodeChunkNotFound            = "CHUNK_NOT_FOUND"
	CodeKeyEnvelopeNotFound      = "KEY_ENVELOPE_NOT_FOUND"
	CodeSubscriptionDropped      = "SUBSCRIPTION_DROPPED"
	CodeAuthRateLimited          = "AUTH_RATE_LIMITED"
	CodeInternalError            = "INTERNAL_ERROR"
)

// ValidationError is a schema failure with per-field problems. Code names
// the endpoint-specific wire code; Fields maps field name to what is wrong
// with it. Matches ErrValidation via errors.Is.
type ValidationError struct {
	Code   string
	Fields map[string]string
}

// NewValidationError builds a ValidationError for the given wire code.
func NewValidationError(code string, fields map[string]string) *ValidationError {
	return &ValidationError{Code: code, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IncompleteBlobError is a failed blob commit, carrying the current and
// declared counters so the client can tell what is still missing. Matches
// ErrBlobIncomplete via errors.Is.
type IncompleteBlobError struct {
	CurrentCount       int
	CurrentSize        int64
	ExpectedChunkCount int
	ExpectedSize       int64
}

func (e *IncompleteBlobError) Error() string {
	return fmt.Sprintf("blob incomplete: %d/%d chunks, %d/%d bytes",
		e.CurrentCount, e.ExpectedChunkCount, e.CurrentSize, e.ExpectedSize)
}

func (e *IncompleteBlobError) Unwrap() error { return ErrBlobIncomplete }
