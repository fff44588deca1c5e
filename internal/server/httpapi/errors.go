package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
)

// errorBody is the wire error envelope.
type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
	Details     any    `json:"details,omitempty"`
	TraceID     string `json:"traceId,omitempty"`
}

// classifyError maps a service error onto a status and envelope. Anything
// unrecognized becomes a bare INTERNAL_ERROR so store internals never leak
// to clients.
func classifyError(err error) (int, errorBody) {
	var verr *common.ValidationError
	if errors.As(err, &verr) {
		code := verr.Code
		if code == "" {
			code = common.CodeInvalidRequest
		}
		return http.StatusBadRequest, errorBody{
			Code:        code,
			Message:     "request validation failed",
			Remediation: "fix the listed fields and retry",
			Details:     verr.Fields,
		}
	}

	var ierr *common.IncompleteBlobError
	if errors.As(err, &ierr) {
		return http.StatusConflict, errorBody{
			Code:        common.CodeBlobIncomplete,
			Message:     ierr.Error(),
			Remediation: "upload the missing indices, then retry commit",
			Details: gin.H{
				"currentCount":       ierr.CurrentCount,
				"currentSize":        ierr.CurrentSize,
				"expectedChunkCount": ierr.ExpectedChunkCount,
				"expectedSize":       ierr.ExpectedSize,
			},
		}
	}

	body := errorBody{Message: err.Error()}

	switch {
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		body.Code = common.CodeUnauthorized
		body.Message = "invalid or missing credential"
		body.Remediation = "refresh the credential"
		return http.StatusUnauthorized, body
	case errors.Is(err, common.ErrForbidden):
		body.Code = common.CodeForbidden
		return http.StatusForbidden, body
	case errors.Is(err, common.ErrVaultNotFound):
		body.Code = common.CodeVaultNotFound
		body.Message = "vault not found"
		return http.StatusNotFound, body
	case errors.Is(err, common.ErrChunkHashMismatch):
		body.Code = common.CodeChunkHashMismatch
		body.Remediation = "recompute the digest on the ciphertext and retry"
		return http.StatusConflict, body
	case errors.Is(err, common.ErrBlobIncomplete):
		body.Code = common.CodeBlobIncomplete
		body.Remediation = "upload the missing indices, then retry commit"
		return http.StatusConflict, body
	case errors.Is(err, common.ErrBlobNotFound):
		body.Code = common.CodeBlobNotFound
		return http.StatusNotFound, body
	case errors.Is(err, common.ErrChunkNotFound):
		body.Code = common.CodeChunkNotFound
		return http.StatusNotFound, body
	case errors.Is(err, common.ErrKeyEnvelopeNotFound):
		body.Code = common.CodeKeyEnvelopeNotFound
		return http.StatusNotFound, body
	case errors.Is(err, common.ErrValidation):
		body.Code = common.CodeInvalidRequest
		return http.StatusBadRequest, body
	case errors.Is(err, common.ErrNotFound):
		body.Code = common.CodeVaultNotFound
		body.Message = "not found"
		return http.StatusNotFound, body
	default:
		body.Code = common.CodeInternalError
		body.Message = "internal error"
		body.Remediation = "retry with exponential backoff"
		return http.StatusInternalServerError, body
	}
}

// writeError renders the envelope for err and aborts the request.
func (s *Server) writeError(c *gin.Context, err error) {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "unhandled request error",
			"error", err, "path", c.FullPath(), "trace_id", traceIDFrom(c))
	}
	body.TraceID = traceIDFrom(c)
	c.AbortWithStatusJSON(status, body)
}
