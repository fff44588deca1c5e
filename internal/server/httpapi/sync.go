package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/services"
)

func parseInt64Query(c *gin.Context, name string, fallback int64) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, common.NewValidationError(common.CodeInvalidRequest, map[string]string{name: "must be an integer"})
	}
	return value, nil
}

func (s *Server) handlePush(c *gin.Context) {
	var req services.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidPushPayload, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Push.Push(c.Request.Context(), principalFrom(c), c.Param("vaultId"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePull(c *gin.Context) {
	since, err := parseInt64Query(c, "since", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}
	limit, err := parseInt64Query(c, "limit", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.services.Pull.Pull(c.Request.Context(), principalFrom(c), c.Param("vaultId"), since, int(limit), c.Query("deviceId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCursor(c *gin.Context) {
	result, err := s.services.Pull.Cursor(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Query("deviceId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
