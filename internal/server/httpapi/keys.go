package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/services"
)

func (s *Server) handlePutKey(c *gin.Context) {
	var req services.PutKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Keys.Put(c.Request.Context(), principalFrom(c), c.Param("vaultId"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetKey(c *gin.Context) {
	version, err := parseInt64Query(c, "version", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.services.Keys.Get(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Query("deviceId"), version)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
