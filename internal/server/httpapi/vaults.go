package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/services"
)

func (s *Server) handleCreateVault(c *gin.Context) {
	var req services.CreateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Vaults.Create(c.Request.Context(), principalFrom(c), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleListVaults(c *gin.Context) {
	result, err := s.services.Vaults.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vaults": result})
}
