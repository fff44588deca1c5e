package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/services"
)

func (s *Server) handleRegisterDevice(c *gin.Context) {
	var req services.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidRequest, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Devices.Register(c.Request.Context(), principalFrom(c), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListDevices(c *gin.Context) {
	result, err := s.services.Devices.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": result})
}
