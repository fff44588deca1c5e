package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler builds the versioned route tree. The realtime endpoint sits
// outside the auth middleware: its failures are reported in-stream after
// the websocket handshake rather than as plain HTTP responses.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(s.traceMiddleware(), s.requestLogger(), s.recovery(), s.corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	v1.GET("/vaults/:vaultId/realtime", s.handleRealtime)

	authed := v1.Group("", s.authMiddleware())
	{
		authed.GET("/vaults", s.handleListVaults)
		authed.POST("/admin/vaults", s.handleCreateVault)
		authed.POST("/devices", s.handleRegisterDevice)
		authed.GET("/devices", s.handleListDevices)

		vault := authed.Group("/vaults/:vaultId")
		{
			vault.POST("/sync/push", s.handlePush)
			vault.GET("/sync/pull", s.handlePull)
			vault.GET("/sync/cursor", s.handleCursor)

			vault.POST("/blobs/init", s.handleBlobInit)
			vault.PUT("/blobs/:blobHash/chunks/:index", s.handlePutChunk)
			vault.POST("/blobs/:blobHash/commit", s.handleBlobCommit)
			vault.GET("/blobs/:blobHash", s.handleBlobManifest)
			vault.GET("/blobs/:blobHash/chunks/:index", s.handleGetChunk)

			vault.PUT("/keys", s.handlePutKey)
			vault.GET("/keys", s.handleGetKey)
		}
	}

	return router
}
