package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/services"
)

func parseChunkIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, common.NewValidationError(common.CodeInvalidChunkPayload, map[string]string{"index": "must be an integer"})
	}
	return index, nil
}

func (s *Server) handleBlobInit(c *gin.Context) {
	var req services.BlobInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidBlobInitPayload, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Blobs.Init(c.Request.Context(), principalFrom(c), c.Param("vaultId"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handlePutChunk(c *gin.Context) {
	index, err := parseChunkIndex(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req services.PutChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidChunkPayload, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Blobs.PutChunk(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Param("blobHash"), index, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBlobCommit(c *gin.Context) {
	var req services.BlobCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewValidationError(common.CodeInvalidBlobCommitPayload, map[string]string{"body": err.Error()}))
		return
	}

	result, err := s.services.Blobs.Commit(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Param("blobHash"), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBlobManifest(c *gin.Context) {
	result, err := s.services.Blobs.GetManifest(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Param("blobHash"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetChunk(c *gin.Context) {
	index, err := parseChunkIndex(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.services.Blobs.GetChunk(c.Request.Context(), principalFrom(c), c.Param("vaultId"), c.Param("blobHash"), index)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
