package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/cryptox"
	"github.com/obsync-io/obsync/internal/dbx"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/chunkstore"
	sc "github.com/obsync-io/obsync/internal/server/config"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
	"github.com/obsync-io/obsync/internal/shared"
)

// uploadIDBytes sizes the random id handed out by Init. The id is a
// client-side correlation token only; chunk writes are addressed by
// (blobHash, index).
const uploadIDBytes = 16

type BlobInitRequest struct {
	Hash       string `json:"hash"`
	Size       int64  `json:"size"`
	ChunkCount int    `json:"chunkCount"`
	CipherAlg  string `json:"cipherAlg"`
}

type BlobInitResult struct {
	UploadID       string `json:"uploadId"`
	Hash           string `json:"hash"`
	MissingIndices []int  `json:"missingIndices"`
}

type PutChunkRequest struct {
	ChunkHash        string `json:"chunkHash"`
	Size             int64  `json:"size"`
	CipherTextBase64 string `json:"cipherTextBase64"`
}

type PutChunkResult struct {
	BlobHash  string `json:"blobHash"`
	Index     int    `json:"index"`
	Persisted bool   `json:"persisted"`
}

type BlobCommitRequest struct {
	Hash               string `json:"hash"`
	ExpectedChunkCount int    `json:"expectedChunkCount"`
	ExpectedSize       int64  `json:"expectedSize"`
}

type BlobCommitResult struct {
	Hash      string `json:"hash"`
	Committed bool   `json:"committed"`
}

type ChunkInfo struct {
	Index     int    `json:"index"`
	ChunkHash string `json:"chunkHash"`
	Size      int64  `json:"size"`
}

type BlobManifest struct {
	Hash        string      `json:"hash"`
	Size        int64       `json:"size"`
	ChunkCount  int         `json:"chunkCount"`
	CipherAlg   string      `json:"cipherAlg"`
	CommittedAt time.Time   `json:"committedAt"`
	Chunks      []ChunkInfo `json:"chunks"`
}

type ChunkDownload struct {
	BlobHash         string `json:"blobHash"`
	Index            int    `json:"index"`
	ChunkHash        string `json:"chunkHash"`
	Size             int64  `json:"size"`
	CipherTextBase64 string `json:"cipherTextBase64"`
}

// BlobService runs the init / upload / commit pipeline for content-addressed
// ciphertext blobs, and serves committed ones back.
type BlobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *AccessGate
	store       chunkstore.Store
	config      *sc.Config
}

func NewBlobService(db *sql.DB, repomanager repomanager.RepositoryManager, gate *AccessGate, store chunkstore.Store, config *sc.Config) *BlobService {
	return &BlobService{
		db:          db,
		repomanager: repomanager,
		gate:        gate,
		store:       store,
		config:      config,
	}
}

// Init declares a blob upload. Re-declaring a known hash is a no-op for the
// manifest and returns the indices still missing, so interrupted uploads
// resume instead of restarting.
func (s *BlobService) Init(ctx context.Context, principal auth.Principal, vaultID string, req *BlobInitRequest) (*BlobInitResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if !cryptox.IsHexDigest(req.Hash) {
		fields["hash"] = "must be a hex digest"
	}
	if req.Size <= 0 {
		fields["size"] = "must be positive"
	}
	if req.ChunkCount <= 0 {
		fields["chunkCount"] = "must be positive"
	}
	if req.CipherAlg == "" {
		fields["cipherAlg"] = "must not be empty"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidBlobInitPayload, fields)
	}

	hash := strings.ToLower(req.Hash)
	result := &BlobInitResult{Hash: hash, MissingIndices: []int{}}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		blobRepo := s.repomanager.Blobs(tx)

		err := blobRepo.UpsertManifest(ctx, &models.Blob{
			Hash:       hash,
			Size:       req.Size,
			ChunkCount: req.ChunkCount,
			CipherAlg:  req.CipherAlg,
		})
		if err != nil {
			return err
		}

		chunks, err := blobRepo.ListChunks(ctx, hash)
		if err != nil {
			return err
		}

		present := make(map[int]bool, len(chunks))
		for _, chunk := range chunks {
			present[chunk.Index] = true
		}
		for i := 0; i < req.ChunkCount; i++ {
			if !present[i] {
				result.MissingIndices = append(result.MissingIndices, i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uploadID, err := shared.MakeRandHexString(uploadIDBytes)
	if err != nil {
		return nil, err
	}
	result.UploadID = uploadID

	return result, nil
}

// PutChunk verifies and stores one ciphertext chunk. The digest check runs
// before anything durable happens: a corrupt chunk leaves no trace in the
// store or the index. Re-uploading an index overwrites it, which is safe
// because content addressing makes equal hashes mean equal bytes.
func (s *BlobService) PutChunk(ctx context.Context, principal auth.Principal, vaultID, blobHash string, index int, req *PutChunkRequest) (*PutChunkResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if !cryptox.IsHexDigest(blobHash) {
		fields["blobHash"] = "must be a hex digest"
	}
	if index < 0 {
		fields["index"] = "must not be negative"
	}
	if !cryptox.IsHexDigest(req.ChunkHash) {
		fields["chunkHash"] = "must be a hex digest"
	}

	data, err := base64.StdEncoding.DecodeString(req.CipherTextBase64)
	switch {
	case err != nil:
		fields["cipherTextBase64"] = "must be valid base64"
	case len(data) == 0:
		fields["cipherTextBase64"] = "must not be empty"
	case int64(len(data)) > s.config.MaxChunkBytes:
		fields["cipherTextBase64"] = fmt.Sprintf("chunk exceeds %d bytes", s.config.MaxChunkBytes)
	case req.Size != int64(len(data)):
		fields["size"] = "must equal the decoded ciphertext length"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidChunkPayload, fields)
	}

	blobHash = strings.ToLower(blobHash)

	if _, err := s.repomanager.Blobs(s.db).Get(ctx, blobHash); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s not declared", common.ErrBlobNotFound, blobHash)
		}
		return nil, err
	}

	if !cryptox.DigestEqual(req.ChunkHash, data) {
		return nil, fmt.Errorf("%w: chunk %s[%d]", common.ErrChunkHashMismatch, blobHash, index)
	}

	storageKey, err := s.store.WriteChunk(ctx, blobHash, index, data)
	if err != nil {
		return nil, err
	}

	err = s.repomanager.Blobs(s.db).UpsertChunk(ctx, &models.BlobChunk{
		BlobHash:   blobHash,
		Index:      index,
		ChunkHash:  strings.ToLower(req.ChunkHash),
		Size:       int64(len(data)),
		StorageKey: storageKey,
	})
	if err != nil {
		return nil, err
	}

	return &PutChunkResult{BlobHash: blobHash, Index: index, Persisted: true}, nil
}

// Commit flips the blob visible once the stored chunks reach the declared
// totals. Committing an already-committed blob is a no-op success; an
// incomplete blob fails with the current counters and stays open for more
// chunk uploads.
func (s *BlobService) Commit(ctx context.Context, principal auth.Principal, vaultID, blobHash string, req *BlobCommitRequest) (*BlobCommitResult, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeWrite); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	blobHash = strings.ToLower(blobHash)

	fields := map[string]string{}
	if !strings.EqualFold(req.Hash, blobHash) {
		fields["hash"] = "must match the blob hash in the path"
	}
	if req.ExpectedChunkCount <= 0 {
		fields["expectedChunkCount"] = "must be positive"
	}
	if req.ExpectedSize <= 0 {
		fields["expectedSize"] = "must be positive"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError(common.CodeInvalidBlobCommitPayload, fields)
	}

	result := &BlobCommitResult{Hash: blobHash}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		blobRepo := s.repomanager.Blobs(tx)

		blob, err := blobRepo.Get(ctx, blobHash)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: blob %s not declared", common.ErrBlobNotFound, blobHash)
			}
			return err
		}

		if blob.Committed() {
			result.Committed = true
			return nil
		}

		count, sumSize, err := blobRepo.CountChunks(ctx, blobHash)
		if err != nil {
			return err
		}
		if count < req.ExpectedChunkCount || sumSize < req.ExpectedSize {
			return &common.IncompleteBlobError{
				CurrentCount:       count,
				CurrentSize:        sumSize,
				ExpectedChunkCount: req.ExpectedChunkCount,
				ExpectedSize:       req.ExpectedSize,
			}
		}

		if err := blobRepo.MarkCommitted(ctx, blobHash); err != nil {
			return err
		}
		result.Committed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetManifest returns the chunk list of a committed blob. Uncommitted blobs
// are invisible to readers.
func (s *BlobService) GetManifest(ctx context.Context, principal auth.Principal, vaultID, blobHash string) (*BlobManifest, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	blobHash = strings.ToLower(blobHash)

	blob, err := s.getCommitted(ctx, blobHash)
	if err != nil {
		return nil, err
	}

	chunks, err := s.repomanager.Blobs(s.db).ListChunks(ctx, blobHash)
	if err != nil {
		return nil, err
	}

	manifest := &BlobManifest{
		Hash:        blob.Hash,
		Size:        blob.Size,
		ChunkCount:  blob.ChunkCount,
		CipherAlg:   blob.CipherAlg,
		CommittedAt: *blob.CommittedAt,
		Chunks:      make([]ChunkInfo, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		manifest.Chunks = append(manifest.Chunks, ChunkInfo{
			Index:     chunk.Index,
			ChunkHash: chunk.ChunkHash,
			Size:      chunk.Size,
		})
	}

	return manifest, nil
}

// GetChunk serves one chunk of a committed blob back as base64 ciphertext.
func (s *BlobService) GetChunk(ctx context.Context, principal auth.Principal, vaultID, blobHash string, index int) (*ChunkDownload, error) {
	if err := s.gate.RequireScope(principal, auth.ScopeRead); err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		return nil, err
	}

	blobHash = strings.ToLower(blobHash)

	if _, err := s.getCommitted(ctx, blobHash); err != nil {
		return nil, err
	}

	chunk, err := s.repomanager.Blobs(s.db).GetChunk(ctx, blobHash, index)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: chunk %s[%d]", common.ErrChunkNotFound, blobHash, index)
		}
		return nil, err
	}

	data, err := s.store.ReadChunk(ctx, chunk.StorageKey)
	if err != nil {
		return nil, err
	}

	return &ChunkDownload{
		BlobHash:         blobHash,
		Index:            index,
		ChunkHash:        chunk.ChunkHash,
		Size:             chunk.Size,
		CipherTextBase64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (s *BlobService) getCommitted(ctx context.Context, blobHash string) (*models.Blob, error) {
	blob, err := s.repomanager.Blobs(s.db).Get(ctx, blobHash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s", common.ErrBlobNotFound, blobHash)
		}
		return nil, err
	}
	if !blob.Committed() {
		return nil, fmt.Errorf("%w: blob %s not committed", common.ErrBlobNotFound, blobHash)
	}
	return blob, nil
}
