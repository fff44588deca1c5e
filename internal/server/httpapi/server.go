// Package httpapi is the HTTP/WebSocket transport of the sync server: a gin
// router over the services layer, bearer-token auth, the wire error
// envelope and the realtime event stream.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/obsync-io/obsync/internal/logging"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/config"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/realtime"
	"github.com/obsync-io/obsync/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// What the transport needs from the services layer. Narrow interfaces so
// handlers can be exercised against fakes.
type accessGate interface {
	RequireScope(principal auth.Principal, scope string) error
	RequireVaultOwner(ctx context.Context, principal auth.Principal, vaultID string) (*models.Vault, error)
}

type pushService interface {
	Push(ctx context.Context, principal auth.Principal, vaultID string, req *services.PushRequest) (*services.PushResult, error)
}

type pullService interface {
	Pull(ctx context.Context, principal auth.Principal, vaultID string, since int64, limit int, deviceID string) (*services.PullResult, error)
	Cursor(ctx context.Context, principal auth.Principal, vaultID, deviceID string) (*services.CursorResult, error)
}

type blobService interface {
	Init(ctx context.Context, principal auth.Principal, vaultID string, req *services.BlobInitRequest) (*services.BlobInitResult, error)
	PutChunk(ctx context.Context, principal auth.Principal, vaultID, blobHash string, index int, req *services.PutChunkRequest) (*services.PutChunkResult, error)
	Commit(ctx context.Context, principal auth.Principal, vaultID, blobHash string, req *services.BlobCommitRequest) (*services.BlobCommitResult, error)
	GetManifest(ctx context.Context, principal auth.Principal, vaultID, blobHash string) (*services.BlobManifest, error)
	GetChunk(ctx context.Context, principal auth.Principal, vaultID, blobHash string, index int) (*services.ChunkDownload, error)
}

type keyService interface {
	Put(ctx context.Context, principal auth.Principal, vaultID string, req *services.PutKeyRequest) (*services.KeyEnvelopeRecord, error)
	Get(ctx context.Context, principal auth.Principal, vaultID, deviceID string, version int64) (*services.KeyEnvelopeRecord, error)
}

type vaultService interface {
	Create(ctx context.Context, principal auth.Principal, req *services.CreateVaultRequest) (*services.VaultRecord, error)
	List(ctx context.Context, principal auth.Principal) ([]*services.VaultRecord, error)
}

type deviceService interface {
	Register(ctx context.Context, principal auth.Principal, req *services.RegisterDeviceRequest) (*services.DeviceRecord, error)
	List(ctx context.Context, principal auth.Principal) ([]*services.DeviceRecord, error)
}

// Services bundles the domain services the transport exposes.
type Services struct {
	Gate    accessGate
	Push    pushService
	Pull    pullService
	Blobs   blobService
	Keys    keyService
	Vaults  vaultService
	Devices deviceService
}

type Server struct {
	config   *config.Config
	logger   logging.Logger
	verifier *auth.Verifier
	services Services
	bus      *realtime.Bus
}

func NewServer(config *config.Config, logger logging.Logger, verifier *auth.Verifier, services Services, bus *realtime.Bus) *Server {
	return &Server{
		config:   config,
		logger:   logger.With("module", "httpapi"),
		verifier: verifier,
		services: services,
		bus:      bus,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.EndpointAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.config.EndpointAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
