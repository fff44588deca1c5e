// Package server wires the sync core together: configuration, logging,
// database pool, chunk store, domain services and the HTTP transport, with
// signal handling and graceful shutdown around them.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/obsync-io/obsync/internal/logging"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/chunkstore"
	"github.com/obsync-io/obsync/internal/server/config"
	"github.com/obsync-io/obsync/internal/server/httpapi"
	"github.com/obsync-io/obsync/internal/server/realtime"
	"github.com/obsync-io/obsync/internal/server/repositories/repomanager"
	"github.com/obsync-io/obsync/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// initTimeout bounds startup work: waiting out the database, running
// migrations, building the S3 client.
const initTimeout = 30 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	bus    *realtime.Bus
	server *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := openDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := newChunkStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("chunk store init error: %w", err)
	}

	bus := realtime.NewBus(logger)
	gate := services.NewAccessGate(db, manager)

	svcs := httpapi.Services{
		Gate:    gate,
		Push:    services.NewPushService(db, manager, gate, bus),
		Pull:    services.NewPullService(db, manager, gate),
		Blobs:   services.NewBlobService(db, manager, gate, store, cfg),
		Keys:    services.NewKeyEnvelopeService(db, manager, gate),
		Vaults:  services.NewVaultService(db, manager, gate),
		Devices: services.NewDeviceService(db, manager, gate),
	}

	server := httpapi.NewServer(cfg, logger, auth.NewVerifier(cfg.SecretKey), svcs, bus)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		bus:    bus,
		server: server,
	}, nil
}

// openDatabase opens the pool and waits for the database to accept
// connections. Fresh deployments routinely race their database container,
// so the first pings retry on a fibonacci backoff.
func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func newChunkStore(ctx context.Context, cfg *config.Config) (chunkstore.Store, error) {
	switch cfg.ChunkBackend {
	case config.ChunkBackendFilesystem:
		store, err := chunkstore.NewFilesystem(cfg.ChunkDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ChunkBackendS3:
		store, err := chunkstore.NewS3(ctx, chunkstore.S3Options{
			Region:       cfg.S3Region,
			User:         cfg.S3RootUser,
			Password:     cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown chunk backend %q", cfg.ChunkBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	// HTTP is drained; cut the stragglers loose and release the pool.
	app.bus.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
