package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"t2i_backend/backends"
	"t2i_backend/core"
	"t2i_backend/db"
	"t2i_backend/logging"
	"t2i_backend/metrics"
	"t2i_backend/shutdown"
	"t2i_backend/t2i"
	"t2i_backend/webapi"
)

const (
	historyCleanupInterval = 6 * time.Hour
	sessionCleanupInterval = 10 * time.Minute
	recentDispatchCapacity = 100
)

// App is the assembled server: history database, backend pool, dispatcher
// and API, with their shutdown steps registered on the manager.
type App struct {
	config   *core.Config
	logger   *logging.Logger
	manager  *shutdown.Manager
	database *db.Database
	history  *db.AsyncWriter[db.ImageRecord]
	pool     *backends.Pool
	sessions *webapi.SessionStore
	server   *webapi.Server
}

// NewApp opens every resource. On error, whatever was opened is closed.
func NewApp(cfg *core.Config, logger *logging.Logger, manager *shutdown.Manager) (app *App, err error) {
	a := &App{config: cfg, logger: logger, manager: manager}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	for _, dir := range []string{cfg.DataDir, cfg.OutputPath} {
		if err := core.EnsureDataDirectory(dir); err != nil {
			return nil, err
		}
	}

	a.database, err = db.Open(cfg.DBPath)
	if err != nil {
		return nil, core.ErrDatabase(cfg.DBPath, err)
	}
	a.history = db.NewHistoryWriter(db.NewImageRepository(a.database), logger)
	a.history.Start()

	recorder := metrics.NewRecorder(metrics.NewStore(recentDispatchCapacity, core.Version, time.Now()))

	a.pool = backends.NewPool(backends.DefaultRegistry(), logger)
	a.pool.OnLease = recorder.ObserveLease
	a.pool.OnRelease = recorder.ObserveRelease
	n, err := a.pool.LoadFile(cfg.BackendsFile)
	if err != nil {
		return nil, core.ErrBackendsConfig(cfg.BackendsFile, err)
	}
	stats := a.pool.Stats()
	logger.Info("Backends loaded",
		zap.String("file", cfg.BackendsFile),
		zap.Int("configured", n),
		zap.Int("valid", stats.Valid))
	if stats.Valid == 0 {
		logger.Warn("No valid backends; generation requests will fail until one is added")
	}

	dispatcher := t2i.NewDispatcher(a.pool, t2i.Config{
		MaxParallel:  cfg.MaxParallel,
		LeaseTimeout: cfg.LeaseTimeout,
		Observer:     recorder,
	}, logger)

	a.sessions = webapi.NewSessionStore(cfg.SessionTTL)

	serverCfg := webapi.DefaultServerConfig()
	serverCfg.Addr = cfg.Addr()
	serverCfg.OutputPath = cfg.OutputPath
	serverCfg.ModelRoot = cfg.ModelRoot
	serverCfg.AllowedModels = cfg.AllowedModelsPattern()
	serverCfg.WSSendTimeout = cfg.WSSendTimeout

	a.server, err = webapi.NewServer(serverCfg, webapi.Deps{
		Dispatcher: dispatcher,
		Pool:       a.pool,
		Sessions:   a.sessions,
		History:    a.history,
		Database:   a.database,
		Recorder:   recorder,
		Tracker:    manager.Tracker(),
	}, logger)
	if err != nil {
		return nil, err
	}

	a.registerShutdown()
	return a, nil
}

// registerShutdown orders teardown: stop HTTP, close backends, flush
// history, close the database, flush logs.
func (a *App) registerShutdown() {
	a.manager.Register("http", shutdown.PriorityHTTP, a.server.Shutdown)
	a.manager.Register("backends", shutdown.PriorityBackends, func(context.Context) error {
		return a.pool.Close()
	})
	a.manager.Register("history", shutdown.PriorityHistory, func(ctx context.Context) error {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if !a.history.StopWithTimeout(timeout) {
			return fmt.Errorf("history writer did not drain; %d rows pending", a.history.Pending())
		}
		return nil
	})
	a.manager.Register("database", shutdown.PriorityDatabase, func(context.Context) error {
		return a.database.Close()
	})
	a.manager.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		// stderr and stdout report ENOTTY/EINVAL on sync; nothing to flush
		_ = a.logger.Sync()
		return nil
	})
}

// Run serves on l until the manager's context ends, then shuts down.
func (a *App) Run(l net.Listener) error {
	ctx := a.manager.Context()

	a.sessions.StartCleanupTicker(ctx, sessionCleanupInterval)
	if a.config.HistoryRetentionDays > 0 {
		a.database.StartCleanupScheduler(ctx, a.config.HistoryRetentionDays, historyCleanupInterval,
			func(res db.CleanupResult, err error) {
				if err != nil {
					a.logger.Warn("History cleanup failed", zap.Error(err))
					return
				}
				if res.Deleted > 0 {
					a.logger.Info("History cleanup",
						zap.Int64("deleted", res.Deleted),
						zap.Duration("duration", res.Duration))
				}
			})
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(l) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			a.logger.Error("API server stopped", zap.Error(err))
		}
	}
	return errors.Join(err, a.manager.Shutdown())
}

// ListenAndRun listens on the configured address and calls Run.
func (a *App) ListenAndRun() error {
	l, err := net.Listen("tcp", a.config.Addr())
	if err != nil {
		a.closeAll()
		return fmt.Errorf("listen on %s: %w", a.config.Addr(), err)
	}
	return a.Run(l)
}

// closeAll releases resources opened by a failed NewApp or Listen.
func (a *App) closeAll() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.history != nil {
		a.history.StopWithTimeout(5 * time.Second)
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
