// Package server wires configuration, storage backends and the HTTP API into
// a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/logging"
	"github.com/dmitrijs2005/exposureshield/internal/server/config"
	"github.com/dmitrijs2005/exposureshield/internal/server/httpapi"
	"github.com/dmitrijs2005/exposureshield/internal/server/mailer"
	"github.com/dmitrijs2005/exposureshield/internal/server/metrics"
	"github.com/dmitrijs2005/exposureshield/internal/server/password"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/kv"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/exposureshield/internal/server/services"
	"github.com/dmitrijs2005/exposureshield/internal/server/tokenstore"
)

const sweepInterval = time.Minute

// syncer is implemented by buffering loggers such as *logging.ZapLogger.
type syncer interface {
	Sync() error
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	kv         kv.Store
	dispatcher *mailer.Dispatcher
	server     *httpapi.HTTPServer
}

// NewApp connects the configured backends and builds the HTTP server. An
// empty DatabaseDSN or RedisAddr selects the in-memory implementation.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, db, err := repomanager.New(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newKVStore(ctx, c)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("token store init error: %w", err)
	}

	if c.SecretKey == "" || c.RefreshSecretKey == "" {
		logger.Warn(ctx, "token signing secret is not configured; token operations will fail")
	}
	if db == nil {
		logger.Warn(ctx, "using in-memory account directory; data is lost on restart")
	}

	reg, m := metrics.NewRegistry()

	dispatcher := mailer.NewDispatcher(mailer.NewLogMailer(logger.With("module", "mailer")), logger, mailer.DefaultSendTimeout)
	dispatcher.OnResult = func(_ mailer.Message, err error) { m.ObserveEmail(err) }

	svc := services.NewAuthService(db, rm,
		tokenstore.New(store),
		password.NewHasher(),
		dispatcher,
		logger.With("module", "auth_service"),
		c)

	checks := map[string]httpapi.HealthCheck{"tokens": store.Ping}
	if db != nil {
		checks["database"] = db.PingContext
	}

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		kv:         store,
		dispatcher: dispatcher,
		server:     httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, svc, reg, m, checks),
	}, nil
}

func newKVStore(ctx context.Context, c *config.Config) (kv.Store, error) {
	if c.RedisAddr == "" {
		return kv.NewMemoryStore(), nil
	}
	return kv.DialRedis(ctx, kv.RedisOptions{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Prefix:   c.RedisPrefix,
	})
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	if mem, ok := app.kv.(*kv.MemoryStore); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mem.RunSweeper(ctx, sweepInterval)
		}()
	}

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "HTTP server stopped", "error", err)
	}
	cancelFunc()
	wg.Wait()

	app.dispatcher.Wait()
	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close", "error", err)
		}
	}
	if rs, ok := app.kv.(*kv.RedisStore); ok {
		if err := rs.Close(); err != nil {
			app.logger.Error(ctx, "redis close", "error", err)
		}
	}
	if s, ok := app.logger.(syncer); ok {
		// fsync on a pipe or terminal stdout fails with EINVAL or ENOTTY.
		if err := s.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
			fmt.Fprintln(os.Stderr, "logger sync:", err)
		}
	}
}
