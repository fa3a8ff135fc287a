// Package server wires the cloudkeeper components together and runs the
// HTTP API until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/config"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/credentials"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/services"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rdb    redis.UniversalClient
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, m, err := repomanager.Open(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.init(ctx, m); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context, m repomanager.RepositoryManager) error {
	c := app.config

	resolver, err := storage.NewResolver(c.StorageRoot)
	if err != nil {
		return err
	}

	var (
		denylist sessions.Denylist = sessions.NewMemoryDenylist()
		limiter  ratelimit.Limiter = ratelimit.NewMemoryLimiter(ratelimit.Rate(c.RateLimitPeriod), c.RateLimitBurst)
	)
	if c.RedisAddr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		if err := app.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		denylist = sessions.NewRedisDenylist(app.rdb, "")
		limiter = ratelimit.NewRedisLimiter(app.rdb, "", ratelimit.Rate(c.RateLimitPeriod), c.RateLimitBurst)
	}
	if c.RateLimitPeriod <= 0 || c.RateLimitBurst <= 0 {
		limiter = ratelimit.Disabled{}
	}

	var checker credentials.DomainChecker
	if c.VerifyEmailDomain {
		checker = credentials.NewDNSChecker(nil)
	}

	tokens := auth.NewTokenManager([]byte(c.SecretKey), c.AccessTokenValidityDuration)

	users := services.NewUserService(services.UserDeps{
		DB:                  app.db,
		Repos:               m,
		Tokens:              tokens,
		Storage:             resolver,
		Denylist:            denylist,
		Tracker:             sessions.NewTracker(c.MaxSessions),
		Checker:             checker,
		RegistrationEnabled: c.RegistrationEnabled,
	}, app.logger)
	files := services.NewFileService(resolver, c.ReadOnly, c.Workers, app.logger)

	app.server = httpapi.NewServer(httpapi.Deps{
		Config:   c,
		Users:    users,
		Files:    files,
		Tokens:   tokens,
		Denylist: denylist,
		Limiter:  limiter,
		Metrics:  metrics.New(),
		DB:       app.db,
	}, app.logger)
	return nil
}

// Run serves until SIGINT/SIGTERM or until ctx is cancelled, then releases
// the database and Redis connections.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage_root", app.config.StorageRoot, "redis", app.rdb != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})

	err := g.Wait()
	if cerr := app.Close(); cerr != nil {
		app.logger.Error(ctx, "close error", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

// Close releases external connections.
func (app *App) Close() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
		app.rdb = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, err)
		}
		app.db = nil
	}
	return errors.Join(errs...)
}
