// Package server wires the credential service together: it opens the store,
// applies migrations, builds the user service and runs the HTTP API and the
// gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/consejo/internal/logging"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
	"github.com/dmitrijs2005/consejo/internal/server/config"
	"github.com/dmitrijs2005/consejo/internal/server/ratelimit"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/consejo/internal/server/services"

	gs "github.com/dmitrijs2005/consejo/internal/server/grpc"
	hs "github.com/dmitrijs2005/consejo/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       redis.UniversalClient
	limiter     *ratelimit.Limiter
	userService *services.UserService
}

// NewApp opens the database, runs pending migrations and builds the services.
// Redis is optional: without an address login and recovery are not throttled.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	if c.RedisAddr != "" {
		app.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{c.RedisAddr}})
		app.limiter = ratelimit.New(app.redis, map[ratelimit.Scope]ratelimit.Limit{
			ratelimit.ScopeLogin:    {MaxAttempts: c.LoginMaxAttempts, Window: c.RateLimitWindow},
			ratelimit.ScopeRecovery: {MaxAttempts: c.RecoveryMaxAttempts, Window: c.RateLimitWindow},
		})
	} else {
		logger.Warn(ctx, "no redis address configured, attempts are not throttled")
	}

	app.userService = services.NewUserService(db, m, auth.NewBcryptHasher(c.BcryptCost), logger, c)

	return app, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	var throttle hs.Throttle
	if app.limiter != nil {
		throttle = app.limiter
	}

	s := hs.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, throttle, app.db, app.config.SecretKey, app.config.TrustProxyHeaders)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.db, app.config.HealthCheckInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
