package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/identity-service/internal/infrastructure/db/postgres"
	redisstore "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/http/handlers"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/internal/infrastructure/security"
	"github.com/99minutos/identity-service/internal/infrastructure/system"
	"github.com/99minutos/identity-service/internal/infrastructure/telemetry"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/logger"
)

// NewServeCmd creates the serve subcommand. Its flags override the
// environment and the config file.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			autoMigrate, _ := cmd.Flags().GetBool("auto-migrate")
			return runServe(cmd.Context(), cfg, autoMigrate)
		},
	}

	cmd.Flags().String("port", "8080", "HTTP listen port")
	cmd.Flags().String("store-backend", config.BackendMemory, "credential store: memory, postgres or mongo")
	cmd.Flags().String("auth-strategy", config.StrategySession, "credential strategy: session or token")
	cmd.Flags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("log-pretty", false, "human-friendly console logs")
	cmd.Flags().String("redis-addr", "", "Redis address; enables the Redis session store and revocation cache")
	cmd.Flags().StringSlice("cors-allowed-origins", nil, "origins allowed to call the API with credentials")
	cmd.Flags().Bool("auto-migrate", false, "apply PostgreSQL migrations before serving")

	return cmd
}

// backend holds the stores selected by STORE_BACKEND and what is needed to
// probe and close them.
type backend struct {
	users       ports.CredentialStore
	revocations ports.RevocationStore
	checkers    []handlers.Checker
	closers     []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServe(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty && !cfg.IsProduction(),
		Service: cfg.Otel.ServiceName,
	})

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Otel.Endpoint, cfg.Otel.ServiceName, logger.Component("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	be, err := openBackend(ctx, cfg, autoMigrate, log)
	if err != nil {
		return err
	}
	defer be.close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		be.checkers = append(be.checkers, handlers.Checker{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	bcryptHasher, err := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("bcrypt_cost", cfg.Auth.BcryptCost).Wrap(err)
	}
	hashPool := queue.NewHashPool(cfg.Auth.HashWorkers, bcryptHasher, logger.Component("hash_pool"))
	poolCtx, stopPool := context.WithCancel(context.Background())
	hashPool.Start(poolCtx)
	defer func() {
		stopPool()
		hashPool.Wait()
	}()

	clock := system.Clock{}
	policy := security.NewPolicy()
	factory := service.NewUserFactory(policy, hashPool, clock, system.UUIDGenerator{})
	auth, err := service.NewAuthService(be.users, factory, policy, hashPool, clock, logger.Component("auth"))
	if err != nil {
		return err
	}

	issuer, err := buildIssuer(ctx, cfg, be, rdb, clock, log)
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Options{
		Accounts:           service.NewAccountService(auth, issuer, policy, logger.Component("accounts")),
		Cookie:             handler.CookieConfig{Name: cfg.HTTP.CookieName, Secure: cfg.HTTP.CookieSecure},
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Checkers:           be.checkers,
		Log:                logger.Component("http"),
		Metrics:            true,
	})

	return serveUntilDone(ctx, e, ":"+cfg.Port, cfg.HTTP.ShutdownTimeout, log)
}

func openBackend(ctx context.Context, cfg *config.Config, autoMigrate bool, log zerolog.Logger) (*backend, error) {
	be := &backend{}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if autoMigrate {
			if err := migrateUp(cfg.Postgres.URL); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		be.closers = append(be.closers, pool.Close)
		be.users = postgres.NewCredentialStore(pool)
		be.revocations = postgres.NewRevocationStore(pool)
		be.checkers = append(be.checkers, handlers.Checker{Name: "postgres", Check: pool.Ping})

	case config.BackendMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		be.closers = append(be.closers, func() { _ = client.Disconnect(context.Background()) })
		users := mongostore.NewCredentialStore(db)
		revocations := mongostore.NewRevocationStore(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			be.close()
			return nil, err
		}
		if err := revocations.EnsureIndexes(ctx); err != nil {
			be.close()
			return nil, err
		}
		be.users, be.revocations = users, revocations
		be.checkers = append(be.checkers, handlers.Checker{
			Name:  "mongodb",
			Check: func(ctx context.Context) error { return client.Ping(ctx, nil) },
		})

	default:
		log.Warn().Msg("using in-memory credential store; accounts are lost on restart")
		be.users = memory.NewCredentialStore()
		be.revocations = memory.NewRevocationStore()
	}

	log.Info().Str("backend", cfg.StoreBackend).Msg("credential store ready")
	return be, nil
}

// buildIssuer selects the credential strategy. The token strategy also
// starts the revocation pruner, which stops with ctx.
func buildIssuer(ctx context.Context, cfg *config.Config, be *backend, rdb *redis.Client, clock ports.Clock, log zerolog.Logger) (ports.CredentialIssuer, error) {
	switch cfg.AuthStrategy {
	case config.StrategyToken:
		revocations := be.revocations
		if rdb != nil {
			revocations = redisstore.NewCachedRevocationStore(rdb, revocations, logger.Component("revocation_cache"))
		}
		issuer, err := service.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, clock,
			system.UUIDGenerator{}, system.ULIDGenerator{Clock: clock}, revocations, logger.Component("tokens"))
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
		pruner := queue.NewPruner(revocations, clock, cfg.Auth.RevocationPruneInterval, logger.Component("pruner"))
		go pruner.Run(ctx)
		return issuer, nil

	default:
		var sessions ports.SessionStore
		if rdb != nil {
			sessions = redisstore.NewSessionStore(rdb)
		} else {
			log.Warn().Msg("using in-memory session store; sessions are not shared across instances")
			sessions = memory.NewSessionStore()
		}
		return service.NewSessionIssuer(sessions, clock, cfg.Auth.SessionTTL, logger.Component("sessions")), nil
	}
}

func serveUntilDone(ctx context.Context, e *echo.Echo, addr string, timeout time.Duration, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return oops.Code("HTTP_SERVE_FAILED").With("addr", addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
