package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/audit"
	"github.com/baechuer/natours-auth/internal/config"
	"github.com/baechuer/natours-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/natours-auth/internal/infrastructure/memory"
	"github.com/baechuer/natours-auth/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/natours-auth/internal/infrastructure/notify"
	"github.com/baechuer/natours-auth/internal/infrastructure/redis"
	"github.com/baechuer/natours-auth/internal/infrastructure/security"
	"github.com/baechuer/natours-auth/internal/logger"
	http_handlers "github.com/baechuer/natours-auth/internal/transport/http/handlers"
	"github.com/baechuer/natours-auth/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	// NewRepo returns the user store, its readiness pinger and a closer.
	NewRepo func(ctx context.Context, cfg *config.Config) (auth.UserRepo, http_handlers.Pinger, func(), error)

	NewRedis func(addr, password string, db int) RedisClient

	NewNotifier func(cfg *config.Config, lg zerolog.Logger) (auth.Notifier, func(), error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	lg := logger.Logger

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, storePinger, closeStore, err := deps.NewRepo(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanupFns := []func(){closeStore}

	// 2) redis (best-effort)
	var limiter *redis.FixedWindowLimiter
	var redisPinger http_handlers.Pinger
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(ctx); err != nil {
			lg.Warn().Err(err).Msg("redis unavailable; using in-process rate limiting")
			_ = c.Close()
		} else {
			lg.Info().Msg("redis connected")
			redisPinger = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			if rc, ok := c.(*redis.Client); ok {
				limiter = redis.NewFixedWindowLimiter(rc)
			}
		}
	}

	// 3) notifier
	notifier, closeNotifier, err := deps.NewNotifier(cfg, lg)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	cleanupFns = append(cleanupFns, closeNotifier)

	// 4) security
	lg.Info().Str("issuer", cfg.JWTIssuer).Dur("ttl", cfg.SessionTokenTTL).Msg("initializing jwt issuer")
	pool := security.NewHashPool(security.NewBcryptHasher(cfg.BcryptCost), cfg.HashWorkers, cfg.HashQueueDepth)
	cleanupFns = append(cleanupFns, pool.Close)
	tokens := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTokenTTL)

	// 5) service
	authSvc := auth.NewService(users, pool, tokens, notifier, auth.Config{
		PasswordResetTokenTTL: cfg.PasswordResetTokenTTL,
		ResetDeliveryTimeout:  cfg.ResetDeliveryTimeout,
	}).WithAudit(audit.New(lg).Record)

	// seed (dev only)
	if cfg.SeedUsers {
		if cfg.Env != "dev" {
			lg.Warn().Str("env", cfg.Env).Msg("SEED_USERS ignored outside dev")
		} else if err := SeedUsers(ctx, authSvc.Credentials(), DefaultSeedPassword, lg); err != nil {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	// 6) handlers
	healthH := http_handlers.NewHealthHandler(map[string]http_handlers.Pinger{
		"postgres": storePinger,
		"redis":    redisPinger,
	})
	authH := http_handlers.NewAuthHandler(authSvc, cfg.PasswordResetBaseURL)
	usersH := http_handlers.NewUserHandler(authSvc)

	// 7) router
	limits := router.DefaultRateLimits()
	limits.TrustProxyHeaders = cfg.TrustProxyHeaders
	rdeps := router.Deps{
		Health: healthH,
		Auth:   authH,
		Users:  usersH,
		Gate:   authSvc.Gate(),
		Limits: limits,
	}
	if limiter != nil {
		rdeps.Limiter = limiter
	}
	mux, err := deps.NewRouter(rdeps)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Safe to call more than once.
	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewRepo:    newPostgresRepo,
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewNotifier: NewNotifier,
		NewRouter:   router.New,
	}
}

func newPostgresRepo(ctx context.Context, cfg *config.Config) (auth.UserRepo, http_handlers.Pinger, func(), error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := postgres.NewUserRepo(db)
	return repo, repo, func() { _ = db.Close() }, nil
}

// OpenDB connects to Postgres and applies migrations when DB_AUTO_MIGRATE is set.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := config.NewDB(cfg.DBAddr, cfg.DBMaxOpenConns, cfg.DBDebug)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Logger.Info().Msg("migrations applied")
	}
	return db, nil
}

// NewNotifier builds the configured delivery channel. SMTP and RabbitMQ are
// wrapped in retries; the log notifier never fails.
func NewNotifier(cfg *config.Config, lg zerolog.Logger) (auth.Notifier, func(), error) {
	retryCfg := notify.RetryConfig{MaxRetries: 3}

	switch cfg.Notifier {
	case "smtp":
		smtp := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  attemptTimeout(cfg.ResetDeliveryTimeout, retryCfg.MaxRetries),
			Insecure: cfg.SMTPInsecure,
		}, lg)
		return notify.NewRetrying(smtp, retryCfg, lg), func() {}, nil

	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange, lg)
		if err != nil {
			if cfg.Env == "dev" {
				lg.Warn().Err(err).Msg("rabbitmq unavailable; logging notifications instead")
				return memory.NewLogNotifier(lg), func() {}, nil
			}
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return notify.NewRetrying(pub, retryCfg, lg), func() { _ = pub.Close() }, nil

	case "log", "":
		return memory.NewLogNotifier(lg), func() {}, nil
	}
	return nil, nil, errors.New("bootstrap: unknown notifier " + cfg.Notifier)
}

/*
========================
 helpers
========================
*/

// minAttemptTimeout keeps a single SMTP dial usable when the overall
// budget is small.
const minAttemptTimeout = 500 * time.Millisecond

// attemptTimeout splits the delivery budget across the first try and
// its retries.
func attemptTimeout(budget time.Duration, retries uint64) time.Duration {
	if budget <= 0 {
		return 0
	}
	per := budget / time.Duration(retries+1)
	if per < minAttemptTimeout {
		per = min(minAttemptTimeout, budget)
	}
	return per
}

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
