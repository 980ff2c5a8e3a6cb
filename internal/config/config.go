package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Key rate limits on X-Forwarded-For. Only enable behind a proxy
	// that overwrites the header.
	TrustProxyHeaders bool

	//Auth / Security
	JWTSecret       string
	JWTIssuer       string
	SessionTokenTTL time.Duration

	BcryptCost     int
	HashWorkers    int
	HashQueueDepth int

	// Postgres
	DBAddr         string
	DBDebug        bool
	DBMaxOpenConns int
	DBAutoMigrate  bool

	// Redis (optional; rate limiting falls back to in-process)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Notification: smtp | rabbitmq | log
	Notifier       string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	SMTPInsecure   bool
	RabbitURL      string
	RabbitExchange string

	// Password reset
	PasswordResetBaseURL  string
	PasswordResetTokenTTL time.Duration
	ResetDeliveryTimeout  time.Duration

	// Seed one account per role at startup (dev only).
	SeedUsers bool
}

func Load() (*Config, error) {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "natours-auth"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		Notifier:       strings.ToLower(getEnv("NOTIFIER", "log")),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:       getEnv("SMTP_FROM", "Natours <hello@natours.io>"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "natours.events"),

		PasswordResetBaseURL: os.Getenv("PASSWORD_RESET_BASE_URL"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	// The service cannot operate without its store.
	// Fail fast here to avoid starting in a broken state.
	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	if err := validatePostgresDSN(cfg.DBAddr); err != nil {
		return nil, err
	}

	var err error
	if cfg.SessionTokenTTL, err = getDuration("SESSION_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PasswordResetTokenTTL, err = getDuration("PASSWORD_RESET_TOKEN_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResetDeliveryTimeout, err = getDuration("RESET_DELIVERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	if cfg.HashWorkers, err = getInt("HASH_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.HashQueueDepth, err = getInt("HASH_QUEUE_DEPTH", 64); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate, err = getBool("DB_AUTO_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.SMTPInsecure, err = getBool("SMTP_INSECURE", false); err != nil {
		return nil, err
	}
	if cfg.SeedUsers, err = getBool("SEED_USERS", false); err != nil {
		return nil, err
	}
	if cfg.TrustProxyHeaders, err = getBool("TRUST_PROXY_HEADERS", false); err != nil {
		return nil, err
	}

	switch cfg.Notifier {
	case "log":
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("NOTIFIER=smtp requires SMTP_HOST")
		}
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("NOTIFIER=rabbitmq requires RABBIT_URL")
		}
	default:
		return nil, fmt.Errorf("invalid NOTIFIER %q: want smtp, rabbitmq or log", cfg.Notifier)
	}

	if cfg.PasswordResetBaseURL != "" {
		u, err := url.Parse(cfg.PasswordResetBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("PASSWORD_RESET_BASE_URL must be an absolute URL: %q", cfg.PasswordResetBaseURL)
		}
	}

	return cfg, nil
}

// validatePostgresDSN accepts postgres:// or postgresql:// URLs that name a database.
func validatePostgresDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DB_ADDR: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid DB_ADDR scheme %q: want postgres", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("DB_ADDR must name a database")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q: %w", key, v, err)
	}
	return b, nil
}
