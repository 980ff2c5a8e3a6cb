package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/baechuer/natours-auth/internal/domain"
	"github.com/baechuer/natours-auth/internal/infrastructure/redis"
	"github.com/baechuer/natours-auth/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
	// TrustProxy keys anonymous callers on X-Forwarded-For instead of
	// the socket address.
	TrustProxy bool
}

// RateLimitFixedWindow limits requests per route and caller (user id when
// authenticated, client IP otherwise). Counting happens in Redis; when the
// limiter is nil or Redis errors, an in-process httprate limiter with the
// same budget takes over.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	limited := func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, r, domain.ErrRateLimited(cfg.RouteKey))
	}

	local := httprate.Limit(
		cfg.Limit,
		cfg.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return cfg.RouteKey + ":" + userOrIP(r, cfg.TrustProxy), nil
		}),
		httprate.WithLimitHandler(limited),
	)

	return func(next http.Handler) http.Handler {
		fallback := local(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if limiter == nil {
				fallback.ServeHTTP(w, r)
				return
			}

			bucket := windowBucket(time.Now(), cfg.Window)
			key := "rl:" + cfg.RouteKey + ":" + userOrIP(r, cfg.TrustProxy) + ":" + strconv.FormatInt(bucket, 10)

			dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("route", cfg.RouteKey).Msg("redis rate limiter failed, using local limiter")
				fallback.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					secs := int(dec.RetryAfter.Round(time.Second) / time.Second)
					w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
				}
				limited(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func windowBucket(now time.Time, window time.Duration) int64 {
	sec := int64(window.Seconds())
	if sec <= 0 {
		sec = 60
	}
	return now.Unix() / sec
}

// userOrIP prefers the authenticated user id; otherwise the client IP.
func userOrIP(r *http.Request, trustProxy bool) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + uid
	}
	return "ip:" + clientIP(r, trustProxy)
}

// clientIP reads X-Forwarded-For only when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
