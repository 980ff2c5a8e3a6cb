package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Sender is the notifier shape Retrying wraps. auth.Notifier satisfies it.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

type RetryConfig struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Retrying retries temporary failures of the wrapped notifier with capped
// exponential backoff. Permanent failures and context expiry end it early.
type Retrying struct {
	next Sender
	cfg  RetryConfig
	lg   zerolog.Logger
}

func NewRetrying(next Sender, cfg RetryConfig, lg zerolog.Logger) *Retrying {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	return &Retrying{
		next: next,
		cfg:  cfg,
		lg:   lg.With().Str("component", "notify_retry").Logger(),
	}
}

func (r *Retrying) backoff() retry.Backoff {
	b := retry.NewExponential(r.cfg.BaseDelay)
	b = retry.WithCappedDuration(r.cfg.MaxDelay, b)
	return retry.WithMaxRetries(r.cfg.MaxRetries, b)
}

func (r *Retrying) Send(ctx context.Context, n domain.Notification) error {
	attempt := 0
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		err := r.next.Send(ctx, n)
		if err == nil {
			return nil
		}
		if IsTemporary(err) {
			r.lg.Warn().Err(err).Int("attempt", attempt).Msg("notification failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}
