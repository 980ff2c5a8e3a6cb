package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/baechuer/natours-auth/internal/domain"
)

// LogNotifier writes notifications to the log instead of delivering them.
// It also keeps the last message so local tooling can read it back.
type LogNotifier struct {
	lg zerolog.Logger

	mu   sync.Mutex
	last *domain.Notification
}

func NewLogNotifier(lg zerolog.Logger) *LogNotifier {
	return &LogNotifier{lg: lg.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) Send(ctx context.Context, msg domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	n.last = &msg
	n.mu.Unlock()

	n.lg.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("notification (not delivered)")
	return nil
}

// Last returns the most recent notification, if any.
func (n *LogNotifier) Last() (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return domain.Notification{}, false
	}
	return *n.last, true
}
