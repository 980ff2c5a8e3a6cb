package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for account events.
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record writes one audit event. It matches the callback shape taken by
// auth.Service.WithAudit. Failed results are logged at warn level.
func (l *Logger) Record(action string, fields map[string]string) {
	ev := l.log.Info()
	if fields["result"] != "success" {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg("audit event")
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
