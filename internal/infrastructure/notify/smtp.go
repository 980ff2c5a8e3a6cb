package notify

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/baechuer/natours-auth/internal/domain"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

// SMTPNotifier delivers notifications as plain-text mail with an HTML
// alternative. It implements auth.Notifier.
type SMTPNotifier struct {
	lg  zerolog.Logger
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig, lg zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		lg:  lg.With().Str("component", "smtp_notifier").Logger(),
		cfg: cfg,
	}
}

func (s *SMTPNotifier) Send(ctx context.Context, n domain.Notification) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m, err := s.message(n)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return Permanent("smtp client init failed: " + err.Error())
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("subject", n.Subject).Msg("smtp send failed")
		return classifySMTPError(err)
	}

	s.lg.Debug().Str("subject", n.Subject).Msg("smtp send ok")
	return nil
}

func (s *SMTPNotifier) message(n domain.Notification) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, Permanent("invalid from address: " + err.Error())
	}
	if err := m.To(n.To); err != nil {
		return nil, Permanent("invalid to address: " + err.Error())
	}
	m.Subject(n.Subject)
	m.SetBodyString(mail.TypeTextPlain, n.Body)
	m.AddAlternativeString(mail.TypeTextHTML, renderHTML(n.Subject, n.Body))
	return m, nil
}

func (s *SMTPNotifier) clientOptions() []mail.Option {
	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// classifySMTPError treats authentication and 5xx mailbox rejections as
// permanent. Everything else is assumed to be transient.
func classifySMTPError(err error) error {
	msg := err.Error()
	if containsAny(msg, "535", "5.7.8", "550", "553", "authentication", "Username and Password not accepted") {
		return Permanent("smtp rejected: " + msg)
	}
	return Temporary("smtp transient failure: " + msg)
}

// renderHTML wraps the plain body in minimal escaped HTML, one paragraph
// per blank-line separated block.
func renderHTML(title, body string) string {
	var b strings.Builder
	b.WriteString(`<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
    <h2>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h2>\n")
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("    <p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br/>"))
		b.WriteString("</p>\n")
	}
	b.WriteString("  </body>\n</html>")
	return b.String()
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
