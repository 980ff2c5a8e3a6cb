package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/natours-auth/internal/domain"
)

type scriptedSender struct {
	errs  []error
	calls int
}

func (s *scriptedSender) Send(ctx context.Context, n domain.Notification) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func fastRetry(next Sender, max uint64) *Retrying {
	return NewRetrying(next, RetryConfig{
		MaxRetries: max,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}, zerolog.Nop())
}

var note = domain.Notification{To: "ann@x.com", Subject: "s", Body: "b"}

func TestRetrying_RetriesTemporaryUntilSuccess(t *testing.T) {
	s := &scriptedSender{errs: []error{Temporary("down"), Temporary("still down")}}

	err := fastRetry(s, 3).Send(context.Background(), note)

	require.NoError(t, err)
	assert.Equal(t, 3, s.calls)
}

func TestRetrying_StopsOnPermanent(t *testing.T) {
	s := &scriptedSender{errs: []error{Permanent("bad address"), nil}}

	err := fastRetry(s, 3).Send(context.Background(), note)

	require.Error(t, err)
	assert.False(t, IsTemporary(err))
	assert.Equal(t, 1, s.calls)
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	s := &scriptedSender{errs: []error{Temporary("1"), Temporary("2"), Temporary("3"), Temporary("4")}}

	err := fastRetry(s, 2).Send(context.Background(), note)

	require.Error(t, err)
	assert.True(t, IsTemporary(err))
	assert.Equal(t, 3, s.calls)
}

func TestRetrying_NonClassifiedErrorIsNotRetried(t *testing.T) {
	s := &scriptedSender{errs: []error{errors.New("boom")}}

	err := fastRetry(s, 3).Send(context.Background(), note)

	require.Error(t, err)
	assert.Equal(t, 1, s.calls)
}

func TestRetrying_HonoursCancelledContext(t *testing.T) {
	s := &scriptedSender{errs: []error{Temporary("1"), Temporary("2"), Temporary("3")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRetrying(s, RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}, zerolog.Nop()).Send(ctx, note)

	require.Error(t, err)
	assert.LessOrEqual(t, s.calls, 1)
}

func TestIsTemporary_Wrapped(t *testing.T) {
	assert.True(t, IsTemporary(fmt.Errorf("ctx: %w", Temporary("x"))))
	assert.False(t, IsTemporary(fmt.Errorf("ctx: %w", Permanent("x"))))
	assert.False(t, IsTemporary(errors.New("plain")))
	assert.False(t, IsTemporary(nil))
}

func TestClassifySMTPError(t *testing.T) {
	assert.False(t, IsTemporary(classifySMTPError(errors.New("535 5.7.8 Username and Password not accepted"))))
	assert.False(t, IsTemporary(classifySMTPError(errors.New("550 mailbox unavailable"))))
	assert.True(t, IsTemporary(classifySMTPError(errors.New("dial tcp: i/o timeout"))))
}

func TestRenderHTML_EscapesAndSplitsParagraphs(t *testing.T) {
	out := renderHTML("Reset & go", "Forgot your password?\n\nhttps://x.test/reset/abc?a=1&b=2")

	assert.Contains(t, out, "<h2>Reset &amp; go</h2>")
	assert.Contains(t, out, "<p>Forgot your password?</p>")
	assert.Contains(t, out, "a=1&amp;b=2")
}

func TestSMTPNotifier_InvalidRecipientIsPermanent(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 2525, From: "noreply@natours.io"}, zerolog.Nop())

	err := n.Send(context.Background(), domain.Notification{To: "not an address", Subject: "s", Body: "b"})

	require.Error(t, err)
	assert.False(t, IsTemporary(err))
}

func TestSMTPNotifier_Config(t *testing.T) {
	cfg := SMTPConfig{
		Host:     "smtp.mailtrap.io",
		Port:     587,
		Username: "user",
		Password: "password",
		From:     "noreply@natours.io",
		Timeout:  5 * time.Second,
	}

	n := NewSMTPNotifier(cfg, zerolog.Nop())

	assert.Equal(t, cfg, n.cfg)
	assert.Len(t, n.clientOptions(), 5)
}
