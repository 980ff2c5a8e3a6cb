package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

const linkBase = "https://natours.io/api/v1/users/reset-password/"

// requestReset runs ForgotPassword and returns the raw token from the sent link.
func requestReset(t *testing.T, svc *Service, d testDeps, email string) string {
	t.Helper()
	if err := svc.ForgotPassword(context.Background(), email, linkBase); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	msg, ok := d.notifier.last()
	if !ok {
		t.Fatalf("expected a notification")
	}
	i := strings.Index(msg.Body, linkBase)
	if i < 0 {
		t.Fatalf("link not in body: %q", msg.Body)
	}
	raw := msg.Body[i+len(linkBase):]
	if j := strings.IndexAny(raw, "\n "); j >= 0 {
		raw = raw[:j]
	}
	return raw
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newSvcForTest(t)
	err := svc.ForgotPassword(context.Background(), "  ", linkBase)
	requireDomainCode(t, err, "missing_email")
}

func TestForgotPassword_UnknownEmail_NotFound(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	err := svc.ForgotPassword(context.Background(), "ghost@x.io", linkBase)
	requireDomainCode(t, err, "user_not_found")

	var de *domain.Error
	if !errors.As(err, &de) || de.Message != "No user found with the given email address" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, ok := d.notifier.last(); ok {
		t.Fatalf("nothing may be sent")
	}
}

func TestForgotPassword_StoresOnlyDigest(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	u := seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)

	raw := requestReset(t, svc, d, "A@x.io")
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%q)", len(raw), raw)
	}

	stored := d.users.get(u.ID)
	if stored.PasswordResetTokenHash == nil || stored.PasswordResetExpiresAt == nil {
		t.Fatalf("reset fields must be set together")
	}
	if *stored.PasswordResetTokenHash == raw {
		t.Fatalf("raw token must never be stored")
	}
	if *stored.PasswordResetTokenHash != hashResetToken(raw) {
		t.Fatalf("stored digest does not match")
	}
	if !d.notifier.hadDeadline {
		t.Fatalf("delivery must run under its own timeout")
	}

	msg, _ := d.notifier.last()
	if msg.To != "a@x.io" || !strings.Contains(msg.Subject, "10 min") {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestForgotPassword_DeliveryFailure_RollsBack(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	u := seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	d.notifier.err = errors.New("smtp down")

	err := svc.ForgotPassword(context.Background(), "a@x.io", linkBase)
	requireDomainCode(t, err, "delivery_failed")
	if domain.KindOf(err) != domain.KindService {
		t.Fatalf("expected service error kind")
	}

	stored := d.users.get(u.ID)
	if stored.PasswordResetTokenHash != nil || stored.PasswordResetExpiresAt != nil {
		t.Fatalf("reset fields must be rolled back")
	}
	if len(d.users.cleared) != 1 {
		t.Fatalf("expected one rollback, got %d", len(d.users.cleared))
	}
}

func TestForgotPassword_DeliveryRunsAfterCallerCancel(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)

	// The fake repo ignores ctx, so only delivery can observe the cancel.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.reset.Request(ctx, "a@x.io", linkBase); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if d.notifier.ctxErr != nil {
		t.Fatalf("delivery must not inherit caller cancellation, got %v", d.notifier.ctxErr)
	}
}

func TestForgotPassword_RandomFailure(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	svc.reset.random = bytes.NewReader(nil)

	err := svc.ForgotPassword(context.Background(), "a@x.io", linkBase)
	requireDomainCode(t, err, "random_failed")
}

func TestResetPassword_HappyPath_SingleUse(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	u := seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	d.tokens.now = func() time.Time { return time.Now().Add(-time.Minute) }
	oldTok, _ := d.tokens.Issue(u.ID)

	raw := requestReset(t, svc, d, "a@x.io")

	res, err := svc.ResetPassword(context.Background(), raw, "brandnew1", "brandnew1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected a fresh token")
	}

	stored := d.users.get(u.ID)
	if stored.PasswordHash != "hash:brandnew1" || stored.PasswordChangedAt == nil {
		t.Fatalf("unexpected stored user %+v", stored)
	}
	if stored.PasswordResetTokenHash != nil {
		t.Fatalf("reset fields must be cleared")
	}

	// Fresh token authenticates; the pre-change one does not.
	if _, err := svc.Gate().Authenticate(context.Background(), "Bearer "+res.Token); err != nil {
		t.Fatalf("fresh token must pass, got %v", err)
	}
	_, err = svc.Gate().Authenticate(context.Background(), "Bearer "+oldTok)
	requireDomainCode(t, err, "password_changed")

	// Second use of the same token fails.
	_, err = svc.ResetPassword(context.Background(), raw, "another12", "another12")
	requireDomainCode(t, err, "invalid_reset_token")
}

func TestResetPassword_InvalidToken_NoHashWork(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)

	_, err := svc.ResetPassword(context.Background(), "deadbeef", "brandnew1", "brandnew1")
	requireDomainCode(t, err, "invalid_reset_token")
	if d.hasher.hashCount() != 0 {
		t.Fatalf("unknown tokens must not cost a hash")
	}

	_, err = svc.ResetPassword(context.Background(), "", "brandnew1", "brandnew1")
	requireDomainCode(t, err, "invalid_reset_token")
}

func TestResetPassword_Expired(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	raw := requestReset(t, svc, d, "a@x.io")

	d.users.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, err := svc.ResetPassword(context.Background(), raw, "brandnew1", "brandnew1")
	requireDomainCode(t, err, "invalid_reset_token")
}

func TestResetPassword_Mismatch_KeepsToken(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	u := seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	raw := requestReset(t, svc, d, "a@x.io")

	_, err := svc.ResetPassword(context.Background(), raw, "brandnew1", "brandnew2")
	requireDomainCode(t, err, "password_mismatch")

	if d.users.get(u.ID).PasswordResetTokenHash == nil {
		t.Fatalf("failed validation must not consume the token")
	}
}

func TestResetPassword_NewRequestSupersedesOld(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)

	first := requestReset(t, svc, d, "a@x.io")
	second := requestReset(t, svc, d, "a@x.io")

	_, err := svc.ResetPassword(context.Background(), first, "brandnew1", "brandnew1")
	requireDomainCode(t, err, "invalid_reset_token")

	if _, err := svc.ResetPassword(context.Background(), second, "brandnew1", "brandnew1"); err != nil {
		t.Fatalf("latest token must work, got %v", err)
	}
}

func TestResetPassword_ConcurrentConsumers_OneWins(t *testing.T) {
	t.Parallel()

	svc, d := newSvcForTest(t)
	seedUser(d, "u1", "a@x.io", "pw123456", domain.RoleUser)
	raw := requestReset(t, svc, d, "a@x.io")

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ResetPassword(context.Background(), raw, "brandnew1", "brandnew1")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !domain.Is(err, "invalid_reset_token") {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
