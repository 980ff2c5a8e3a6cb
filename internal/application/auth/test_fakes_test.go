package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID map[string]domain.User
	now  func() time.Time

	// injected errors (if set, method returns error)
	getByIDErr     error
	getByEmailErr  error
	createErr      error
	updatePwdErr   error
	setResetErr    error
	clearResetErr  error
	consumeErr     error
	deactivateErr  error
	updateProfErr  error
	getByResetCall int

	// record calls
	cleared []struct{ id, hash string }
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID: map[string]domain.User{},
		now:  time.Now,
	}
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) get(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return domain.User{}, domain.ErrEmailTaken()
		}
	}
	u.CreatedAt = f.now()
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByEmailErr != nil {
		return domain.User{}, f.getByEmailErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByIDErr != nil {
		return domain.User{}, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, userID, newHash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updatePwdErr != nil {
		return domain.User{}, f.updatePwdErr
	}
	u, ok := f.byID[userID]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrUserNotFound()
	}
	now := f.now()
	u.PasswordHash = newHash
	u.PasswordChangedAt = &now
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpiresAt = nil
	f.byID[userID] = u
	return u, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateProfErr != nil {
		return domain.User{}, f.updateProfErr
	}
	u, ok := f.byID[userID]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	f.byID[userID] = u
	return u, nil
}

func (f *fakeUserRepo) Deactivate(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	u, ok := f.byID[userID]
	if !ok || !u.Active {
		return domain.ErrUserNotFound()
	}
	u.Active = false
	f.byID[userID] = u
	return nil
}

func (f *fakeUserRepo) SetResetToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setResetErr != nil {
		return time.Time{}, f.setResetErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return time.Time{}, domain.ErrUserNotFound()
	}
	exp := f.now().Add(ttl)
	h := tokenHash
	u.PasswordResetTokenHash = &h
	u.PasswordResetExpiresAt = &exp
	f.byID[userID] = u
	return exp, nil
}

func (f *fakeUserRepo) ClearResetToken(ctx context.Context, userID, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleared = append(f.cleared, struct{ id, hash string }{userID, tokenHash})
	if f.clearResetErr != nil {
		return f.clearResetErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return nil
	}
	if u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == tokenHash {
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpiresAt = nil
		f.byID[userID] = u
	}
	return nil
}

func (f *fakeUserRepo) findReset(tokenHash string) (domain.User, bool) {
	now := f.now()
	for _, u := range f.byID {
		if u.Active && u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == tokenHash && u.HasPendingReset(now) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (f *fakeUserRepo) GetByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getByResetCall++
	u, ok := f.findReset(tokenHash)
	if !ok {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	return u, nil
}

func (f *fakeUserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newHash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.consumeErr != nil {
		return domain.User{}, f.consumeErr
	}
	u, ok := f.findReset(tokenHash)
	if !ok {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	now := f.now()
	u.PasswordHash = newHash
	u.PasswordChangedAt = &now
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpiresAt = nil
	f.byID[u.ID] = u
	return u, nil
}

type fakeHasher struct {
	mu       sync.Mutex
	hashes   int
	compares int

	hashErr    error
	compareErr error
	// failHashes makes the first N Hash calls return hashErr.
	failHashes int
}

func (h *fakeHasher) Hash(ctx context.Context, password string) (string, error) {
	h.mu.Lock()
	h.hashes++
	fail := h.hashErr != nil && (h.failHashes == 0 || h.hashes <= h.failHashes)
	h.mu.Unlock()
	if fail {
		return "", h.hashErr
	}
	// Like the pool, a cancelled caller gets no hash.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	if h.compareErr != nil {
		return false, h.compareErr
	}
	return hash == "hash:"+password, nil
}

func (h *fakeHasher) hashCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashes
}

func (h *fakeHasher) compareCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.compares
}

// fakeTokens encodes "tok|<userID>|<issuedAtUnixNano>".
type fakeTokens struct {
	now     func() time.Time
	signErr error
	expired map[string]bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{now: time.Now, expired: map[string]bool{}}
}

func (f *fakeTokens) Issue(userID string) (string, error) {
	return f.IssueAt(userID, time.Time{})
}

func (f *fakeTokens) IssueAt(userID string, notBefore time.Time) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	iat := f.now()
	if notBefore.After(iat) {
		iat = notBefore
	}
	return fmt.Sprintf("tok|%s|%d", userID, iat.UnixNano()), nil
}

func (f *fakeTokens) Verify(token string) (TokenClaims, error) {
	if f.expired[token] {
		return TokenClaims{}, domain.ErrTokenExpired()
	}
	parts := strings.Split(token, "|")
	if len(parts) != 3 || parts[0] != "tok" {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	var ns int64
	if _, err := fmt.Sscan(parts[2], &ns); err != nil {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	return TokenClaims{UserID: parts[1], IssuedAt: time.Unix(0, ns)}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []domain.Notification

	// observed on the last call
	hadDeadline bool
	ctxErr      error
}

func (n *fakeNotifier) Send(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, n.hadDeadline = ctx.Deadline()
	n.ctxErr = ctx.Err()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) last() (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return domain.Notification{}, false
	}
	return n.sent[len(n.sent)-1], true
}

var errBoom = errors.New("boom")

/*
Service factory for tests
*/

type testDeps struct {
	users    *fakeUserRepo
	hasher   *fakeHasher
	tokens   *fakeTokens
	notifier *fakeNotifier
	audits   *[]auditEntry
}

func newSvcForTest(t *testing.T) (*Service, testDeps) {
	t.Helper()

	d := testDeps{
		users:    newFakeUserRepo(),
		hasher:   &fakeHasher{},
		tokens:   newFakeTokens(),
		notifier: &fakeNotifier{},
		audits:   &[]auditEntry{},
	}

	cfg := Config{
		PasswordResetTokenTTL: 10 * time.Minute,
		ResetDeliveryTimeout:  time.Second,
	}

	audits := d.audits
	svc := NewService(d.users, d.hasher, d.tokens, d.notifier, cfg).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*audits = append(*audits, auditEntry{action: action, fields: cp})
		})

	// sanity check: no nil ports
	if svc == nil {
		t.Fatalf("svc is nil")
	}

	return svc, d
}

// seedUser stores an active user whose password is pw.
func seedUser(d testDeps, id, email, pw string, role domain.Role) domain.User {
	u := domain.User{
		ID:           id,
		Name:         "Test " + id,
		Email:        email,
		Role:         role,
		PasswordHash: "hash:" + pw,
		Active:       true,
	}
	d.users.put(u)
	return u
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

func requireAuditAction(t *testing.T, audits *[]auditEntry, wantAction string) auditEntry {
	t.Helper()
	e, ok := lastAudit(audits)
	if !ok {
		t.Fatalf("expected audit entry, got none")
	}
	if e.action != wantAction {
		t.Fatalf("expected audit action %q, got %q", wantAction, e.action)
	}
	return e
}

func requireAuditField(t *testing.T, e auditEntry, k, want string) {
	t.Helper()
	got := strings.TrimSpace(e.fields[k])
	if got != want {
		t.Fatalf("expected audit field %q=%q, got %q (all=%v)", k, want, got, e.fields)
	}
}
