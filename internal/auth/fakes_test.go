package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"school-directory/internal/logger"
	"school-directory/internal/mailer"
	"school-directory/internal/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	mu       sync.Mutex
	users    map[string]*User
	sessions map[uuid.UUID]*SessionRecord
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[string]*User),
		sessions: make(map[uuid.UUID]*SessionRecord),
	}
}

func (r *memoryRepo) GetOrCreateUser(_ context.Context, email string, now time.Time) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[email]
	if !ok {
		u = &User{ID: uuid.New(), Email: email, CreatedAt: now}
		r.users[email] = u
	}
	u.LastSignInAt = now
	return u, nil
}

func (r *memoryRepo) CreateSession(_ context.Context, userID uuid.UUID, now, expiresAt time.Time) (*SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &SessionRecord{ID: uuid.New(), UserID: userID, CreatedAt: now, ExpiresAt: expiresAt}
	r.sessions[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) GetSession(_ context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok || !rec.ExpiresAt.After(now) {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

func (r *memoryRepo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.sessions, id)
	return nil
}

func (r *memoryRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.sessions {
		if !rec.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail sent")
	code := codePattern.FindString(o.sent[len(o.sent)-1].Body)
	require.NotEmpty(t, code, "no code in mail body")
	return code
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now().Truncate(time.Second)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type providerFixture struct {
	provider   *OTPProvider
	repo       *memoryRepo
	mail       *outbox
	challenges *MemoryChallengeStore
	clock      *clock
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()

	clk := newClock()
	challenges := NewMemoryChallengeStore()
	challenges.now = clk.Now

	f := &providerFixture{
		repo:       newMemoryRepo(),
		mail:       &outbox{},
		challenges: challenges,
		clock:      clk,
	}
	f.provider = NewOTPProvider(
		challenges,
		f.mail,
		f.repo,
		NewTokenIssuer("test-secret", "school-directory"),
		OTPConfig{
			CodeTTL:        10 * time.Minute,
			MaxAttempts:    5,
			ResendCooldown: 60 * time.Second,
			SessionTTL:     24 * time.Hour,
		},
		logger.Discard(),
		metrics.NewMock(),
	)
	f.provider.now = clk.Now
	f.provider.hashCost = bcrypt.MinCost
	return f
}

// stubProvider scripts Provider results for flow tests.
type stubProvider struct {
	sendErr    error
	verifyErr  error
	signOutErr error
	signOuts   []string
	block      chan struct{}
	started    chan struct{}
}

func (s *stubProvider) SendOTP(context.Context, string) error {
	if s.block != nil {
		close(s.started)
		<-s.block
	}
	return s.sendErr
}

func (s *stubProvider) VerifyOTP(_ context.Context, email, code string) (*Session, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	if code != "123456" {
		return nil, providerError(msgInvalidCode, nil)
	}
	return &Session{UserID: "user-1", Email: email, Token: "token-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubProvider) Restore(_ context.Context, token string) (*Session, error) {
	if token == "token-1" {
		return &Session{UserID: "user-1", Email: "user@example.com", Token: token}, nil
	}
	return nil, ErrInvalidToken
}

func (s *stubProvider) SignOut(_ context.Context, token string) error {
	s.signOuts = append(s.signOuts, token)
	return s.signOutErr
}

var errBoom = errors.New("boom")
