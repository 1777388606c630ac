package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Challenge is a pending sign-in code for one email address.
type Challenge struct {
	CodeHash  string    `json:"code_hash"`
	Attempts  int       `json:"attempts"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChallengeStore interface {
	Save(ctx context.Context, email string, c Challenge) error
	// Get returns ErrChallengeNotFound when nothing is pending.
	Get(ctx context.Context, email string) (*Challenge, error)
	// RecordAttempt atomically counts one verification attempt and returns
	// the new total, or ErrChallengeNotFound when nothing is pending.
	RecordAttempt(ctx context.Context, email string) (int, error)
	// Consume removes the challenge and reports whether this call removed it.
	// Exactly one of several concurrent callers gets true.
	Consume(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, email string) error
}

// recordAttemptScript increments the attempt counter inside the stored JSON
// and keeps the key's TTL. Returns -1 when the key is gone.
var recordAttemptScript = redis.NewScript(`
local payload = redis.call('GET', KEYS[1])
if not payload then
  return -1
end
local challenge = cjson.decode(payload)
challenge.attempts = (challenge.attempts or 0) + 1
redis.call('SET', KEYS[1], cjson.encode(challenge), 'KEEPTTL')
return challenge.attempts
`)

type RedisChallengeStore struct {
	client *redis.Client
	prefix string
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "otp:challenge:",
	}
}

func (s *RedisChallengeStore) key(email string) string {
	return s.prefix + email
}

func (s *RedisChallengeStore) Save(ctx context.Context, email string, c Challenge) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(email), payload, time.Until(c.ExpiresAt)).Err()
}

func (s *RedisChallengeStore) Get(ctx context.Context, email string) (*Challenge, error) {
	payload, err := s.client.Get(ctx, s.key(email)).Bytes()
	if err == redis.Nil {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	var c Challenge
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RedisChallengeStore) RecordAttempt(ctx context.Context, email string) (int, error) {
	attempts, err := recordAttemptScript.Run(ctx, s.client, []string{s.key(email)}).Int()
	if err != nil {
		return 0, err
	}
	if attempts < 0 {
		return 0, ErrChallengeNotFound
	}
	return attempts, nil
}

func (s *RedisChallengeStore) Consume(ctx context.Context, email string) (bool, error) {
	removed, err := s.client.Del(ctx, s.key(email)).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}

// MemoryChallengeStore keeps challenges in process. Used when Redis is not configured.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	now        func() time.Time
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]Challenge),
		now:        time.Now,
	}
}

func (s *MemoryChallengeStore) Save(_ context.Context, email string, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[email] = c
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, email string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(email)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return &c, nil
}

func (s *MemoryChallengeStore) RecordAttempt(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(email)
	if !ok {
		return 0, ErrChallengeNotFound
	}
	c.Attempts++
	s.challenges[email] = c
	return c.Attempts, nil
}

func (s *MemoryChallengeStore) Consume(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(email)
	delete(s.challenges, email)
	return ok, nil
}

// live returns the unexpired challenge for email, dropping an expired one.
// Callers hold s.mu.
func (s *MemoryChallengeStore) live(email string) (Challenge, bool) {
	c, ok := s.challenges[email]
	if !ok {
		return Challenge{}, false
	}
	if !s.now().Before(c.ExpiresAt) {
		delete(s.challenges, email)
		return Challenge{}, false
	}
	return c, true
}

func (s *MemoryChallengeStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, email)
	return nil
}
