// Package otp stores short-lived one-time codes keyed by purpose and email.
// A code can be consumed once; it disappears on the first successful read
// or when its TTL runs out.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purposes namespace the codes so a verification code cannot be replayed as
// a password reset token.
const (
	PurposeVerifyEmail   = "verify"
	PurposePasswordReset = "reset"
)

var ErrInvalidCode = errors.New("invalid or expired code")

// Store saves a code with a TTL and consumes it on verification.
type Store interface {
	Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error
	// Consume deletes the stored code and reports ErrInvalidCode when it is
	// missing, expired or different from code.
	Consume(ctx context.Context, purpose, email, code string) error
}

func key(prefix, purpose, email string) string {
	return prefix + ":" + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RedisStore keeps codes in Redis so every instance sees the same set.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key(s.prefix, purpose, email), code, ttl).Err()
}

// Consume uses GETDEL so a code is read at most once even under
// concurrent verification attempts. A wrong guess also burns the code.
func (s *RedisStore) Consume(ctx context.Context, purpose, email, code string) error {
	stored, err := s.rdb.GetDel(ctx, key(s.prefix, purpose, email)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if !equal(stored, code) {
		return ErrInvalidCode
	}
	return nil
}

type memEntry struct {
	code string
	exp  time.Time
}

// MemoryStore is the single-instance fallback used when Redis is not
// configured.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, purpose, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// Drop expired entries on write so the map stays bounded by live codes.
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	s.m[key("otp", purpose, email)] = memEntry{code: code, exp: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, purpose, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key("otp", purpose, email)
	e, ok := s.m[k]
	delete(s.m, k)
	if !ok || s.now().After(e.exp) || !equal(e.code, code) {
		return ErrInvalidCode
	}
	return nil
}

// New returns a RedisStore when rdb is non-nil and a MemoryStore otherwise.
func New(rdb *redis.Client) Store {
	if rdb == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(rdb, "otp")
}
