package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"medtrack/internal/redis"
)

// ErrTokenNotFound is returned by a TokenStore for unknown tokens.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore persists issued session tokens.
type TokenStore interface {
	Save(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (userID int64, expiresAt time.Time, err error)
	Delete(ctx context.Context, token string) error
	DeleteUser(ctx context.Context, userID int64) error
}

type tokenRecord struct {
	userID    int64
	expiresAt time.Time
}

// MemoryTokens keeps tokens in process memory. Expired entries are dropped
// lazily on lookup.
type MemoryTokens struct {
	mu     sync.Mutex
	tokens map[string]tokenRecord
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]tokenRecord)}
}

func (m *MemoryTokens) Save(_ context.Context, token string, userID int64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = tokenRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *MemoryTokens) Lookup(_ context.Context, token string) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tokens[token]
	if !ok {
		return 0, time.Time{}, ErrTokenNotFound
	}
	return rec.userID, rec.expiresAt, nil
}

func (m *MemoryTokens) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *MemoryTokens) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, rec := range m.tokens {
		if rec.userID == userID {
			delete(m.tokens, token)
		}
	}
	return nil
}

// RedisTokens stores each token under its own key with a TTL, plus a
// per-user set so every session of a user can be revoked at once.
type RedisTokens struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

func NewRedisTokens(client *redis.Client, clk clock.Clock) *RedisTokens {
	if clk == nil {
		clk = clock.New()
	}
	return &RedisTokens{client: client, clock: clk, prefix: "medtrack"}
}

func (r *RedisTokens) tokenKey(token string) string {
	return r.prefix + ":token:" + token
}

func (r *RedisTokens) userKey(userID int64) string {
	return fmt.Sprintf("%s:user_tokens:%d", r.prefix, userID)
}

func (r *RedisTokens) Save(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return errors.New("token already expired")
	}
	value := fmt.Sprintf("%d|%d", userID, expiresAt.Unix())
	if err := r.client.Set(ctx, r.tokenKey(token), value, ttl); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := r.client.AddToSet(ctx, r.userKey(userID), ttl, token); err != nil {
		return fmt.Errorf("index token: %w", err)
	}
	return nil
}

func (r *RedisTokens) Lookup(ctx context.Context, token string) (int64, time.Time, error) {
	value, err := r.client.Get(ctx, r.tokenKey(token))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return 0, time.Time{}, ErrTokenNotFound
		}
		return 0, time.Time{}, fmt.Errorf("lookup token: %w", err)
	}
	userPart, expPart, ok := strings.Cut(value, "|")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("malformed token record")
	}
	userID, err := strconv.ParseInt(userPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed token user: %w", err)
	}
	exp, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed token expiry: %w", err)
	}
	return userID, time.Unix(exp, 0), nil
}

func (r *RedisTokens) Delete(ctx context.Context, token string) error {
	userID, _, err := r.Lookup(ctx, token)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		return err
	}
	if err := r.client.Del(ctx, r.tokenKey(token)); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if userID > 0 {
		if err := r.client.RemoveFromSet(ctx, r.userKey(userID), token); err != nil {
			return fmt.Errorf("unindex token: %w", err)
		}
	}
	return nil
}

func (r *RedisTokens) DeleteUser(ctx context.Context, userID int64) error {
	tokens, err := r.client.SetMembers(ctx, r.userKey(userID))
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, r.tokenKey(token))
	}
	keys = append(keys, r.userKey(userID))
	if err := r.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
