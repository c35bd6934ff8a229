package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record behind an access token.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	DoctorCode string    `json:"doctor_code,omitempty"`
	MerchantID string    `json:"merchant_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore persists sessions and counts failed sign-in attempts.
type SessionStore interface {
	Create(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser revokes every session of a user and returns how many
	// were removed.
	DeleteUser(ctx context.Context, userID string) (int, error)
	// IncrAttempts increments the counter for key, starting a window of the
	// given length on first use, and returns the new count.
	IncrAttempts(ctx context.Context, key string, window time.Duration) (int, error)
	Attempts(ctx context.Context, key string) (int, error)
	ResetAttempts(ctx context.Context, key string) error
}

func redisKeySession(id string) string       { return "session:" + id }
func redisKeyUserSessions(uid string) string { return "user_sessions:" + uid }
func redisKeyAttempts(key string) string     { return "signin:attempts:" + key }

// RedisSessionStore keeps sessions in redis with a TTL.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (s *RedisSessionStore) Create(ctx context.Context, sess Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	userKey := redisKeyUserSessions(sess.UserID)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, redisKeySession(sess.ID), b, ttl)
	pipe.SAdd(ctx, userKey, sess.ID)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := s.rdb.Get(ctx, redisKeySession(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, redisKeySession(id))
	pipe.SRem(ctx, redisKeyUserSessions(sess.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	userKey := redisKeyUserSessions(userID)
	ids, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, redisKeySession(id))
	}
	keys = append(keys, userKey)
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	// the set key itself is not a session
	if n > 0 {
		n--
	}
	return int(n), nil
}

func (s *RedisSessionStore) IncrAttempts(ctx context.Context, key string, window time.Duration) (int, error) {
	k := redisKeyAttempts(key)
	n, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	if n == 1 {
		s.rdb.Expire(ctx, k, window)
	}
	return int(n), nil
}

func (s *RedisSessionStore) Attempts(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.Get(ctx, redisKeyAttempts(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisSessionStore) ResetAttempts(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, redisKeyAttempts(key)).Err()
}

// ---------------------------------------------------------------------------
// In-memory store (development without redis, unit tests)
// ---------------------------------------------------------------------------

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory with a background
// goroutine that drops expired entries every minute. Sessions are lost on
// restart and are not shared between replicas.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	attempts map[string]attemptEntry
	now      func() time.Time
	done     chan struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	s := newMemorySessionStore(time.Now)
	go s.cleanupLoop()
	return s
}

func newMemorySessionStore(now func() time.Time) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		attempts: make(map[string]attemptEntry),
		now:      now,
		done:     make(chan struct{}),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = memoryEntry{session: sess, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || s.now().After(e.expiresAt) {
		return nil, ErrSessionNotFound
	}
	sess := e.session
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) DeleteUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if e.session.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemorySessionStore) IncrAttempts(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.attempts[key]
	if !ok || now.After(e.expiresAt) {
		e = attemptEntry{expiresAt: now.Add(window)}
	}
	e.count++
	s.attempts[key] = e
	return e.count, nil
}

func (s *MemorySessionStore) Attempts(_ context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.attempts[key]
	if !ok || s.now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

func (s *MemorySessionStore) ResetAttempts(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, key)
	return nil
}

// Count returns the number of live sessions.
func (s *MemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine. It is safe to call
// multiple times but only the first call has effect.
func (s *MemorySessionStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *MemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemorySessionStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
	for key, e := range s.attempts {
		if now.After(e.expiresAt) {
			delete(s.attempts, key)
		}
	}
}
