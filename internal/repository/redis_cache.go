package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/pkg/redis"
)

// CachedAvailability is the last observed ticket counter of an event
type CachedAvailability struct {
	Available int
	Capacity  int
}

// AvailabilityCache holds read-side hints of event availability.
// PostgreSQL stays authoritative; a stale entry only affects what buyers see.
type AvailabilityCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, eventID int64) (*CachedAvailability, error)
	Set(ctx context.Context, eventID int64, available, capacity int) error
	Invalidate(ctx context.Context, eventID int64) error
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("event:%d:available", eventID)
}

// RedisAvailabilityCache implements AvailabilityCache using Redis.
// Values are stored as "available/capacity".
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityCache creates a new RedisAvailabilityCache
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

// Get returns the cached availability of an event
func (c *RedisAvailabilityCache) Get(ctx context.Context, eventID int64) (*CachedAvailability, error) {
	val, err := c.client.Get(ctx, availabilityKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedAvailability
	if _, err := fmt.Sscanf(val, "%d/%d", &cached.Available, &cached.Capacity); err != nil {
		return nil, fmt.Errorf("decode cached availability %q: %w", val, err)
	}
	return &cached, nil
}

// Set caches the availability of an event
func (c *RedisAvailabilityCache) Set(ctx context.Context, eventID int64, available, capacity int) error {
	return c.client.Set(ctx, availabilityKey(eventID), fmt.Sprintf("%d/%d", available, capacity), c.ttl).Err()
}

// Invalidate drops the cached availability of an event
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, eventID int64) error {
	return c.client.Del(ctx, availabilityKey(eventID)).Err()
}

// NoopAvailabilityCache never caches; used when Redis is disabled
type NoopAvailabilityCache struct{}

func (NoopAvailabilityCache) Get(context.Context, int64) (*CachedAvailability, error) { return nil, nil }
func (NoopAvailabilityCache) Set(context.Context, int64, int, int) error              { return nil }
func (NoopAvailabilityCache) Invalidate(context.Context, int64) error                 { return nil }

// StaffSessionStore keeps the scan sessions opened with a staff code
type StaffSessionStore interface {
	Save(ctx context.Context, session *domain.StaffSession, ttl time.Duration) error
	// Get returns nil, nil for unknown or expired tokens
	Get(ctx context.Context, token string) (*domain.StaffSession, error)
	Delete(ctx context.Context, token string) error
}

func sessionKey(token string) string {
	return "staff:session:" + token
}

// RedisStaffSessionStore implements StaffSessionStore using Redis
type RedisStaffSessionStore struct {
	client *redis.Client
}

// NewRedisStaffSessionStore creates a new RedisStaffSessionStore
func NewRedisStaffSessionStore(client *redis.Client) *RedisStaffSessionStore {
	return &RedisStaffSessionStore{client: client}
}

// Save stores a session that Redis expires after ttl
func (s *RedisStaffSessionStore) Save(ctx context.Context, session *domain.StaffSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode staff session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(session.Token), data, ttl).Err()
}

// Get loads a session by token
func (s *RedisStaffSessionStore) Get(ctx context.Context, token string) (*domain.StaffSession, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session domain.StaffSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode staff session: %w", err)
	}
	return &session, nil
}

// Delete ends a session
func (s *RedisStaffSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

type memorySession struct {
	session   domain.StaffSession
	expiresAt time.Time
}

// MemoryStaffSessionStore implements StaffSessionStore in process memory
type MemoryStaffSessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemoryStaffSessionStore creates an empty MemoryStaffSessionStore
func NewMemoryStaffSessionStore(now func() time.Time) *MemoryStaffSessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStaffSessionStore{sessions: make(map[string]memorySession), now: now}
}

// Save stores a session until ttl elapses
func (s *MemoryStaffSessionStore) Save(_ context.Context, session *domain.StaffSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = memorySession{session: *session, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get loads a session by token
func (s *MemoryStaffSessionStore) Get(_ context.Context, token string) (*domain.StaffSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(m.expiresAt) {
		delete(s.sessions, token)
		return nil, nil
	}
	session := m.session
	return &session, nil
}

// Delete ends a session
func (s *MemoryStaffSessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
