package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	pkgredis "github.com/upgrade-events/Upgrade-Events/pkg/redis"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
	"go.uber.org/zap"
)

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	// PerMinute is the sustained number of requests allowed per client per minute (0 = unlimited)
	PerMinute int
	// Burst is the token bucket capacity, defaults to PerMinute
	Burst int
	// Redis switches to the shared limiter when set
	Redis *pkgredis.Client
	// KeyPrefix namespaces the Redis buckets
	KeyPrefix string
	// EntryTTL drops idle local buckets
	EntryTTL time.Duration
	// Now is the clock, time.Now when nil
	Now func() time.Time
}

// StaffLoginRateLimitConfig guards the staff code login endpoint
func StaffLoginRateLimitConfig(perMinute int, rdb *pkgredis.Client) RateLimitConfig {
	return RateLimitConfig{
		PerMinute: perMinute,
		Burst:     perMinute,
		Redis:     rdb,
		KeyPrefix: "ratelimit:staff-login:",
		EntryTTL:  10 * time.Minute,
	}
}

func (c *RateLimitConfig) normalize() {
	if c.Burst <= 0 {
		c.Burst = c.PerMinute
	}
	if c.EntryTTL <= 0 {
		c.EntryTTL = 10 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *RateLimitConfig) ratePerSecond() float64 {
	return float64(c.PerMinute) / 60
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// LocalRateLimiter is an in-process token bucket per key
type LocalRateLimiter struct {
	config  RateLimitConfig
	buckets sync.Map

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewLocalRateLimiter creates a new local rate limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	config.normalize()
	return &LocalRateLimiter{config: config}
}

// Allow takes one token from key's bucket
func (rl *LocalRateLimiter) Allow(key string) bool {
	now := rl.config.Now()
	v, _ := rl.buckets.LoadOrStore(key, &bucket{tokens: float64(rl.config.Burst), lastUpdate: now})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(rl.config.Burst), b.tokens+elapsed*rl.config.ratePerSecond())
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Prune removes buckets idle for longer than EntryTTL
func (rl *LocalRateLimiter) Prune() {
	cutoff := rl.config.Now().Add(-rl.config.EntryTTL)
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if b.lastUpdate.Before(cutoff) {
			rl.buckets.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}

// GetStats returns allowed and rejected totals
func (rl *LocalRateLimiter) GetStats() (allowed, rejected uint64) {
	return rl.allowed.Load(), rl.rejected.Load()
}

// rateLimitScript refills and takes one token atomically.
// KEYS[1] bucket hash; ARGV rate/s, burst, now (seconds), ttl (seconds)
const rateLimitScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

local elapsed = now - last_update
if elapsed > 0 then
    tokens = math.min(burst, tokens + elapsed * rate)
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, ttl)
return {allowed, math.floor(tokens)}
`

// RedisRateLimiter shares buckets across replicas
type RedisRateLimiter struct {
	config RateLimitConfig
}

// NewRedisRateLimiter creates a new Redis rate limiter
func NewRedisRateLimiter(config RateLimitConfig) *RedisRateLimiter {
	config.normalize()
	return &RedisRateLimiter{config: config}
}

// Allow takes one token from key's bucket in Redis
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(rl.config.Now().UnixNano()) / 1e9

	values, err := rl.config.Redis.Eval(ctx, rateLimitScript,
		[]string{rl.config.KeyPrefix + key},
		rl.config.ratePerSecond(),
		float64(rl.config.Burst),
		now,
		int64(rl.config.EntryTTL.Seconds()),
	).Slice()
	if err != nil {
		return false, err
	}
	if len(values) < 1 {
		return false, fmt.Errorf("rate limit script returned %d values", len(values))
	}

	allowed, _ := values[0].(int64)
	return allowed == 1, nil
}

// RateLimit limits requests per client IP. Redis errors fail open.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	config.normalize()
	if config.PerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var local *LocalRateLimiter
	var shared *RedisRateLimiter
	if config.Redis != nil {
		shared = NewRedisRateLimiter(config)
	} else {
		local = NewLocalRateLimiter(config)
	}

	var calls atomic.Uint64
	retryAfter := int(math.Ceil(60 / float64(config.PerMinute)))

	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed := true
		if shared != nil {
			ok, err := shared.Allow(c.Request.Context(), key)
			if err != nil {
				logger.Get().WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request", zap.Error(err))
			} else {
				allowed = ok
			}
		} else {
			allowed = local.Allow(key)
			if calls.Add(1)%1024 == 0 {
				local.Prune()
			}
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.PerMinute))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			resp := response.Error(response.ErrCodeTooManyRequests,
				fmt.Sprintf("Too many attempts. Please retry after %d second(s).", retryAfter))
			c.AbortWithStatusJSON(resp.Status(), resp)
			return
		}

		c.Next()
	}
}
