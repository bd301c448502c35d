package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgredis "github.com/upgrade-events/Upgrade-Events/pkg/redis"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestLocalRateLimiter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	rl := NewLocalRateLimiter(RateLimitConfig{PerMinute: 6, Burst: 2, Now: clock.Now})

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per key")

	// 6/min refills one token every 10s
	clock.now = clock.now.Add(10 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	allowed, rejected := rl.GetStats()
	assert.Equal(t, uint64(4), allowed)
	assert.Equal(t, uint64(2), rejected)
}

func TestLocalRateLimiter_Prune(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	rl := NewLocalRateLimiter(RateLimitConfig{PerMinute: 1, EntryTTL: time.Minute, Now: clock.Now})

	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))

	clock.now = clock.now.Add(2 * time.Minute)
	rl.Prune()

	_, ok := rl.buckets.Load("10.0.0.1")
	assert.False(t, ok)
}

func rateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	router := gin.New()
	router.POST("/staff/sessions", RateLimit(cfg), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func postFrom(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/staff/sessions", nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Local(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	router := rateLimitedRouter(RateLimitConfig{PerMinute: 3, Now: clock.Now})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, postFrom(router, "192.0.2.10").Code)
	}

	w := postFrom(router, "192.0.2.10")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "20", w.Header().Get("Retry-After"))
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))

	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, response.ErrCodeTooManyRequests, body.Error.Code)

	assert.Equal(t, http.StatusCreated, postFrom(router, "192.0.2.11").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := rateLimitedRouter(RateLimitConfig{PerMinute: 0})
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusCreated, postFrom(router, "192.0.2.10").Code)
	}
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	rl := NewRedisRateLimiter(RateLimitConfig{
		PerMinute: 6,
		Redis:     pkgredis.Wrap(db),
		KeyPrefix: "ratelimit:staff-login:",
		EntryTTL:  10 * time.Minute,
		Now:       func() time.Time { return now },
	})
	nowSeconds := float64(now.UnixNano()) / 1e9

	mock.ExpectEval(rateLimitScript, []string{"ratelimit:staff-login:192.0.2.10"},
		0.1, float64(6), nowSeconds, int64(600)).SetVal([]interface{}{int64(1), int64(5)})
	mock.ExpectEval(rateLimitScript, []string{"ratelimit:staff-login:192.0.2.10"},
		0.1, float64(6), nowSeconds, int64(600)).SetVal([]interface{}{int64(0), int64(0)})

	ok, err := rl.Allow(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimit_RedisFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	cfg := StaffLoginRateLimitConfig(6, pkgredis.Wrap(db))
	cfg.Now = func() time.Time { return now }

	mock.ExpectEval(rateLimitScript, []string{"ratelimit:staff-login:192.0.2.10"},
		0.1, float64(6), float64(now.UnixNano())/1e9, int64(600)).SetErr(errors.New("connection refused"))

	w := postFrom(rateLimitedRouter(cfg), "192.0.2.10")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
