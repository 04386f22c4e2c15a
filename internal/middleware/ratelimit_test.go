package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-access/internal/config"
)

func rateLimitFixture(t *testing.T, capacity int) echo.MiddlewareFunc {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Hour, // no refill within the test
		TTL:            time.Hour,
		KeyStrategy:    "ip_user_route",
		Prefix:         "rl",
	}
	return NewTokenBucket(cfg, rdb)
}

func hitOnce(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, h(c))
	return rec
}

func TestTokenBucketAllowsWithinCapacity(t *testing.T) {
	mw := rateLimitFixture(t, 3)
	for i := 0; i < 3; i++ {
		rec := hitOnce(t, mw)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestTokenBucketBlocksWhenExhausted(t *testing.T) {
	mw := rateLimitFixture(t, 2)
	hitOnce(t, mw)
	hitOnce(t, mw)

	rec := hitOnce(t, mw)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)
	rec := hitOnce(t, mw)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucketSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl",
	}
	mw := NewTokenBucket(cfg, rdb)

	// With the backend down the limiter fails open.
	rec := hitOnce(t, mw)
	assert.Equal(t, http.StatusOK, rec.Code)
}
