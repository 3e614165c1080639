package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLocalRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewLocalRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	})
	defer rl.Stop()

	assert.True(t, rl.Allow("ip-1"))
	assert.True(t, rl.Allow("ip-1"))
	assert.True(t, rl.Allow("ip-1"))
	assert.False(t, rl.Allow("ip-1"))

	allowed, rejected := rl.Stats()
	assert.Equal(t, uint64(3), allowed)
	assert.Equal(t, uint64(1), rejected)
}

func TestLocalRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewLocalRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	})
	defer rl.Stop()

	assert.True(t, rl.Allow("ip-1"))
	assert.False(t, rl.Allow("ip-1"))
	assert.True(t, rl.Allow("ip-2"))
}

func TestLocalRateLimiter_Refills(t *testing.T) {
	rl := NewLocalRateLimiter(RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	})
	defer rl.Stop()

	assert.True(t, rl.Allow("ip-1"))
	assert.False(t, rl.Allow("ip-1"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow("ip-1"))
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := DefaultRateLimitConfig()
	cfg.RequestsPerSecond = 1
	cfg.BurstSize = 2

	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	status := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusTooManyRequests, status())
}

func TestRateLimit_ZeroRateDisables(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
