package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clk := clock.NewMock()
	rl := NewRateLimiter(1, 2, clk)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "buckets are per client")

	clk.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	clk := clock.NewMock()
	rl := NewRateLimiter(1, 1, clk)
	defer rl.Stop()

	rl.Allow("1.1.1.1")
	assert.Equal(t, 1, rl.Len())

	clk.Add(idleBucketTTL + time.Second)
	rl.evict()
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0, 1, clock.NewMock())
	defer rl.Stop()
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(realIP string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/submissions/contactForm", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if realIP != "" {
			req.Header.Set("X-Real-Ip", realIP)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
	assert.Equal(t, http.StatusCreated, send("203.0.113.7"))
}
