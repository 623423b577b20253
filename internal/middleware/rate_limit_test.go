package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRateLimiterAllowWithinBurst(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 5)
	defer rl.Stop()

	userID := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow(userID), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow(userID), "request beyond burst should be denied")
}

func TestRateLimiterIndependentUsers(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 1)
	defer rl.Stop()

	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()

	assert.True(t, rl.Allow(userA))
	assert.False(t, rl.Allow(userA))
	assert.True(t, rl.Allow(userB))
}

func TestRateLimitMiddlewareSkipsUnauthenticated(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 1)
	defer rl.Stop()

	e := echo.New()
	handler := RateLimitMiddleware(rl)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitMiddlewareEnforces(t *testing.T) {
	rl := NewRateLimiterWithConfig(60, 1)
	defer rl.Stop()

	e := echo.New()
	userID := primitive.NewObjectID()
	handler := RateLimitMiddleware(rl)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(UserIDKey, userID)
		require.NoError(t, handler(c))
		return rec
	}

	first := call()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Remaining"))

	second := call()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}
