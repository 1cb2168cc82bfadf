package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"rwa-lending-gateway/internal/infrastructure/logging"
)

func newLimitedEcho(rl *RateLimiter) *echo.Echo {
	e := echo.New()
	e.Use(rl.Middleware())
	e.GET("/docs", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func hit(e *echo.Echo, account string) int {
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	if account != "" {
		req.Header.Set(HeaderAccountAddress, account)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_PerAccountBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.Discard())
	e := newLimitedEcho(rl)

	assert.Equal(t, http.StatusNoContent, hit(e, "0xa"))
	assert.Equal(t, http.StatusNoContent, hit(e, "0xa"))
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "0xa"))

	// a different account has its own bucket
	assert.Equal(t, http.StatusNoContent, hit(e, "0xb"))
}

func TestRateLimiter_FallsBackToIP(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard())
	e := newLimitedEcho(rl)

	assert.Equal(t, http.StatusNoContent, hit(e, "not-an-address"))
	assert.Equal(t, http.StatusTooManyRequests, hit(e, ""))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard())
	rl.getLimiter("0xa")
	rl.getLimiter("0xb")

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(-time.Second))
	assert.Empty(t, rl.limiters)
}
