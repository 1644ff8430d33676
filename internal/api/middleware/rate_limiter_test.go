package middleware

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func newLimitedApp(rl *RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(discardLogger)})
	app.Use(rl.Handler())
	app.Get("/ws", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Client", key)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("X-RateLimit-Remaining")
}

func byHeader(c *fiber.Ctx) string { return c.Get("X-Client") }

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 3, Window: time.Minute, KeyGenerator: byHeader})
		defer rl.Stop()
		app := newLimitedApp(rl)

		for i, want := range []string{"2", "1", "0"} {
			status, remaining := doRequest(t, app, "a")
			assert.Equal(t, 200, status, "request %d", i)
			assert.Equal(t, want, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 2, Window: time.Minute, KeyGenerator: byHeader})
		defer rl.Stop()
		app := newLimitedApp(rl)

		doRequest(t, app, "a")
		doRequest(t, app, "a")

		req := httptest.NewRequest("GET", "/ws", nil)
		req.Header.Set("X-Client", "a")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 429, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("clients have separate limits", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 1, Window: time.Minute, KeyGenerator: byHeader})
		defer rl.Stop()
		app := newLimitedApp(rl)

		status, _ := doRequest(t, app, "a")
		assert.Equal(t, 200, status)
		status, _ = doRequest(t, app, "b")
		assert.Equal(t, 200, status)
		status, _ = doRequest(t, app, "a")
		assert.Equal(t, 429, status)
	})

	t.Run("window resets", func(t *testing.T) {
		clock := &manualClock{now: time.Date(2016, 10, 10, 12, 0, 0, 0, time.UTC)}
		rl := NewRateLimiter(RateLimiterConfig{Max: 1, Window: time.Minute, KeyGenerator: byHeader, Now: clock.Now})
		defer rl.Stop()
		app := newLimitedApp(rl)

		status, _ := doRequest(t, app, "a")
		assert.Equal(t, 200, status)
		status, _ = doRequest(t, app, "a")
		assert.Equal(t, 429, status)

		clock.now = clock.now.Add(61 * time.Second)
		status, _ = doRequest(t, app, "a")
		assert.Equal(t, 200, status)
	})
}

func TestRateLimiter_Evict(t *testing.T) {
	clock := &manualClock{now: time.Date(2016, 10, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimiterConfig{Max: 5, Window: time.Minute, KeyGenerator: byHeader, Now: clock.Now})
	defer rl.Stop()
	app := newLimitedApp(rl)

	doRequest(t, app, "a")
	doRequest(t, app, "b")
	assert.Equal(t, 2, rl.size())

	rl.evict(clock.now.Add(time.Minute))
	assert.Equal(t, 2, rl.size(), "recent keys are kept")

	rl.evict(clock.now.Add(3 * time.Minute))
	assert.Zero(t, rl.size())
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	assert.Equal(t, 30, cfg.Max)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.NotNil(t, cfg.KeyGenerator)
	assert.NotNil(t, cfg.Now)
}
