package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, app *fiber.App, path string) (int, HealthResponse) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result HealthResponse
	require.NoError(t, json.Unmarshal(body, &result))
	return resp.StatusCode, result
}

func TestHealthHandler_Health(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(nil, nil).Health)

	status, result := get(t, app, "/health")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, Version, result.Version)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		db         *stubPinger
		wantStatus int
		wantBody   string
		wantDB     string
	}{
		{"no database", nil, 200, "ready", ""},
		{"database up", &stubPinger{}, 200, "ready", "ok"},
		{"database down", &stubPinger{err: errors.New("connection refused")}, 503, "unavailable", "database unhealthy: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fixedCounter(3), nil)
			if tt.db != nil {
				h = NewHealthHandler(fixedCounter(3), *tt.db)
			}
			app := fiber.New()
			app.Get("/ready", h.Ready)

			status, result := get(t, app, "/ready")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, result.Status)
			require.NotNil(t, result.Sessions)
			assert.Equal(t, 3, *result.Sessions)
			assert.Equal(t, tt.wantDB, result.Checks["database"])
		})
	}
}
