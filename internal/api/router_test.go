package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/metrics"
	"github.com/saturnino-fabrica-de-software/facestream/internal/session"
	"github.com/saturnino-fabrica-de-software/facestream/internal/ws"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type nopSessions struct{}

func (nopSessions) HandleRaw(context.Context, *session.State, []byte) []session.Outbound { return nil }
func (nopSessions) Close(context.Context, *session.State)                                {}

func newTestRouter(t *testing.T) (*Router, *metrics.Manager) {
	t.Helper()
	m := metrics.NewManager()
	hub := ws.NewHub(discardLogger, ws.WithObserver(m))

	r := NewRouter(discardLogger, &Dependencies{
		Hub:      hub,
		Sessions: nopSessions{},
		Metrics:  m.Handler(),
	})
	r.Setup()
	return r, m
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRouter_ReadyReportsSessions(t *testing.T) {
	r, _ := newTestRouter(t)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestRouter_Metrics(t *testing.T) {
	r, m := newTestRouter(t)
	m.MessageReceived(session.TypeFrame)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `facestream_session_messages_total{type="FRAME"} 1`)
}

func TestRouter_WebSocketRequiresUpgrade(t *testing.T) {
	r, _ := newTestRouter(t)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

func TestRouter_WithoutDependencies(t *testing.T) {
	r := NewRouter(discardLogger, nil)
	r.Setup()

	resp, err := r.App().Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = r.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestRouter_SessionRateLimit(t *testing.T) {
	hub := ws.NewHub(discardLogger)
	r := NewRouter(discardLogger, &Dependencies{
		Hub:              hub,
		Sessions:         nopSessions{},
		SessionRateLimit: 1,
	})
	r.Setup()
	defer func() { _ = r.Shutdown() }()

	resp, err := r.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, err = r.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
}
