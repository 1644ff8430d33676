package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/session"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeConn replays inbound frames and records what was written.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.written))
	for _, w := range c.written {
		out = append(out, string(w))
	}
	return out
}

type echoHandler struct {
	mu     sync.Mutex
	closed []string
}

func (h *echoHandler) HandleRaw(_ context.Context, st *session.State, raw []byte) []session.Outbound {
	st.FrameCounter++
	if string(raw) == "ping" {
		return []session.Outbound{session.Null{}}
	}
	return []session.Outbound{session.Warning{Message: string(raw)}}
}

func (h *echoHandler) Close(_ context.Context, st *session.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, st.ID)
}

func (h *echoHandler) closedSessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.closed...)
}

type countingObserver struct {
	mu             sync.Mutex
	opened, closed int
}

func (o *countingObserver) SessionOpened() { o.mu.Lock(); o.opened++; o.mu.Unlock() }
func (o *countingObserver) SessionClosed() { o.mu.Lock(); o.closed++; o.mu.Unlock() }

func (o *countingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.closed
}

func startHub(t *testing.T, opts ...HubOption) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(discardLogger, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestNewHub(t *testing.T) {
	hub := NewHub(discardLogger)

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Zero(t, hub.Count())
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	obs := &countingObserver{}
	hub, _ := startHub(t, WithObserver(obs))

	client := NewClient(hub, newFakeConn(), session.NewState("s1"), &echoHandler{}, 1, discardLogger)
	require.True(t, hub.Register(client))

	assert.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"s1"}, hub.Sessions())

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-client.send
	assert.False(t, ok, "send channel is closed on unregister")

	opened, closed := obs.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestClient_PumpsMessagesInOrder(t *testing.T) {
	hub, _ := startHub(t)
	conn := newFakeConn()
	handler := &echoHandler{}
	st := session.NewState("s1")
	client := NewClient(hub, conn, st, handler, 8, discardLogger)
	require.True(t, hub.Register(client))

	go client.WritePump()
	done := make(chan struct{})
	go func() {
		client.ReadPump(context.Background())
		close(done)
	}()

	conn.inbound <- []byte("ping")
	conn.inbound <- []byte("hello")
	close(conn.inbound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}

	assert.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		`{"type":"NULL"}`,
		`{"type":"WARNING","message":"hello"}`,
	}, conn.messages())
	assert.Equal(t, int64(2), st.FrameCounter)
	assert.Equal(t, []string{"s1"}, handler.closedSessions())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

type panickyHandler struct {
	echoHandler
}

func (h *panickyHandler) HandleRaw(ctx context.Context, st *session.State, raw []byte) []session.Outbound {
	if string(raw) == "boom" {
		panic("embedding dimension mismatch: 2 != 3")
	}
	return h.echoHandler.HandleRaw(ctx, st, raw)
}

func TestClient_SurvivesHandlerPanic(t *testing.T) {
	hub, _ := startHub(t)
	conn := newFakeConn()
	handler := &panickyHandler{}
	client := NewClient(hub, conn, session.NewState("s1"), handler, 8, discardLogger)
	require.True(t, hub.Register(client))

	go client.WritePump()
	done := make(chan struct{})
	go func() {
		client.ReadPump(context.Background())
		close(done)
	}()

	conn.inbound <- []byte("boom")
	conn.inbound <- []byte("ping")
	close(conn.inbound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}

	assert.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`{"type":"NULL"}`}, conn.messages())
	assert.Equal(t, []string{"s1"}, handler.closedSessions())
}

func TestClient_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub(discardLogger)
	client := NewClient(hub, newFakeConn(), session.NewState("s1"), &echoHandler{}, 1, discardLogger)

	client.enqueue(session.Null{})
	client.enqueue(session.Processed{})

	assert.Len(t, client.send, 1)
	assert.Equal(t, `{"type":"NULL"}`, string(<-client.send))
}

func TestHub_ShutdownClosesSessions(t *testing.T) {
	obs := &countingObserver{}
	hub, cancel := startHub(t, WithObserver(obs))

	conn := newFakeConn()
	handler := &echoHandler{}
	client := NewClient(hub, conn, session.NewState("s1"), handler, 4, discardLogger)
	require.True(t, hub.Register(client))

	done := make(chan struct{})
	go func() {
		client.ReadPump(context.Background())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop on shutdown")
	}
	assert.Equal(t, []string{"s1"}, handler.closedSessions())
	assert.False(t, hub.Register(NewClient(hub, newFakeConn(), session.NewState("s2"), handler, 1, discardLogger)))

	_, closed := obs.counts()
	assert.Equal(t, 1, closed)
}
