package ws

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/facestream/internal/session"
)

// Conn is the part of *websocket.Conn a client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// MessageHandler is satisfied by *session.Router.
type MessageHandler interface {
	HandleRaw(ctx context.Context, st *session.State, raw []byte) []session.Outbound
	Close(ctx context.Context, st *session.State)
}

type Client struct {
	hub     *Hub
	conn    Conn
	state   *session.State
	handler MessageHandler
	send    chan []byte
	logger  *slog.Logger
}

func NewClient(hub *Hub, conn Conn, st *session.State, handler MessageHandler, buffer int, logger *slog.Logger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		state:   st,
		handler: handler,
		send:    make(chan []byte, buffer),
		logger:  logger.With("session_id", st.ID),
	}
}

func (c *Client) SessionID() string {
	return c.state.ID
}

// ReadPump handles messages in arrival order until the connection ends.
// Only this goroutine touches the session state.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.handler.Close(ctx, c.state)
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug("read loop ended", "error", err)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		for _, msg := range c.handle(ctx, data) {
			c.enqueue(msg)
		}
	}
}

// handle runs one message. A panic is logged and the message dropped; the
// session and every other connection carry on.
func (c *Client) handle(ctx context.Context, data []byte) (out []session.Outbound) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic handling message",
				"panic", r,
				"frame", c.state.FrameCounter,
				"stack", string(debug.Stack()),
			)
			out = nil
		}
	}()
	return c.handler.HandleRaw(ctx, c.state, data)
}

func (c *Client) enqueue(msg session.Outbound) {
	payload, err := session.Encode(msg)
	if err != nil {
		c.logger.Error("failed to encode message", "type", msg.Type(), "error", err)
		return
	}

	defer func() {
		// send is closed when the hub shut down first
		if recover() != nil {
			c.logger.Debug("dropping message after close", "type", msg.Type())
		}
	}()

	select {
	case c.send <- payload:
	default:
		c.logger.Warn("outbound buffer full, dropping message", "type", msg.Type())
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.logger.Debug("write failed", "error", err)
			return
		}
	}
}
