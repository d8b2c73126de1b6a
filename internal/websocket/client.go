package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"pulse-chat/internal/events"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var pongFrame = []byte(`{"type":"pong"}`)

// InboundFrame is a message sent by the client over the socket.
type InboundFrame struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"messageId,omitempty"`
	CallID    uuid.UUID `json:"callId,omitempty"`
}

// FrameHandler processes inbound frames other than ping. Frames from one
// connection are handled one at a time in arrival order.
type FrameHandler interface {
	HandleFrame(ctx context.Context, c *Client, frame InboundFrame) error
}

// Client represents a single WebSocket connection
type Client struct {
	id       string
	userID   uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	frames   FrameHandler
	logger   *Logger

	mu     sync.Mutex
	closed bool

	connectedAt  time.Time
	lastActivity atomic.Int64
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, registry *Registry, frames FrameHandler, logger *Logger) *Client {
	now := time.Now()
	c := &Client{
		id:          uuid.New().String(),
		userID:      userID,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		registry:    registry,
		frames:      frames,
		logger:      logger,
		connectedAt: now,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pulse_errors.ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return pulse_errors.ErrSendBufferFull
	}
}

// Close stops the write pump, which in turn closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Serve registers the client and runs its pumps. It returns immediately.
func (c *Client) Serve() {
	c.registry.Register(c)
	c.logger.Info("connected", c.userID, c.id)
	go c.writePump()
	go c.readPump()
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c.id)
		c.Close()
		c.conn.Close()
		c.logger.Info("disconnected", c.userID, c.id, zap.Duration("session", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		c.registry.Heartbeat(c.userID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected close", c.userID, c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.replyError("", pulse_errors.ErrInvalidInput)
		return
	}

	if frame.Type == events.FramePing {
		if err := c.Send(pongFrame); err != nil {
			c.logger.Warn("pong dropped", c.userID, c.id, zap.Error(err))
		}
		return
	}

	if c.frames == nil {
		return
	}
	if err := c.frames.HandleFrame(context.Background(), c, frame); err != nil {
		c.logger.Warn("frame rejected", c.userID, c.id, zap.String("msg_type", frame.Type), zap.Error(err))
		c.replyError(frame.Type, err)
	}
}

type errorFrame struct {
	Type  string `json:"type"`
	Ref   string `json:"ref,omitempty"`
	Error string `json:"error"`
}

func (c *Client) replyError(ref string, err error) {
	payload, _ := json.Marshal(errorFrame{Type: events.FrameError, Ref: ref, Error: err.Error()})
	_ = c.Send(payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one event per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(time.Unix(0, c.lastActivity.Load())) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.id)
				return
			}
		}
	}
}
