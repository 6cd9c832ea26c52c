package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	inbox     chan InboundMessage
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
}

// InboundMessage is a chat turn sent by the browser.
type InboundMessage struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

const (
	TypeEvent      = "event"
	TypeTranscript = "transcript"
)

// OutboundMessage carries either a relay stream event or a transcript
// notification for the client's session.
type OutboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	domain.StreamEvent
	Message *domain.ChatMessage `json:"message,omitempty"`
}

var errSendBufferFull = errors.New("send buffer full")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	inboxSize      = 16
)

// NewClient creates a new WebSocket client attached to a session
func NewClient(conn *websocket.Conn, sessionID string) *Client {
	ctx := log.WithValue(context.Background(), log.SessionIDKey, sessionID)
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
		inbox:     make(chan InboundMessage, inboxSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.readPump()
	go c.writePump()
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPongHandler(func(appData string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	c.conn.Close()
}

// IsClosed returns true if the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context is cancelled once the connection is closed
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// Inbox delivers chat turns in the order they were received
func (c *Client) Inbox() <-chan InboundMessage {
	return c.inbox
}

// readPump handles incoming WebSocket messages
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithCtx(c.ctx).Debug("Invalid inbound message", zap.Error(err))
			c.SendEvent(domain.StreamEvent{Error: "invalid message: " + err.Error()})
			continue
		}

		select {
		case c.inbox <- msg:
		default:
			c.SendEvent(domain.StreamEvent{Error: "too many pending messages"})
		}
	}
}

// writePump handles outgoing WebSocket messages and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// SendMessage queues a frame, blocking while the send buffer is full
func (c *Client) SendMessage(message []byte) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return websocket.ErrCloseSent
	}
}

// SendJSON marshals and queues msg
func (c *Client) SendJSON(msg OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.SendMessage(data)
}

// TrySendJSON queues msg unless the send buffer is full
func (c *Client) TrySendJSON(msg OutboundMessage) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// SendEvent queues a relay stream event
func (c *Client) SendEvent(ev domain.StreamEvent) error {
	return c.SendJSON(OutboundMessage{Type: TypeEvent, SessionID: c.sessionID, StreamEvent: ev})
}
