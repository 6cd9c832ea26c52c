package websocket

import (
	"context"
	"sync/atomic"

	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

type sessionMessage struct {
	sessionID string
	msg       OutboundMessage
}

// Hub tracks connected clients. All access to the client set happens on
// the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan sessionMessage
	done       chan struct{}
	count      atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sessionMessage, 64),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			log.WithCtx(client.ctx).Debug("New client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				client.Close()
				log.WithCtx(client.ctx).Debug("Client unregistered")
			}

		case m := <-h.broadcast:
			for client := range h.clients {
				if client.sessionID != m.sessionID || client.IsClosed() {
					continue
				}
				if err := client.TrySendJSON(m.msg); err != nil {
					log.WithCtx(client.ctx).Debug("Failed to forward session message", zap.Error(err))
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.count.Store(0)
			return
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToSession forwards msg to every client attached to sessionID
func (h *Hub) SendToSession(sessionID string, msg OutboundMessage) {
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, msg: msg}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
