package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/usecase"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

type Server struct {
	upgrader      websocket.Upgrader
	svc           *usecase.ChatService
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(svc *usecase.ChatService, messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:           svc,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

// Run serves the hub and forwards transcript notifications until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	messages, err := s.messageBroker.Subscribe(ctx, domain.TranscriptTopic)
	if err != nil {
		return err
	}

	go s.hub.Run(ctx)
	log.WithCtx(ctx).Info("🎧 WebSocket server listening to transcript messages")
	s.forwardTranscripts(ctx, messages)
	return nil
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) forwardTranscripts(ctx context.Context, messages <-chan domain.Message) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var tm domain.TranscriptMessage
			if err := json.Unmarshal(msg.Payload, &tm); err != nil {
				log.WithCtx(ctx).Error("❌ Failed to unmarshal transcript message", zap.Error(err))
				continue
			}

			s.hub.SendToSession(tm.SessionID, OutboundMessage{
				Type:      TypeTranscript,
				SessionID: tm.SessionID,
				Message:   &tm.Message,
			})

		case <-ctx.Done():
			log.WithCtx(ctx).Info("🔒 Transcript listener stopped")
			return
		}
	}
}

// handle runs one chat turn: store the user message, then relay the reply.
func (s *Server) handle(client *Client, msg InboundMessage) {
	ctx := client.Context()
	if msg.Message == "" {
		client.SendEvent(domain.StreamEvent{Error: "message is required"})
		return
	}

	if err := s.svc.Send(ctx, client.SessionID(), msg.Message); err != nil {
		log.WithCtx(ctx).Error("Failed to store user message", zap.Error(err))
		client.SendEvent(domain.ErrorEvent(err))
		return
	}

	// Failures reach the client as error events.
	_ = s.svc.Stream(ctx, client.SessionID(), msg.Model, client.SendEvent)
}
