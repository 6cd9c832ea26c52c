package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

// EmitFunc delivers one stream event to the client. A non-nil error means
// the client is gone.
type EmitFunc func(domain.StreamEvent) error

type ChatService struct {
	store        domain.SessionStore
	models       map[domain.ModelKind]domain.Llm
	broker       domain.MessageBroker
	defaultModel domain.ModelKind
	idleTimeout  time.Duration
}

type Option func(*ChatService)

// WithBroker publishes every transcript append on domain.TranscriptTopic.
func WithBroker(b domain.MessageBroker) Option {
	return func(s *ChatService) { s.broker = b }
}

func WithDefaultModel(kind domain.ModelKind) Option {
	return func(s *ChatService) { s.defaultModel = kind }
}

// WithIdleTimeout aborts a stream when the upstream produces no fragment
// for d. Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *ChatService) { s.idleTimeout = d }
}

func NewChatService(store domain.SessionStore, models map[domain.ModelKind]domain.Llm, opts ...Option) *ChatService {
	s := &ChatService{
		store:        store,
		models:       models,
		defaultModel: domain.ModelOpenAI,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession registers a fresh session and returns its id.
func (s *ChatService) NewSession(ctx context.Context) string {
	id := uuid.Must(uuid.NewV7()).String()
	s.store.Ensure(id)
	log.WithCtx(ctx).Debug("Session created", zap.String("session_id", id))
	return id
}

// Send appends a user message, creating the session on first use.
func (s *ChatService) Send(ctx context.Context, sessionID, text string) error {
	s.store.Ensure(sessionID)
	return s.append(ctx, sessionID, domain.ChatMessage{Role: domain.UserRole, Content: text})
}

func (s *ChatService) History(sessionID string) []domain.ChatMessage {
	history, _ := s.store.Get(sessionID)
	return history
}

func (s *ChatService) Clear(ctx context.Context, sessionID string) {
	s.store.Clear(sessionID)
	log.WithCtx(ctx).Debug("History cleared")
}

// Stream relays the model's reply to the session transcript through emit.
// Exactly one terminal event (complete or error) is emitted unless the
// client disconnects. Once the model has been invoked, whatever text it
// produced is appended to the transcript as one assistant message, whatever
// the outcome. The returned error describes how the stream ended and is
// meant for logging only.
func (s *ChatService) Stream(ctx context.Context, sessionID, model string, emit EmitFunc) error {
	history, ok := s.store.Get(sessionID)
	if !ok {
		return s.fail(ctx, emit, domain.ErrSessionNotFound)
	}
	if len(history) == 0 {
		return s.fail(ctx, emit, domain.ErrEmptyTranscript)
	}
	kind, err := domain.ParseModel(model, s.defaultModel)
	if err != nil {
		return s.fail(ctx, emit, err)
	}
	llm, ok := s.models[kind]
	if !ok {
		return s.fail(ctx, emit, fmt.Errorf("%w: %s is not available", domain.ErrUnknownModel, kind))
	}

	ctx = log.WithValue(ctx, log.ModelKey, string(kind))
	reply, gone, streamErr := s.relay(ctx, llm, history, emit)

	if err := s.append(ctx, sessionID, domain.ChatMessage{Role: domain.AssistantRole, Content: reply}); err != nil {
		log.WithCtx(ctx).Error("Failed to store assistant reply", zap.Error(err))
	}

	if gone {
		log.WithCtx(ctx).Info("Client disconnected mid-stream",
			zap.Int("reply_len", len(reply)), zap.Error(streamErr))
		return streamErr
	}
	if streamErr != nil {
		log.WithCtx(ctx).Warn("Upstream stream failed",
			zap.Int("reply_len", len(reply)), zap.Error(streamErr))
		return s.fail(ctx, emit, streamErr)
	}

	if err := emit(domain.CompleteEvent()); err != nil {
		log.WithCtx(ctx).Debug("Failed to deliver complete event", zap.Error(err))
	}
	log.WithCtx(ctx).Info("Stream complete", zap.Int("reply_len", len(reply)))
	return nil
}

// relay drains the model sequence into emit and returns the accumulated
// text. gone reports that the client went away before the sequence ended.
func (s *ChatService) relay(ctx context.Context, llm domain.Llm, history []domain.ChatMessage, emit EmitFunc) (reply string, gone bool, streamErr error) {
	upstreamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var idle *time.Timer
	if s.idleTimeout > 0 {
		idle = time.AfterFunc(s.idleTimeout, func() { cancel(domain.ErrIdleTimeout) })
		defer idle.Stop()
	}

	var sb strings.Builder
	for text, err := range llm.Stream(upstreamCtx, history) {
		if err != nil {
			streamErr = err
			break
		}
		// The idle clock only runs while waiting on the upstream, not while
		// a slow client drains the previous fragment.
		if idle != nil {
			idle.Stop()
		}

		sb.WriteString(text)
		if err := emit(domain.ContentEvent(text)); err != nil {
			return sb.String(), true, fmt.Errorf("emit content: %w", err)
		}

		if idle != nil {
			idle.Reset(s.idleTimeout)
		}
	}

	if cause := context.Cause(upstreamCtx); streamErr != nil && errors.Is(cause, domain.ErrIdleTimeout) {
		streamErr = cause
	}
	if ctx.Err() != nil {
		if streamErr == nil {
			streamErr = ctx.Err()
		}
		return sb.String(), true, streamErr
	}
	return sb.String(), false, streamErr
}

func (s *ChatService) fail(ctx context.Context, emit EmitFunc, err error) error {
	if emitErr := emit(domain.ErrorEvent(err)); emitErr != nil {
		log.WithCtx(ctx).Debug("Failed to deliver error event", zap.Error(emitErr))
	}
	return err
}

func (s *ChatService) append(ctx context.Context, sessionID string, msg domain.ChatMessage) error {
	if err := s.store.Append(sessionID, msg); err != nil {
		return fmt.Errorf("append %s message: %w", msg.Role, err)
	}
	s.publish(ctx, sessionID, msg)
	return nil
}

func (s *ChatService) publish(ctx context.Context, sessionID string, msg domain.ChatMessage) {
	if s.broker == nil {
		return
	}

	payload, err := json.Marshal(domain.TranscriptMessage{
		SessionID: sessionID,
		Message:   msg,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.WithCtx(ctx).Error("Failed to marshal transcript message", zap.Error(err))
		return
	}

	// The request context may already be cancelled after a disconnect.
	if err := s.broker.Publish(context.WithoutCancel(ctx), domain.TranscriptTopic, sessionID, payload); err != nil {
		log.WithCtx(ctx).Warn("Failed to publish transcript message", zap.Error(err))
	}
}
