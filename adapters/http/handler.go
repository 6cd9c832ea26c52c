package http

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/usecase"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

//go:embed index.html
var indexHTML string

type ChatHandler struct {
	chatService *usecase.ChatService
}

type ChatRequest struct {
	SessionID string  `json:"session_id"`
	Message   *string `json:"message"`
}

type ChatResponse struct {
	Status      string `json:"status"`
	UserMessage string `json:"user_message"`
}

type HistoryResponse struct {
	History []domain.ChatMessage `json:"history"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

func NewChatHandler(chatService *usecase.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Index serves the bundled chat page
func (h *ChatHandler) Index(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}

// Chat appends a user message to a session
func (h *ChatHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	if req.Message == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := log.WithValue(c.Request().Context(), log.SessionIDKey, req.SessionID)
	if err := h.chatService.Send(ctx, req.SessionID, *req.Message); err != nil {
		log.WithCtx(ctx).Error("Failed to store user message", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store message")
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Status:      "message received",
		UserMessage: *req.Message,
	})
}

// Stream relays the model reply for a session as server-sent events
func (h *ChatHandler) Stream(c echo.Context) error {
	sessionID := c.Param("session_id")
	ctx := log.WithValue(c.Request().Context(), log.SessionIDKey, sessionID)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	emit := func(ev domain.StreamEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
			return err
		}
		res.Flush()
		return nil
	}

	// Stream failures are already delivered as error events.
	_ = h.chatService.Stream(ctx, sessionID, c.QueryParam("model"), emit)
	return nil
}

// History returns the transcript of a session
func (h *ChatHandler) History(c echo.Context) error {
	return c.JSON(http.StatusOK, HistoryResponse{
		History: h.chatService.History(c.Param("session_id")),
	})
}

// ClearHistory empties the transcript of a session
func (h *ChatHandler) ClearHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	h.chatService.Clear(log.WithValue(c.Request().Context(), log.SessionIDKey, sessionID), sessionID)
	return c.JSON(http.StatusOK, StatusResponse{Status: "history cleared"})
}

// NewSession creates an empty session with a generated id
func (h *ChatHandler) NewSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID: h.chatService.NewSession(c.Request().Context()),
	})
}

// Health check endpoint
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "chat-relay",
	})
}
