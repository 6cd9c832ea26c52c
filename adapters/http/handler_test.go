package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/satriahrh/cocoa-fruit/relay/adapters/http"
	"github.com/satriahrh/cocoa-fruit/relay/adapters/store"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/usecase"
)

type scriptedLlm struct {
	fragments []string
	err       error
}

func (s scriptedLlm) Stream(_ context.Context, _ []domain.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func newTestRouter(llm domain.Llm) *echo.Echo {
	svc := usecase.NewChatService(store.NewMemoryStore(), map[domain.ModelKind]domain.Llm{
		domain.ModelOpenAI: llm,
		domain.ModelGemini: llm,
	})
	return handler.NewRouter(handler.NewChatHandler(svc), handler.RouterConfig{BodyLimit: "1M"})
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func history(t *testing.T, e *echo.Echo, sessionID string) []domain.ChatMessage {
	t.Helper()
	w := do(t, e, http.MethodGet, "/history/"+sessionID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.History)
	return resp.History
}

func frames(t *testing.T, w *httptest.ResponseRecorder) []domain.StreamEvent {
	t.Helper()
	assert.Equal(t, "text/event-stream", w.Header().Get(echo.HeaderContentType))

	var events []domain.StreamEvent
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), line)
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestHistory_UnknownSession(t *testing.T) {
	e := newTestRouter(scriptedLlm{})

	w := do(t, e, http.MethodGet, "/history/never-seen", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())
}

func TestChat_AppendsUserMessage(t *testing.T) {
	e := newTestRouter(scriptedLlm{})

	w := do(t, e, http.MethodPost, "/chat", `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"message received","user_message":"hi"}`, w.Body.String())

	assert.Equal(t, []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}}, history(t, e, "s1"))
}

func TestChat_MalformedRequest(t *testing.T) {
	e := newTestRouter(scriptedLlm{})

	for _, body := range []string{
		`{"message":"hi"}`,
		`{"session_id":"s1"}`,
		`{"session_id":`,
	} {
		w := do(t, e, http.MethodPost, "/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, history(t, e, "s1"))
}

func TestStream_WithoutChat(t *testing.T) {
	e := newTestRouter(scriptedLlm{fragments: []string{"x"}})

	events := frames(t, do(t, e, http.MethodGet, "/stream/s1", ""))
	require.Len(t, events, 1)
	assert.Equal(t, domain.ErrSessionNotFound.Error(), events[0].Error)
	assert.Empty(t, history(t, e, "s1"))
}

func TestStream_Success(t *testing.T) {
	e := newTestRouter(scriptedLlm{fragments: []string{"Hel", "lo", "!"}})
	do(t, e, http.MethodPost, "/chat", `{"session_id":"s1","message":"hi"}`)

	events := frames(t, do(t, e, http.MethodGet, "/stream/s1?model=openai", ""))
	require.NotEmpty(t, events)

	var content strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.NotEmpty(t, ev.Content)
		content.WriteString(ev.Content)
	}
	assert.Equal(t, domain.CompleteEvent(), events[len(events)-1])

	h := history(t, e, "s1")
	require.Len(t, h, 2)
	assert.Equal(t, domain.AssistantRole, h[1].Role)
	assert.Equal(t, content.String(), h[1].Content)
}

func TestStream_UpstreamFault(t *testing.T) {
	e := newTestRouter(scriptedLlm{fragments: []string{"He", "llo"}, err: errors.New("upstream hung up")})
	do(t, e, http.MethodPost, "/chat", `{"session_id":"s1","message":"hi"}`)

	events := frames(t, do(t, e, http.MethodGet, "/stream/s1?model=gemini", ""))
	require.Len(t, events, 3)
	assert.Equal(t, domain.StreamEvent{Content: "He"}, events[0])
	assert.Equal(t, domain.StreamEvent{Content: "llo"}, events[1])
	assert.Equal(t, "upstream hung up", events[2].Error)

	h := history(t, e, "s1")
	require.Len(t, h, 2)
	assert.Equal(t, "Hello", h[1].Content)
}

func TestStream_UnknownModel(t *testing.T) {
	e := newTestRouter(scriptedLlm{fragments: []string{"x"}})
	do(t, e, http.MethodPost, "/chat", `{"session_id":"s1","message":"hi"}`)

	events := frames(t, do(t, e, http.MethodGet, "/stream/s1?model=gpt-9", ""))
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error, "unknown model")
	assert.Len(t, history(t, e, "s1"), 1)
}

func TestClearHistory(t *testing.T) {
	e := newTestRouter(scriptedLlm{fragments: []string{"x"}})
	do(t, e, http.MethodPost, "/chat", `{"session_id":"s1","message":"hi"}`)
	frames(t, do(t, e, http.MethodGet, "/stream/s1", ""))
	require.Len(t, history(t, e, "s1"), 2)

	for i := 0; i < 2; i++ {
		w := do(t, e, http.MethodDelete, "/history/s1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"history cleared"}`, w.Body.String())
		assert.Empty(t, history(t, e, "s1"))
	}

	w := do(t, e, http.MethodDelete, "/history/unknown", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewSession(t *testing.T) {
	e := newTestRouter(scriptedLlm{})

	w := do(t, e, http.MethodPost, "/session", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp handler.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)

	events := frames(t, do(t, e, http.MethodGet, "/stream/"+resp.SessionID, ""))
	require.Len(t, events, 1)
	assert.Equal(t, domain.ErrEmptyTranscript.Error(), events[0].Error)
}

func TestIndexAndHealth(t *testing.T) {
	e := newTestRouter(scriptedLlm{})

	w := do(t, e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "EventSource")

	w = do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}
