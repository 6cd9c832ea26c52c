package domain

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// Llm abstracts any streaming chat/LLM provider.
type Llm interface {
	// Stream produces the assistant reply to history as a lazy sequence of
	// text fragments. A non-nil error ends the sequence.
	Stream(ctx context.Context, history []ChatMessage) iter.Seq2[string, error]
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// ModelKind names a registered Llm backend.
type ModelKind string

const (
	ModelOpenAI ModelKind = "openai"
	ModelGemini ModelKind = "gemini"
)

// ParseModel validates a model name. An empty name resolves to def.
func ParseModel(name string, def ModelKind) (ModelKind, error) {
	switch ModelKind(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return def, nil
	case ModelOpenAI:
		return ModelOpenAI, nil
	case ModelGemini:
		return ModelGemini, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
}
