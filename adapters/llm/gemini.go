package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type GeminiConfig struct {
	// APIKey may be empty, genai then reads GOOGLE_API_KEY or GEMINI_API_KEY.
	APIKey string
	Model  string
}

type contentStreamer func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

type GeminiClient struct {
	model  string
	stream contentStreamer
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{model: model, stream: client.Models.GenerateContentStream}, nil
}

// Stream implements domain.Llm. Gemini receives the conversation as one
// flattened prompt, see Prompt.
func (g *GeminiClient) Stream(ctx context.Context, history []domain.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prompt := Prompt(history)
		log.WithCtx(ctx).Debug("Sending gemini prompt",
			zap.String("upstream_model", g.model),
			zap.Int("prompt_len", len(prompt)))

		for resp, err := range g.stream(ctx, g.model, genai.Text(prompt), nil) {
			if err != nil {
				yield("", fmt.Errorf("generate content: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// Prompt flattens history into a single prompt. The last message is the
// question, every earlier message becomes space-joined context.
func Prompt(history []domain.ChatMessage) string {
	if len(history) == 0 {
		return "Hello"
	}

	question := history[len(history)-1].Content
	if len(history) == 1 {
		return question
	}

	earlier := make([]string, 0, len(history)-1)
	for _, msg := range history[:len(history)-1] {
		earlier = append(earlier, msg.Content)
	}
	return fmt.Sprintf("Context: %s\n\nQuestion: %s", strings.Join(earlier, " "), question)
}
