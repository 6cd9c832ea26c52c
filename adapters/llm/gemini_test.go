package llm

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/satriahrh/cocoa-fruit/relay/domain"
)

func TestPrompt(t *testing.T) {
	tests := []struct {
		name    string
		history []domain.ChatMessage
		want    string
	}{
		{"empty", nil, "Hello"},
		{
			"single",
			[]domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}},
			"hi",
		},
		{
			"with context",
			[]domain.ChatMessage{
				{Role: domain.UserRole, Content: "hi"},
				{Role: domain.AssistantRole, Content: "hello there"},
				{Role: domain.UserRole, Content: "how are you?"},
			},
			"Context: hi hello there\n\nQuestion: how are you?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prompt(tt.history))
		})
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func fakeStreamer(t *testing.T, wantPrompt string, chunks []*genai.GenerateContentResponse, tail error) contentStreamer {
	return func(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		assert.Equal(t, "test-model", model)
		require.Len(t, contents, 1)
		require.Len(t, contents[0].Parts, 1)
		assert.Equal(t, wantPrompt, contents[0].Parts[0].Text)

		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
			if tail != nil {
				yield(nil, tail)
			}
		}
	}
}

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for text, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, text)
	}
	return out, nil
}

func TestGeminiClient_StreamSkipsEmpty(t *testing.T) {
	g := &GeminiClient{
		model: "test-model",
		stream: fakeStreamer(t, "hi", []*genai.GenerateContentResponse{
			textResponse("He"),
			textResponse(""),
			{},
			textResponse("llo"),
		}, nil),
	}

	got, err := collect(g.Stream(context.Background(), []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, got)
}

func TestGeminiClient_StreamError(t *testing.T) {
	g := &GeminiClient{
		model:  "test-model",
		stream: fakeStreamer(t, "hi", []*genai.GenerateContentResponse{textResponse("He")}, errors.New("quota exceeded")),
	}

	got, err := collect(g.Stream(context.Background(), []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}}))
	assert.Equal(t, []string{"He"}, got)
	assert.ErrorContains(t, err, "quota exceeded")
}
