package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	client "github.com/mutablelogic/go-client"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

const (
	DefaultOpenAIBaseURL = "http://localhost:1234/v1"
	DefaultOpenAIAPIKey  = "lm-studio"
	DefaultOpenAIModel   = "TheBloke/dolphin-2.2.1-mistral-7B-GGUF"
	DefaultTemperature   = 1.1
	DefaultMaxTokens     = 140
)

// errConsumerDone stops the completion stream once the caller stops ranging.
var errConsumerDone = errors.New("consumer done")

// OpenAIConfig is sent as is. Temperature and MaxTokens are not defaulted,
// start from DefaultOpenAIConfig to get the stock sampling parameters.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     DefaultOpenAIBaseURL,
		APIKey:      DefaultOpenAIAPIKey,
		Model:       DefaultOpenAIModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// OpenAIClient streams chat completions from any OpenAI-compatible
// endpoint such as LM Studio or llama.cpp.
type OpenAIClient struct {
	*client.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewOpenAIClient(cfg OpenAIConfig, opts ...client.ClientOpt) (*OpenAIClient, error) {
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = DefaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts = append(opts, client.OptEndpoint(endpoint))
	if cfg.APIKey != "" {
		opts = append(opts, client.OptReqToken(client.Token{Scheme: client.Bearer, Value: cfg.APIKey}))
	}
	c, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	return &OpenAIClient{
		Client:      c,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream implements domain.Llm.
func (c *OpenAIClient) Stream(ctx context.Context, history []domain.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		payload, err := client.NewJSONRequest(chatRequest{
			Model:       c.model,
			Messages:    history,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
			Stream:      true,
		})
		if err != nil {
			yield("", fmt.Errorf("encode completion request: %w", err))
			return
		}

		// streamErr is set when the stream itself reports a failure, as
		// opposed to the request failing. stopped is set once the stream
		// ended on [DONE] or the consumer stopped ranging.
		var (
			streamErr error
			stopped   bool
		)
		callback := func(event client.TextStreamEvent) error {
			if stopped {
				return errConsumerDone
			}
			data := strings.TrimSpace(event.Data)
			if data == "[DONE]" {
				stopped = true
				return io.EOF
			}

			var chunk chatCompletionChunk
			if err := event.Json(&chunk); err != nil {
				streamErr = fmt.Errorf("decode completion chunk: %w", err)
				return streamErr
			}
			if chunk.Error != nil {
				streamErr = fmt.Errorf("completion stream: %s", chunk.Error.Message)
				return streamErr
			}
			if len(chunk.Choices) == 0 {
				return nil
			}

			content := chunk.Choices[0].Delta.Content
			if content == nil || *content == "" {
				return nil
			}
			if !yield(*content, nil) {
				stopped = true
				return errConsumerDone
			}
			return nil
		}

		log.WithCtx(ctx).Debug("Sending completion request",
			zap.String("upstream_model", c.model),
			zap.Int("messages", len(history)))

		// A non-nil out is required for the client to reach the stream decoder.
		var discard struct{}
		err = c.DoWithContext(ctx, payload, &discard,
			client.OptPath("chat", "completions"),
			client.OptReqHeader("Accept", "text/event-stream"),
			client.OptTextStreamCallback(callback),
			client.OptNoTimeout(),
		)
		switch {
		case stopped:
		case streamErr != nil:
			yield("", streamErr)
		case err == nil, errors.Is(err, io.EOF):
			// Some servers close the connection without sending [DONE].
		default:
			yield("", fmt.Errorf("completion request failed: %w", err))
		}
	}
}
