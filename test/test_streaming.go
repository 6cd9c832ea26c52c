// Command test_streaming posts one message and prints the SSE frames of the
// reply. It expects a relay running on -url.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	client "github.com/mutablelogic/go-client"
)

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "relay base URL")
	message := flag.String("message", "Hello! Who are you?", "message to send")
	model := flag.String("model", "", "model to use (openai or gemini)")
	flag.Parse()

	fmt.Println("🚀 Starting streaming test...")

	relay, err := client.New(client.OptEndpoint(*baseURL), client.OptTimeout(10*time.Second))
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	ctx := context.Background()

	var session SessionResponse
	payload, err := client.NewJSONRequest(struct{}{})
	if err != nil {
		log.Fatal(err)
	}
	if err := relay.DoWithContext(ctx, payload, &session, client.OptPath("session")); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Printf("✅ Session created: %s\n", session.SessionID)

	payload, err = client.NewJSONRequest(ChatRequest{SessionID: session.SessionID, Message: *message})
	if err != nil {
		log.Fatal(err)
	}
	var ack map[string]any
	if err := relay.DoWithContext(ctx, payload, &ack, client.OptPath("chat")); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}
	fmt.Printf("📤 Sent: %s\n", *message)

	reply, err := readStream(ctx, relay, session.SessionID, *model)
	if err != nil {
		log.Fatalf("Failed to stream reply: %v", err)
	}

	fmt.Printf("\n✅ Streaming test completed, %d characters received\n", len(reply))
}

func readStream(ctx context.Context, relay *client.Client, sessionID, model string) (string, error) {
	var (
		reply    []byte
		relayErr error
		terminal bool
	)
	startTime := time.Now()

	callback := func(event client.TextStreamEvent) error {
		var ev StreamEvent
		if err := event.Json(&ev); err != nil {
			return fmt.Errorf("malformed frame %q: %w", event.Data, err)
		}
		switch {
		case ev.Error != "":
			terminal = true
			relayErr = fmt.Errorf("relay error: %s", ev.Error)
			return io.EOF
		case ev.Status != "":
			terminal = true
			fmt.Printf("\n⏱️  Stream %s in %v", ev.Status, time.Since(startTime))
			return io.EOF
		default:
			fmt.Print(ev.Content)
			reply = append(reply, ev.Content...)
			return nil
		}
	}

	query := url.Values{}
	if model != "" {
		query.Set("model", model)
	}

	var discard struct{}
	err := relay.DoWithContext(ctx, nil, &discard,
		client.OptPath("stream", sessionID),
		client.OptQuery(query),
		client.OptReqHeader("Accept", "text/event-stream"),
		client.OptTextStreamCallback(callback),
		client.OptNoTimeout(),
	)
	switch {
	case relayErr != nil:
		return string(reply), relayErr
	case terminal:
		return string(reply), nil
	case err != nil && !errors.Is(err, io.EOF):
		return string(reply), err
	}
	return string(reply), errors.New("stream ended without a terminal frame")
}
