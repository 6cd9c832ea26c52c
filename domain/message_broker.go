package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a topic tagged with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe returns a new channel receiving every message on topic
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)

	// Close closes the message broker and all subscriptions
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

const TranscriptTopic = "transcript.appended"

// TranscriptMessage announces a message appended to a session transcript.
type TranscriptMessage struct {
	SessionID string      `json:"session_id"`
	Message   ChatMessage `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}
