package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

const subscriberBuffer = 100

// ChannelMessageBroker implements MessageBroker using Go channels. Every
// subscriber of a topic receives every message published to it.
type ChannelMessageBroker struct {
	topics map[string][]chan domain.Message
	mu     sync.RWMutex
	closed bool
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string][]chan domain.Message),
	}
}

// Publish fans a message out to the subscribers of topic. A subscriber whose
// buffer is full misses the message.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	dropped := 0
	for _, channel := range b.topics[topic] {
		select {
		case channel <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			dropped++
		}
	}

	log.WithCtx(ctx).Debug("📤 Message published to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("payload_size", len(message)),
		zap.Int("subscribers", len(b.topics[topic])))

	if dropped > 0 {
		return fmt.Errorf("%d subscriber(s) of %s are full", dropped, topic)
	}
	return nil
}

// Subscribe returns a channel receiving the messages published on topic
// until ctx is done or the broker is closed.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	channel := make(chan domain.Message, subscriberBuffer)
	b.topics[topic] = append(b.topics[topic], channel)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(topic, channel)
		}()
	}

	log.WithCtx(ctx).Info("📡 Subscribed to topic", zap.String("topic", topic))
	return channel, nil
}

func (b *ChannelMessageBroker) unsubscribe(topic string, channel chan domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, c := range subs {
		if c == channel {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			close(channel)
			return
		}
	}
}

// Close closes the message broker and all subscriber channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for topic, subs := range b.topics {
		for _, channel := range subs {
			close(channel)
		}
		log.WithCtx(context.Background()).Debug("🔒 Closed topic subscribers", zap.String("topic", topic), zap.Int("count", len(subs)))
	}

	b.topics = make(map[string][]chan domain.Message)

	log.WithCtx(context.Background()).Info("🔒 Message broker closed")
	return nil
}

// SubscriberCount returns the number of subscribers of topic
func (b *ChannelMessageBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// IsClosed returns whether the broker is closed
func (b *ChannelMessageBroker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
