package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader     *kafka.Reader
	logger     *zap.Logger
	eventTypes map[string]struct{}
}

type ConsumerOption func(*Consumer)

// WithEventTypes limits delivery to messages whose event-type header is one
// of types. Messages without the header are always delivered.
func WithEventTypes(types ...string) ConsumerOption {
	return func(c *Consumer) {
		c.eventTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			c.eventTypes[t] = struct{}{}
		}
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	c := &Consumer{
		reader: reader,
		logger: logger.With(zap.String("topic", topic), zap.String("group", groupID)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func eventType(msg kafka.Message) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == HeaderEventType {
			return string(h.Value), true
		}
	}
	return "", false
}

func (c *Consumer) accepts(msg kafka.Message) bool {
	if len(c.eventTypes) == 0 {
		return true
	}
	t, ok := eventType(msg)
	if !ok {
		return true
	}
	_, wanted := c.eventTypes[t]
	return wanted
}

// Consume blocks until ctx is cancelled. Filtered messages are committed
// without reaching handler; handler errors are logged and the message is
// skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("error reading message", zap.Error(err))
				continue
			}

			if !c.accepts(msg) {
				t, _ := eventType(msg)
				c.logger.Debug("skipping event", zap.String("event_type", t), zap.Int64("offset", msg.Offset))
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.logger.Error("error handling message",
					zap.ByteString("key", msg.Key),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
