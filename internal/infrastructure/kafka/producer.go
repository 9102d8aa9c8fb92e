package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HeaderEventType lets consumers filter without decoding the body.
const HeaderEventType = "event-type"

// Producer publishes JSON-encoded order events keyed by order id.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, logger: logger}
}

func buildMessage(key string, event any, now time.Time) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  now,
	}
	var eventType string
	switch env := event.(type) {
	case order.Envelope:
		eventType = env.EventType
	case *order.Envelope:
		eventType = env.EventType
	}
	if eventType != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderEventType, Value: []byte(eventType)})
	}
	return msg, nil
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	msg, err := buildMessage(key, event, time.Now())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published", zap.String("key", key), zap.Int("bytes", len(msg.Value)))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
