package kafka

import (
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeMessage(t *testing.T, eventType string) kafka.Message {
	t.Helper()
	env, err := order.NewEnvelope("ord-1", eventType, struct{}{})
	require.NoError(t, err)
	msg, err := buildMessage("ord-1", env, time.Now())
	require.NoError(t, err)
	return msg
}

func TestConsumer_AcceptsFiltersOnEventTypeHeader(t *testing.T) {
	c := &Consumer{}
	WithEventTypes(order.EventOrderPlaced)(c)

	assert.True(t, c.accepts(envelopeMessage(t, order.EventOrderPlaced)))
	assert.False(t, c.accepts(envelopeMessage(t, order.EventOrderStatusChanged)))
	assert.True(t, c.accepts(kafka.Message{Value: []byte(`{}`)}), "messages without the header pass through")
}

func TestConsumer_AcceptsEverythingWithoutFilter(t *testing.T) {
	c := &Consumer{}

	assert.True(t, c.accepts(envelopeMessage(t, order.EventOrderStatusChanged)))
}
