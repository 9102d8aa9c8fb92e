package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_EnvelopeCarriesEventTypeHeader(t *testing.T) {
	env, err := order.NewEnvelope("ord-1", order.EventOrderPlaced, map[string]string{"id": "ord-1"})
	require.NoError(t, err)
	now := time.Now()

	msg, err := buildMessage("ord-1", env, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("ord-1"), msg.Key)
	assert.Equal(t, now, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, HeaderEventType, msg.Headers[0].Key)
	assert.Equal(t, order.EventOrderPlaced, string(msg.Headers[0].Value))

	var decoded order.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, "ord-1", decoded.OrderID)
}

func TestBuildMessage_PlainPayloadHasNoHeaders(t *testing.T) {
	msg, err := buildMessage("k", map[string]int{"n": 1}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
	assert.JSONEq(t, `{"n":1}`, string(msg.Value))
}

func TestBuildMessage_UnencodableEvent(t *testing.T) {
	_, err := buildMessage("k", make(chan int), time.Now())
	assert.Error(t, err)
}
