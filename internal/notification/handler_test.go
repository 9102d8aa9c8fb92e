package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/storefront/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []order.Order
	err  error
}

func (m *fakeMailer) SendOrderConfirmation(o order.Order) error {
	m.sent = append(m.sent, o)
	return m.err
}

func envelope(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	env, err := order.NewEnvelope("order-1", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func placed(email string) order.OrderPlaced {
	return order.OrderPlaced{Order: order.Order{
		ID:              "order-1",
		CustomerID:      "cust-1",
		ShippingAddress: order.ShippingAddress{Email: email},
	}}
}

func TestHandleEvent_OrderPlacedSendsMail(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, nil)

	err := h.HandleEvent(context.Background(), []byte("order-1"), envelope(t, order.EventOrderPlaced, placed("ada@example.com")))

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "order-1", mailer.sent[0].ID)
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, nil)

	changed := order.OrderStatusChanged{OrderID: "order-1", From: order.StatusPending, To: order.StatusConfirmed}
	err := h.HandleEvent(context.Background(), nil, envelope(t, order.EventOrderStatusChanged, changed))

	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestHandleEvent_SkipsMissingEmail(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, nil)

	err := h.HandleEvent(context.Background(), nil, envelope(t, order.EventOrderPlaced, placed("")))

	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestHandleEvent_Errors(t *testing.T) {
	h := NewHandler(&fakeMailer{err: errors.New("smtp down")}, nil)

	assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("not json")))
	assert.Error(t, h.HandleEvent(context.Background(), nil, envelope(t, order.EventOrderPlaced, placed("ada@example.com"))))
}
