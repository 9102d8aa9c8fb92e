package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Envelope is the message published for every order event.
type Envelope struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderPlaced struct {
	Order    Order     `json:"order"`
	PlacedAt time.Time `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// NewEnvelope wraps an event payload for publishing.
func NewEnvelope(orderID, eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}
