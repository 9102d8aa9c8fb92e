package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/storefront/internal/domain/order"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(o order.Order) error
}

// Handler processes order events for sending notifications
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mailer: mailer, logger: logger}
}

// HandleEvent processes an event from Kafka. Events other than OrderPlaced
// are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env order.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	if env.EventType != order.EventOrderPlaced {
		h.logger.Debug("ignoring event", zap.String("event_type", env.EventType), zap.String("order_id", env.OrderID))
		return nil
	}
	return h.handleOrderPlaced(env)
}

func (h *Handler) handleOrderPlaced(env order.Envelope) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return fmt.Errorf("decode OrderPlaced: %w", err)
	}

	log := h.logger.With(
		zap.String("order_id", e.Order.ID),
		zap.String("customer_id", e.Order.CustomerID))

	if e.Order.ShippingAddress.Email == "" {
		log.Warn("order has no shipping email, skipping confirmation")
		return nil
	}

	if err := h.mailer.SendOrderConfirmation(e.Order); err != nil {
		log.Error("failed to send confirmation", zap.Error(err))
		return err
	}

	log.Info("order confirmation sent", zap.String("to", e.Order.ShippingAddress.Email))
	return nil
}
