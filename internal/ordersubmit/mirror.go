package ordersubmit

import (
	"context"
	"errors"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

// Mirror is the client-side copy of orders placed from this profile. It only
// grows; the server stays the source of truth.
type Mirror struct {
	storage localstore.Storage
	logger  *zap.Logger
}

func NewMirror(storage localstore.Storage, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{storage: storage, logger: logger}
}

// All returns every mirrored order. Missing or corrupt data reads as empty.
func (m *Mirror) All(ctx context.Context) []order.Order {
	var orders []order.Order
	err := localstore.LoadJSON(ctx, m.storage, localstore.KeyOrders, &orders)
	switch {
	case err == nil:
		return orders
	case errors.Is(err, localstore.ErrNotFound):
	default:
		m.logger.Warn("discarding unreadable order mirror", zap.Error(err))
	}
	return []order.Order{}
}

// Append adds o to the mirror.
func (m *Mirror) Append(ctx context.Context, o order.Order) error {
	orders := append(m.All(ctx), o)
	return localstore.SaveJSON(ctx, m.storage, localstore.KeyOrders, orders)
}

// ForCustomer returns the mirrored orders of one customer.
func (m *Mirror) ForCustomer(ctx context.Context, customerID string) []order.Order {
	result := make([]order.Order, 0)
	for _, o := range m.All(ctx) {
		if o.CustomerID == customerID {
			result = append(result, o)
		}
	}
	return result
}
