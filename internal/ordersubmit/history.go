package ordersubmit

import (
	"context"

	"github.com/example/storefront/internal/domain/order"
	"go.uber.org/zap"
)

// OrderLister fetches server-side order history.
type OrderLister interface {
	ListCustomerOrders(ctx context.Context, customerID string) ([]order.Order, error)
}

// History merges server orders with the local mirror.
type History struct {
	lister OrderLister
	mirror *Mirror
	logger *zap.Logger
}

func NewHistory(lister OrderLister, mirror *Mirror, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{lister: lister, mirror: mirror, logger: logger}
}

// Orders returns one entry per order id, newest first. When both sides know
// an order the server copy is used. A server failure degrades to the mirror.
func (h *History) Orders(ctx context.Context, customerID string) []order.Order {
	var remote []order.Order
	if h.lister != nil {
		var err error
		remote, err = h.lister.ListCustomerOrders(ctx, customerID)
		if err != nil {
			h.logger.Warn("order history unavailable, using local mirror",
				zap.String("customer_id", customerID),
				zap.Error(err))
			remote = nil
		}
	}

	var local []order.Order
	if h.mirror != nil {
		local = h.mirror.ForCustomer(ctx, customerID)
	}
	return Merge(remote, local)
}

// Merge de-duplicates by id preferring the first slice and sorts newest first.
func Merge(preferred, fallback []order.Order) []order.Order {
	seen := make(map[string]bool, len(preferred)+len(fallback))
	merged := make([]*order.Order, 0, len(preferred)+len(fallback))
	for _, list := range [][]order.Order{preferred, fallback} {
		for i := range list {
			o := list[i]
			if o.ID != "" && seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			merged = append(merged, &o)
		}
	}

	order.SortNewestFirst(merged)

	result := make([]order.Order, len(merged))
	for i, o := range merged {
		result[i] = *o
	}
	return result
}
