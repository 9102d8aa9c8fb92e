package ordersubmit

import (
	"context"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderCreator is the remote half of a submission.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.PlaceOrder, idempotencyKey string) (*order.Order, error)
}

// Request is everything checkout knows at submit time.
type Request struct {
	CustomerID     string
	Items          cart.Items
	Breakdown      pricing.Breakdown
	Shipping       order.ShippingAddress
	IdempotencyKey string
}

// Submitter creates the order remotely and mirrors it locally.
type Submitter struct {
	creator OrderCreator
	mirror  *Mirror
	logger  *zap.Logger
	now     func() time.Time
}

func NewSubmitter(creator OrderCreator, mirror *Mirror, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{creator: creator, mirror: mirror, logger: logger, now: time.Now}
}

// BuildPlaceOrder converts a checkout request into the endpoint payload.
func BuildPlaceOrder(req Request) order.PlaceOrder {
	items := make([]order.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		sub, _ := it.Subtotal().Round(2).Float64()
		items = append(items, order.OrderItem{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
			Subtotal:  sub,
		})
	}
	return order.PlaceOrder{
		CustomerID:      req.CustomerID,
		OrderItems:      items,
		TotalAmount:     req.Breakdown.Total,
		ShippingFee:     req.Breakdown.Shipping,
		Tax:             req.Breakdown.Tax,
		Discount:        req.Breakdown.Discount,
		ShippingAddress: req.Shipping,
		PaymentMethod:   order.PaymentCreditCard,
		IdempotencyKey:  req.IdempotencyKey,
	}
}

// Submit creates the order. Only a failure of the remote call is returned;
// the mirror write is best-effort.
func (s *Submitter) Submit(ctx context.Context, req Request) (*order.Order, error) {
	payload := BuildPlaceOrder(req)

	created, err := s.creator.CreateOrder(ctx, payload, req.IdempotencyKey)
	if err != nil {
		s.logger.Warn("order submission failed",
			zap.String("customer_id", req.CustomerID),
			zap.Error(err))
		return nil, err
	}

	s.complete(created, payload)

	if s.mirror != nil {
		if err := s.mirror.Append(ctx, *created); err != nil {
			s.logger.Warn("failed to mirror order locally",
				zap.String("order_id", created.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("order submitted",
		zap.String("order_id", created.ID),
		zap.Float64("total", created.TotalAmount))
	return created, nil
}

// complete fills the fields a terse server response may leave out.
func (s *Submitter) complete(o *order.Order, payload order.PlaceOrder) {
	now := s.now().UTC()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	if o.CustomerID == "" {
		o.CustomerID = payload.CustomerID
	}
	if len(o.OrderItems) == 0 {
		o.OrderItems = payload.OrderItems
		o.TotalAmount = payload.TotalAmount
		o.ShippingFee = payload.ShippingFee
		o.Tax = payload.Tax
		o.Discount = payload.Discount
		o.ShippingAddress = payload.ShippingAddress
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = payload.PaymentMethod
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = now
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}
}
