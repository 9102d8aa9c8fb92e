package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository persists orders. Implementations must be safe for concurrent use.
// Create fails with an error wrapping ErrDuplicateOrder when the order id or
// its idempotency key is already taken.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Order, error)
	List(ctx context.Context) ([]*Order, error)
}

// Publisher delivers order events to the bus.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// PlaceOrder is the create-order request body.
type PlaceOrder struct {
	CustomerID      string          `json:"customerId"`
	OrderItems      []OrderItem     `json:"orderItems"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingFee     float64         `json:"shippingFee"`
	Tax             float64         `json:"tax"`
	Discount        float64         `json:"discount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 ||
			item.Price < 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
			return fmt.Errorf("%w: item %d", ErrInvalidItem, i)
		}
	}
	return nil
}

// Place validates and stores a new pending order. A repeated idempotency key
// returns the order created for it the first time.
func (s *Service) Place(ctx context.Context, req PlaceOrder) (*Order, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, ErrMissingCustomer
	}
	if err := validateItems(req.OrderItems); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			s.logger.Info("idempotent order replay",
				zap.String("order_id", existing.ID),
				zap.String("idempotency_key", req.IdempotencyKey))
			return existing, nil
		case !errors.Is(err, ErrOrderNotFound):
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	items := make([]OrderItem, len(req.OrderItems))
	for i, item := range req.OrderItems {
		item.Subtotal = math.Round(item.Price*float64(item.Quantity)*100) / 100
		items[i] = item
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = PaymentCreditCard
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		OrderDate:       now,
		Status:          StatusPending,
		TotalAmount:     req.TotalAmount,
		ShippingFee:     req.ShippingFee,
		Tax:             req.Tax,
		Discount:        req.Discount,
		ShippingAddress: req.ShippingAddress,
		OrderItems:      items,
		PaymentMethod:   paymentMethod,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if req.IdempotencyKey != "" && errors.Is(err, ErrDuplicateOrder) {
			// A concurrent request with the same key committed first.
			existing, findErr := s.repo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if findErr == nil {
				s.logger.Info("idempotent order replay after concurrent create",
					zap.String("order_id", existing.ID),
					zap.String("idempotency_key", req.IdempotencyKey))
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.Float64("total", o.TotalAmount),
		zap.Int("items", len(o.OrderItems)))

	s.publish(ctx, o.ID, EventOrderPlaced, OrderPlaced{Order: *o, PlacedAt: now})
	return o, nil
}

// Transition moves an order along the status machine.
func (s *Service) Transition(ctx context.Context, id string, target Status) (*Order, error) {
	if _, err := ParseStatus(string(target)); err != nil {
		return nil, err
	}

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(target) {
		return nil, o.transitionError(target)
	}

	from := o.Status
	o.Status = target
	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))

	s.publish(ctx, o.ID, EventOrderStatusChanged, OrderStatusChanged{
		OrderID:   o.ID,
		From:      from,
		To:        target,
		ChangedAt: o.UpdatedAt,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrMissingCustomer
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(orders)
	return orders, nil
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]*Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(orders)
	return orders, nil
}

// SortNewestFirst orders by order date descending, id as tie-breaker.
func SortNewestFirst(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID > orders[j].ID
	})
}

func (s *Service) publish(ctx context.Context, orderID, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	env, err := NewEnvelope(orderID, eventType, data)
	if err != nil {
		s.logger.Error("encode order event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, orderID, env); err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
