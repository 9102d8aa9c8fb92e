package store

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/order"
)

// MemoryOrderStore keeps orders in process memory.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	keys   map[string]string
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[string]*order.Order),
		keys:   make(map[string]string),
	}
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.OrderItems = append([]order.OrderItem(nil), o.OrderItems...)
	return &c
}

func (s *MemoryOrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return ErrDuplicateOrder
	}
	if o.IdempotencyKey != "" {
		if _, ok := s.keys[o.IdempotencyKey]; ok {
			return ErrDuplicateOrder
		}
		s.keys[o.IdempotencyKey] = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryOrderStore) Update(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryOrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	s.mu.RLock()
	id, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryOrderStore) ListByCustomer(_ context.Context, customerID string) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			result = append(result, cloneOrder(o))
		}
	}
	return result, nil
}

func (s *MemoryOrderStore) List(_ context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, cloneOrder(o))
	}
	return result, nil
}
