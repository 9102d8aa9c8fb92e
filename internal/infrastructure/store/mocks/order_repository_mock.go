package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/store"
)

// MockOrderRepository wraps the in-memory store and records calls for tests
type MockOrderRepository struct {
	*store.MemoryOrderStore

	mu sync.Mutex

	CreateCalls []*order.Order
	UpdateCalls []*order.Order
	CreateErr   error
	UpdateErr   error
	GetErr      error
	ListErr     error

	// BeforeCreate runs ahead of every Create, outside the lock.
	BeforeCreate func(ctx context.Context, o *order.Order)
}

// NewMockOrderRepository creates a new MockOrderRepository
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{MemoryOrderStore: store.NewMemoryOrderStore()}
}

// Create records the order and stores it unless CreateErr is set
func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, o)
	err := m.CreateErr
	hook := m.BeforeCreate
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, o)
	}
	if err != nil {
		return err
	}
	return m.MemoryOrderStore.Create(ctx, o)
}

// Update records the order and stores it unless UpdateErr is set
func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, o)
	err := m.UpdateErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.MemoryOrderStore.Update(ctx, o)
}

func (m *MockOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.MemoryOrderStore.Get(ctx, id)
}

func (m *MockOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.MemoryOrderStore.ListByCustomer(ctx, customerID)
}

func (m *MockOrderRepository) List(ctx context.Context) ([]*order.Order, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.MemoryOrderStore.List(ctx)
}

// CreateCount returns the number of Create calls
func (m *MockOrderRepository) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreateCalls)
}

// Published is a single message recorded by MockPublisher
type Published struct {
	Key   string
	Event any
}

// MockPublisher records published events
type MockPublisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Published{Key: key, Event: event})
	return p.Err
}

// EventTypes returns the event type of every recorded envelope
func (p *MockPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		if env, ok := m.Event.(order.Envelope); ok {
			types = append(types, env.EventType)
		}
	}
	return types
}
