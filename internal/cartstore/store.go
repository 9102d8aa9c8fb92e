// Package cartstore holds the canonical cart of a storefront session and
// keeps it in durable client storage.
package cartstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

const storageTimeout = 2 * time.Second

// Guard decides whether gated mutations may commit.
type Guard interface {
	IsAuthenticated() bool
	RequireLogin()
}

type Store struct {
	mu      sync.Mutex
	storage localstore.Storage
	guard   Guard
	logger  *zap.Logger
	items   cart.Items

	subMu     sync.Mutex
	subs      map[int]func(cart.Items)
	nextSubID int
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New rehydrates the cart from storage before returning, so no reader ever
// sees an empty cart that is about to be replaced.
func New(ctx context.Context, storage localstore.Storage, guard Guard, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		guard:   guard,
		logger:  zap.NewNop(),
		subs:    make(map[int]func(cart.Items)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = s.load(ctx, localstore.KeyCart)
	return s
}

func (s *Store) load(ctx context.Context, key string) cart.Items {
	var items cart.Items
	err := localstore.LoadJSON(ctx, s.storage, key, &items)
	switch {
	case err == nil:
		return items.Normalize()
	case errors.Is(err, localstore.ErrNotFound):
	default:
		s.logger.Warn("Discarding unreadable cart data", zap.String("key", key), zap.Error(err))
	}
	return cart.Items{}
}

// AddItem merges item into the cart with a quantity contribution of 1.
// With requireAuth set and no active session the item is queued as pending,
// a login is requested and false is returned; the cart stays unchanged.
func (s *Store) AddItem(item cart.LineItem, requireAuth bool) bool {
	if item.ProductID == "" {
		s.logger.Warn("Ignoring line item without product id")
		return false
	}
	if requireAuth && s.guard != nil && !s.guard.IsAuthenticated() {
		s.queuePending(item)
		s.guard.RequireLogin()
		return false
	}
	s.mutate(func(items cart.Items) cart.Items {
		return items.Add(item, 1)
	})
	return true
}

// RemoveItem deletes the entry for id, if any.
func (s *Store) RemoveItem(id cart.ProductID) {
	s.mutate(func(items cart.Items) cart.Items {
		return items.Remove(id)
	})
}

// SetQuantity overwrites the quantity for id; zero or less removes it.
// Callers clamp to available stock beforehand.
func (s *Store) SetQuantity(id cart.ProductID, quantity int) {
	s.mutate(func(items cart.Items) cart.Items {
		return items.SetQuantity(id, quantity)
	})
}

// Clear empties the cart and erases its snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = cart.Items{}
	s.removeKey(localstore.KeyCart)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.publish(snapshot)
}

// Reset drops both the cart and the pending queue.
func (s *Store) Reset() {
	s.Clear()
	s.mu.Lock()
	s.removeKey(localstore.KeyPendingItems)
	s.mu.Unlock()
}

func (s *Store) Items() cart.Items {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Count()
}

func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Total()
}

// Subscribe registers fn for every committed change. The returned func
// unregisters it.
func (s *Store) Subscribe(fn func(cart.Items)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Pending returns items queued while logged out.
func (s *Store) Pending() cart.Items {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPending()
}

// DrainPending replays the pending queue into the cart through the
// non-gated path and deletes the queue. It does nothing while logged out or
// when the queue is empty.
func (s *Store) DrainPending() {
	if s.guard != nil && !s.guard.IsAuthenticated() {
		return
	}

	s.mu.Lock()
	pending := s.loadPending()
	if len(pending) == 0 {
		s.mu.Unlock()
		return
	}
	items := s.items
	for _, item := range pending {
		items = items.Add(item, item.Quantity)
	}
	s.items = items
	s.persist()
	s.removeKey(localstore.KeyPendingItems)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.logger.Info("Merged pending cart items", zap.Int("count", pending.Count()))
	s.publish(snapshot)
}

func (s *Store) queuePending(item cart.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Quantity = 1
	pending := append(s.loadPending(), item)

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := localstore.SaveJSON(ctx, s.storage, localstore.KeyPendingItems, pending); err != nil {
		s.logger.Error("Failed to queue pending cart item", zap.String("product_id", item.ProductID.String()), zap.Error(err))
	}
}

// loadPending reads the raw queue; entries are replayed one by one so
// duplicates are kept. Corrupt data is discarded. Caller holds s.mu.
func (s *Store) loadPending() cart.Items {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	var pending cart.Items
	err := localstore.LoadJSON(ctx, s.storage, localstore.KeyPendingItems, &pending)
	switch {
	case err == nil:
	case errors.Is(err, localstore.ErrNotFound):
		return cart.Items{}
	default:
		s.logger.Warn("Discarding unreadable pending cart items", zap.Error(err))
		s.removeKey(localstore.KeyPendingItems)
		return cart.Items{}
	}

	out := make(cart.Items, 0, len(pending))
	for _, item := range pending {
		if item.ProductID == "" {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		out = append(out, item)
	}
	return out
}

func (s *Store) mutate(fn func(cart.Items) cart.Items) {
	s.mu.Lock()
	s.items = fn(s.items)
	s.persist()
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.publish(snapshot)
}

// persist writes the full collection. In-memory state stays authoritative
// when the write fails. Caller holds s.mu.
func (s *Store) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := localstore.SaveJSON(ctx, s.storage, localstore.KeyCart, s.items); err != nil {
		s.logger.Error("Failed to persist cart", zap.Error(err))
	}
}

func (s *Store) removeKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := s.storage.Remove(ctx, key); err != nil {
		s.logger.Error("Failed to remove stored key", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) snapshot() cart.Items {
	out := make(cart.Items, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) publish(items cart.Items) {
	s.subMu.Lock()
	subs := make([]func(cart.Items), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(items)
	}
}
