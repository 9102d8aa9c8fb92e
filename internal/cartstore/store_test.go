package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/infrastructure/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuard struct {
	authenticated bool
	loginRequests int
}

func (g *fakeGuard) IsAuthenticated() bool { return g.authenticated }
func (g *fakeGuard) RequireLogin()         { g.loginRequests++ }

// failingStorage rejects every write.
type failingStorage struct {
	*localstore.Memory
}

func (failingStorage) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T, authenticated bool) (*Store, *localstore.Memory, *fakeGuard) {
	t.Helper()
	storage := localstore.NewMemory()
	guard := &fakeGuard{authenticated: authenticated}
	return New(context.Background(), storage, guard), storage, guard
}

func item(id string, price float64) cart.LineItem {
	return cart.LineItem{ProductID: cart.ProductID(id), Name: "Item " + id, UnitPrice: price, Quantity: 1, InStock: true}
}

func storedCart(t *testing.T, storage localstore.Storage) cart.Items {
	t.Helper()
	var items cart.Items
	require.NoError(t, localstore.LoadJSON(context.Background(), storage, localstore.KeyCart, &items))
	return items
}

// ============================================
// AddItem Tests
// ============================================

func TestStore_AddItem_MergesRepeatedAdds(t *testing.T) {
	store, _, _ := newTestStore(t, true)

	assert.True(t, store.AddItem(item("1", 199.99), true))
	assert.True(t, store.AddItem(item("1", 199.99), true))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, 399.98, store.Total())
}

func TestStore_AddItem_QuantityEqualsSuccessfulAdds(t *testing.T) {
	store, _, _ := newTestStore(t, true)

	for i := 0; i < 7; i++ {
		// callers may pass a product with a larger quantity; each add counts once
		li := item("p", 3)
		li.Quantity = 5
		require.True(t, store.AddItem(li, i%2 == 0))
	}

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}

func TestStore_AddItem_WithoutAuthCheck(t *testing.T) {
	store, _, guard := newTestStore(t, false)

	assert.True(t, store.AddItem(item("1", 10), false))

	assert.Equal(t, 1, store.Count())
	assert.Zero(t, guard.loginRequests)
}

func TestStore_AddItem_UnauthenticatedQueuesPending(t *testing.T) {
	store, storage, guard := newTestStore(t, false)

	ok := store.AddItem(item("1", 10), true)

	assert.False(t, ok)
	assert.Zero(t, store.Count())
	assert.Empty(t, store.Items())
	assert.Len(t, store.Pending(), 1)
	assert.Equal(t, 1, guard.loginRequests)
	assert.False(t, localstore.Exists(context.Background(), storage, localstore.KeyCart))
}

func TestStore_AddItem_EmptyProductID(t *testing.T) {
	store, _, _ := newTestStore(t, true)

	assert.False(t, store.AddItem(cart.LineItem{Name: "nameless"}, true))
	assert.Zero(t, store.Count())
}

// ============================================
// Pending Queue Tests
// ============================================

func TestStore_PendingIsolationAndDrain(t *testing.T) {
	store, storage, guard := newTestStore(t, true)
	store.AddItem(item("existing", 5), true)
	before := store.Count()

	guard.authenticated = false
	for i := 0; i < 3; i++ {
		store.AddItem(item("a", 1), true)
	}
	store.AddItem(item("b", 2), true)
	assert.Equal(t, before, store.Count())

	// draining while logged out does nothing
	store.DrainPending()
	assert.Equal(t, before, store.Count())

	guard.authenticated = true
	store.DrainPending()

	assert.Equal(t, before+4, store.Count())
	a, found := store.Items().Find("a")
	require.True(t, found)
	assert.Equal(t, 3, a.Quantity)
	assert.Empty(t, store.Pending())
	assert.False(t, localstore.Exists(context.Background(), storage, localstore.KeyPendingItems))
}

func TestStore_DrainPending_Idempotent(t *testing.T) {
	store, _, guard := newTestStore(t, false)
	store.AddItem(item("a", 1), true)
	guard.authenticated = true

	store.DrainPending()
	store.DrainPending()

	assert.Equal(t, 1, store.Count())
}

func TestStore_DrainPending_CorruptQueue(t *testing.T) {
	store, storage, _ := newTestStore(t, true)
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, localstore.KeyPendingItems, []byte("{oops")))

	store.DrainPending()

	assert.Zero(t, store.Count())
	assert.False(t, localstore.Exists(ctx, storage, localstore.KeyPendingItems))
}

func TestStore_DrainPending_LegacyQueue(t *testing.T) {
	storage := localstore.NewMemory()
	ctx := context.Background()
	raw := `[{"id":7,"name":"Mug","price":12.5,"image":"","quantity":1},{"id":7,"name":"Mug","price":12.5,"image":"","quantity":1}]`
	require.NoError(t, storage.Set(ctx, localstore.KeyPendingItems, []byte(raw)))

	store := New(ctx, storage, &fakeGuard{authenticated: true})
	store.DrainPending()

	mug, found := store.Items().Find("7")
	require.True(t, found)
	assert.Equal(t, 2, mug.Quantity)
	assert.Equal(t, 25.0, store.Total())
}

// ============================================
// Quantity / Remove / Clear Tests
// ============================================

func TestStore_SetQuantity_ZeroRemoves(t *testing.T) {
	store, storage, _ := newTestStore(t, true)
	store.AddItem(item("1", 10), true)

	store.SetQuantity("1", 0)

	_, found := store.Items().Find("1")
	assert.False(t, found)
	assert.Empty(t, storedCart(t, storage))
}

func TestStore_SetQuantity_NegativeRemoves(t *testing.T) {
	store, _, _ := newTestStore(t, true)
	store.AddItem(item("1", 10), true)

	store.SetQuantity("1", -3)

	assert.Zero(t, store.Count())
}

func TestStore_SetQuantity_Overwrites(t *testing.T) {
	store, _, _ := newTestStore(t, true)
	store.AddItem(item("1", 2.5), true)

	store.SetQuantity("1", 40)

	assert.Equal(t, 40, store.Count())
	assert.Equal(t, 100.0, store.Total())
}

func TestStore_RemoveItem_AbsentIsNoop(t *testing.T) {
	store, _, _ := newTestStore(t, true)
	store.AddItem(item("1", 10), true)

	store.RemoveItem("missing")

	assert.Equal(t, 1, store.Count())
}

func TestStore_Clear(t *testing.T) {
	store, storage, _ := newTestStore(t, true)
	store.AddItem(item("1", 10), true)

	store.Clear()

	assert.Zero(t, store.Count())
	assert.False(t, localstore.Exists(context.Background(), storage, localstore.KeyCart))
}

func TestStore_Reset_DropsPending(t *testing.T) {
	store, storage, guard := newTestStore(t, true)
	store.AddItem(item("1", 10), true)
	guard.authenticated = false
	store.AddItem(item("2", 10), true)

	store.Reset()

	ctx := context.Background()
	assert.Zero(t, store.Count())
	assert.False(t, localstore.Exists(ctx, storage, localstore.KeyCart))
	assert.False(t, localstore.Exists(ctx, storage, localstore.KeyPendingItems))
}

// ============================================
// Persistence Tests
// ============================================

func TestStore_EveryMutationIsPersisted(t *testing.T) {
	store, storage, _ := newTestStore(t, true)

	store.AddItem(item("1", 10), true)
	assert.Equal(t, store.Items(), storedCart(t, storage))

	store.AddItem(item("2", 3), true)
	store.SetQuantity("2", 5)
	assert.Equal(t, store.Items(), storedCart(t, storage))

	store.RemoveItem("1")
	assert.Equal(t, store.Items(), storedCart(t, storage))
}

func TestStore_RoundTrip(t *testing.T) {
	store, storage, _ := newTestStore(t, true)
	store.AddItem(item("1", 10), true)
	store.AddItem(item("2", 3.33), true)
	store.SetQuantity("2", 4)

	rehydrated := New(context.Background(), storage, &fakeGuard{authenticated: true})

	assert.Equal(t, store.Items(), rehydrated.Items())
	assert.Equal(t, store.Count(), rehydrated.Count())
	assert.Equal(t, store.Total(), rehydrated.Total())
}

func TestStore_CorruptSnapshotStartsEmpty(t *testing.T) {
	storage := localstore.NewMemory()
	require.NoError(t, storage.Set(context.Background(), localstore.KeyCart, []byte("not-json")))

	store := New(context.Background(), storage, &fakeGuard{})

	assert.Empty(t, store.Items())
	assert.True(t, store.AddItem(item("1", 1), false))
}

func TestStore_RehydrateNormalizesDuplicates(t *testing.T) {
	storage := localstore.NewMemory()
	data, err := json.Marshal(cart.Items{item("1", 1), item("1", 1), {ProductID: "2", Quantity: 0}})
	require.NoError(t, err)
	require.NoError(t, storage.Set(context.Background(), localstore.KeyCart, data))

	store := New(context.Background(), storage, &fakeGuard{})

	require.Len(t, store.Items(), 1)
	assert.Equal(t, 2, store.Count())
}

func TestStore_WriteFailureKeepsMemoryState(t *testing.T) {
	storage := failingStorage{localstore.NewMemory()}
	store := New(context.Background(), storage, &fakeGuard{authenticated: true})

	assert.True(t, store.AddItem(item("1", 10), true))

	assert.Equal(t, 1, store.Count())
}

// ============================================
// Subscribe Tests
// ============================================

func TestStore_Subscribe(t *testing.T) {
	store, _, _ := newTestStore(t, true)
	var seen []int
	unsubscribe := store.Subscribe(func(items cart.Items) {
		seen = append(seen, items.Count())
	})

	store.AddItem(item("1", 1), true)
	store.AddItem(item("1", 1), true)
	store.Clear()
	unsubscribe()
	store.AddItem(item("1", 1), true)

	assert.Equal(t, []int{1, 2, 0}, seen)
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	store, _, _ := newTestStore(t, true)
	store.AddItem(item("1", 1), true)

	items := store.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, store.Count())
}
