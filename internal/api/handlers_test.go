package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/store/mocks"
	"github.com/example/storefront/internal/ordersubmit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router http.Handler
	repo   *mocks.MockOrderRepository
	pub    *mocks.MockPublisher
	tokens *auth.TokenService
}

func newTestAPI() *testAPI {
	repo := mocks.NewMockOrderRepository()
	pub := mocks.NewMockPublisher()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	svc := order.NewService(repo, pub, nil)
	return &testAPI{
		router: NewRouter(NewHandlers(svc, nil), tokens, nil, time.Second),
		repo:   repo,
		pub:    pub,
		tokens: tokens,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, _, err := a.tokens.Issue("staff-1", "ops@example.com", role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func validOrder() order.PlaceOrder {
	return order.PlaceOrder{
		CustomerID:  "cust-1",
		OrderItems:  []order.OrderItem{{ProductID: "1", Quantity: 2, Price: 199.99}},
		TotalAmount: 431.98,
		Tax:         32,
		ShippingAddress: order.ShippingAddress{
			FirstName: "Ada", Email: "ada@example.com", City: "London",
		},
		PaymentMethod: order.PaymentCreditCard,
	}
}

func (a *testAPI) place(t *testing.T) order.Order {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/orders", validOrder(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var o order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func TestHealth(t *testing.T) {
	a := newTestAPI()

	rec := a.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// ============================================
// Create Order Tests
// ============================================

func TestCreateOrder_Success(t *testing.T) {
	a := newTestAPI()

	o := a.place(t)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, 399.98, o.OrderItems[0].Subtotal)
	assert.Equal(t, 1, a.repo.CreateCount())
	assert.Equal(t, []string{order.EventOrderPlaced}, a.pub.EventTypes())
}

func TestCreateOrder_BadRequests(t *testing.T) {
	a := newTestAPI()

	noItems := validOrder()
	noItems.OrderItems = nil
	noCustomer := validOrder()
	noCustomer.CustomerID = ""

	tests := []struct {
		name string
		body any
	}{
		{"no items", noItems},
		{"no customer", noCustomer},
		{"not json", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if s, ok := tt.body.(string); ok {
				req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(s))
				rec = httptest.NewRecorder()
				a.router.ServeHTTP(rec, req)
			} else {
				rec = a.do(t, http.MethodPost, "/api/orders", tt.body, nil)
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}
	assert.Zero(t, a.repo.CreateCount())
}

func TestCreateOrder_RepositoryFailure(t *testing.T) {
	a := newTestAPI()
	a.repo.CreateErr = assert.AnError

	rec := a.do(t, http.MethodPost, "/api/orders", validOrder(), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create order", errorMessage(t, rec))
}

func TestCreateOrder_IdempotencyHeader(t *testing.T) {
	a := newTestAPI()
	headers := map[string]string{"Idempotency-Key": "key-42"}

	first := a.do(t, http.MethodPost, "/api/orders", validOrder(), headers)
	second := a.do(t, http.MethodPost, "/api/orders", validOrder(), headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	var o1, o2 order.Order
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &o1))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &o2))
	assert.Equal(t, o1.ID, o2.ID)
	assert.Equal(t, 1, a.repo.CreateCount())
}

// ============================================
// Query Tests
// ============================================

func TestMyOrders(t *testing.T) {
	a := newTestAPI()
	placed := a.place(t)

	rec := a.do(t, http.MethodGet, "/api/orders/my-orders?customerId=cust-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, placed.ID, orders[0].ID)

	rec = a.do(t, http.MethodGet, "/api/orders/my-orders", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Customer ID is required", errorMessage(t, rec))
}

func TestGetOrder(t *testing.T) {
	a := newTestAPI()
	placed := a.place(t)

	rec := a.do(t, http.MethodGet, "/api/orders/"+placed.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/orders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", errorMessage(t, rec))
}

// ============================================
// Admin Tests
// ============================================

func TestListOrders_RequiresStaff(t *testing.T) {
	a := newTestAPI()
	a.place(t)

	rec := a.do(t, http.MethodGet, "/api/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/orders", nil, a.bearer(t, auth.RoleSupport))
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)
}

func TestUpdateStatus(t *testing.T) {
	a := newTestAPI()
	placed := a.place(t)
	path := "/api/orders/" + placed.ID + "/status"
	admin := a.bearer(t, auth.RoleAdmin)

	rec := a.do(t, http.MethodPatch, path, map[string]string{"status": "confirmed"}, a.bearer(t, auth.RoleSupport))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "confirmed"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "delivered"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "teleported"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/orders/missing/status", map[string]string{"status": "confirmed"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored, err := a.repo.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, stored.Status)
}

// ============================================
// Client Integration
// ============================================

func TestOrderClient_AgainstRouter(t *testing.T) {
	a := newTestAPI()
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	client := ordersubmit.NewClient(srv.URL, 2*time.Second)
	ctx := context.Background()

	first, err := client.CreateOrder(ctx, validOrder(), "retry-key")
	require.NoError(t, err)
	again, err := client.CreateOrder(ctx, validOrder(), "retry-key")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	history, err := client.ListCustomerOrders(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	bad := validOrder()
	bad.OrderItems = nil
	_, err = client.CreateOrder(ctx, bad, "")
	apiErr, ok := ordersubmit.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, order.ErrEmptyOrder.Error(), apiErr.Message)
}
