// Package ordersubmit sends checkout orders to the order endpoint and keeps a
// local mirror of the orders placed from this client.
package ordersubmit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/go-resty/resty/v2"
)

const (
	ordersPath        = "/api/orders"
	myOrdersPath      = "/api/orders/my-orders"
	IdempotencyHeader = "Idempotency-Key"
)

// APIError is a non-2xx answer from the order endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order endpoint returned %d: %s", e.StatusCode, e.Message)
}

// IsAPIError reports whether err carries an endpoint rejection.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Client talks to the order HTTP endpoint.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

// CreateOrder posts a new order. The idempotency key is sent as a header and
// in the body so a retried request resolves to the same order.
func (c *Client) CreateOrder(ctx context.Context, req order.PlaceOrder, idempotencyKey string) (*order.Order, error) {
	if idempotencyKey != "" {
		req.IdempotencyKey = idempotencyKey
	}

	r := c.http.R().SetContext(ctx).SetBody(req)
	if idempotencyKey != "" {
		r.SetHeader(IdempotencyHeader, idempotencyKey)
	}

	resp, err := r.Post(ordersPath)
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var created order.Order
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}
	return &created, nil
}

// ListCustomerOrders fetches the server-side history of one customer.
func (c *Client) ListCustomerOrders(ctx context.Context, customerID string) ([]order.Order, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("customerId", customerID).
		Get(myOrdersPath)
	if err != nil {
		return nil, fmt.Errorf("list orders request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var orders []order.Order
	if err := json.Unmarshal(resp.Body(), &orders); err != nil {
		return nil, fmt.Errorf("failed to parse orders response: %w", err)
	}
	return orders, nil
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode()}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Details
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}
