package order

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

const PaymentCreditCard = "credit_card"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrDuplicateOrder  = errors.New("duplicate order")
	ErrEmptyOrder      = errors.New("order must have at least one item")
	ErrMissingCustomer = errors.New("customer id is required")
	ErrInvalidItem     = errors.New("order item requires product id, positive quantity and non-negative price")
	ErrInvalidStatus   = errors.New("invalid order status transition")
	ErrUnknownStatus   = errors.New("unknown order status")
	ErrOrderShipped    = errors.New("cannot cancel shipped order")
	ErrOrderDelivered  = errors.New("order is already delivered")
	ErrOrderCancelled  = errors.New("order is already cancelled")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

type OrderItem struct {
	ProductID string  `json:"productId" bson:"product_id"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Price     float64 `json:"price" bson:"price"`
	Subtotal  float64 `json:"subtotal" bson:"subtotal"`
}

type ShippingAddress struct {
	FirstName string `json:"firstName" bson:"first_name"`
	LastName  string `json:"lastName" bson:"last_name"`
	Email     string `json:"email" bson:"email"`
	Phone     string `json:"phone" bson:"phone"`
	Address   string `json:"address" bson:"address"`
	City      string `json:"city" bson:"city"`
	State     string `json:"state" bson:"state"`
	ZipCode   string `json:"zipCode" bson:"zip_code"`
	Country   string `json:"country" bson:"country"`
}

type Order struct {
	ID              string          `json:"id" bson:"id"`
	CustomerID      string          `json:"customerId" bson:"customer_id"`
	OrderDate       time.Time       `json:"orderDate" bson:"order_date"`
	Status          Status          `json:"status" bson:"status"`
	TotalAmount     float64         `json:"totalAmount" bson:"total_amount"`
	ShippingFee     float64         `json:"shippingFee" bson:"shipping_fee"`
	Tax             float64         `json:"tax" bson:"tax"`
	Discount        float64         `json:"discount" bson:"discount"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shipping_address"`
	OrderItems      []OrderItem     `json:"orderItems" bson:"order_items"`
	PaymentMethod   string          `json:"paymentMethod" bson:"payment_method"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty" bson:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updated_at"`
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	return slices.Contains(validTransitions[o.Status], target)
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered:
		return ErrOrderDelivered
	case o.Status == StatusShipped && target == StatusCancelled:
		return ErrOrderShipped
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// ItemsTotal sums item subtotals.
func (o *Order) ItemsTotal() float64 {
	var total float64
	for _, item := range o.OrderItems {
		total += item.Subtotal
	}
	return total
}
