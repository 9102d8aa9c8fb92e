package store

import (
	"github.com/example/storefront/internal/domain/order"
)

// ErrDuplicateOrder is returned when an order id or idempotency key already exists.
var ErrDuplicateOrder = order.ErrDuplicateOrder

var (
	_ order.Repository = (*MemoryOrderStore)(nil)
	_ order.Repository = (*MongoOrderStore)(nil)
	_ order.Repository = (*PostgresOrderStore)(nil)
	_ order.Repository = (*DynamoOrderStore)(nil)
)
