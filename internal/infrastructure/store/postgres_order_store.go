package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const orderSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id               VARCHAR(64) PRIMARY KEY,
	customer_id      VARCHAR(255) NOT NULL,
	order_date       TIMESTAMPTZ NOT NULL,
	status           VARCHAR(32) NOT NULL,
	total_amount     NUMERIC(12,2) NOT NULL,
	shipping_fee     NUMERIC(12,2) NOT NULL DEFAULT 0,
	tax              NUMERIC(12,2) NOT NULL DEFAULT 0,
	discount         NUMERIC(12,2) NOT NULL DEFAULT 0,
	shipping_address JSONB NOT NULL,
	payment_method   VARCHAR(32) NOT NULL,
	idempotency_key  VARCHAR(255) UNIQUE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders (customer_id, order_date DESC);
CREATE TABLE IF NOT EXISTS order_items (
	order_id   VARCHAR(64) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	position   INT NOT NULL,
	product_id VARCHAR(255) NOT NULL,
	quantity   INT NOT NULL,
	price      NUMERIC(12,2) NOT NULL,
	subtotal   NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (order_id, position)
);`

const orderColumns = `id, customer_id, order_date, status, total_amount, shipping_fee, tax, discount,
	shipping_address, payment_method, COALESCE(idempotency_key, ''), created_at, updated_at`

// PostgresOrderStore stores orders in PostgreSQL
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// ConnectPostgres opens and verifies a PostgreSQL connection pool
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the order tables if they do not exist
func (s *PostgresOrderStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, orderSchema); err != nil {
		return fmt.Errorf("create order schema: %w", err)
	}
	return nil
}

func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, order_date, status, total_amount, shipping_fee, tax, discount,
			shipping_address, payment_method, idempotency_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.CustomerID, o.OrderDate, string(o.Status), o.TotalAmount, o.ShippingFee, o.Tax, o.Discount,
		address, o.PaymentMethod, nullableKey(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.OrderItems {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, item.ProductID, item.Quantity, item.Price, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresOrderStore) Update(ctx context.Context, o *order.Order) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		o.ID, string(o.Status), o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o       order.Order
		status  string
		address []byte
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &status, &o.TotalAmount, &o.ShippingFee,
		&o.Tax, &o.Discount, &address, &o.PaymentMethod, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	return &o, nil
}

func (s *PostgresOrderStore) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, quantity, price, subtotal FROM order_items WHERE order_id = $1 ORDER BY position`,
		o.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.OrderItems = make([]order.OrderItem, 0)
	for rows.Next() {
		var item order.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return err
		}
		o.OrderItems = append(o.OrderItems, item)
	}
	return rows.Err()
}

func (s *PostgresOrderStore) getBy(ctx context.Context, column, value string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return o, nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.getBy(ctx, "id", id)
}

func (s *PostgresOrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return s.getBy(ctx, "idempotency_key", key)
}

func (s *PostgresOrderStore) list(ctx context.Context, where string, args ...any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY order_date DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orders {
		if err := s.loadItems(ctx, o); err != nil {
			return nil, fmt.Errorf("load order items: %w", err)
		}
	}
	return orders, nil
}

func (s *PostgresOrderStore) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	return s.list(ctx, "WHERE customer_id = $1", customerID)
}

func (s *PostgresOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	return s.list(ctx, "")
}
