// Package localstore is the durable client storage behind a storefront
// session: a small key/value store that survives restarts.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys. Their names and JSON shapes must stay stable for
// existing profiles.
const (
	KeyCart         = "cart"
	KeyPendingItems = "pendingCartItems"
	KeySession      = "userAuth"
	KeyOrders       = "userOrders"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrCorrupt  = errors.New("stored value is not valid JSON")
)

// Storage is a synchronous key/value store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// LoadJSON decodes the value at key into v.
func LoadJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// SaveJSON encodes v and stores it at key.
func SaveJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Exists reports whether key holds a value. Read errors count as absent.
func Exists(ctx context.Context, s Storage, key string) bool {
	_, err := s.Get(ctx, key)
	return err == nil
}
