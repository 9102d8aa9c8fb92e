package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct = errors.New("product id is required")
	ErrInvalidPrice   = errors.New("price must be a non-negative number")
)

// ProductID identifies a product. Older snapshots stored numeric ids, so
// both JSON numbers and strings are accepted; it is always written as a string.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string { return string(id) }

// Product is the catalog shape used to build line items.
type Product struct {
	ID            ProductID `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	Image         string    `json:"image"`
}

// LineItem is one product and quantity pairing in a cart.
type LineItem struct {
	ProductID ProductID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"price"`
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
	InStock   bool      `json:"inStock"`
}

// Subtotal returns unit price times quantity, rounded to cents.
func (li LineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(li.UnitPrice).Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
}

// FromProduct maps catalog data to a line item with quantity 1.
func FromProduct(p Product) (LineItem, error) {
	id := ProductID(strings.TrimSpace(string(p.ID)))
	if id == "" {
		return LineItem{}, ErrInvalidProduct
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return LineItem{}, fmt.Errorf("%w: product %s", ErrInvalidPrice, id)
	}
	return LineItem{
		ProductID: id,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Quantity:  1,
		InStock:   p.StockQuantity > 0,
	}, nil
}

// ClampQuantity bounds a requested quantity to [1, stock]. A non-positive
// stock leaves the request unbounded above.
func ClampQuantity(requested, stock int) int {
	if requested < 1 {
		requested = 1
	}
	if stock > 0 && requested > stock {
		return stock
	}
	return requested
}

// Items is an ordered line-item collection keyed by ProductID.
// Every method returns a new slice and leaves the receiver untouched.
type Items []LineItem

func (items Items) index(id ProductID) int {
	for i, item := range items {
		if item.ProductID == id {
			return i
		}
	}
	return -1
}

// Find returns the entry for id.
func (items Items) Find(id ProductID) (LineItem, bool) {
	if i := items.index(id); i >= 0 {
		return items[i], true
	}
	return LineItem{}, false
}

// Add increments the existing entry by qty or appends item with quantity qty.
func (items Items) Add(item LineItem, qty int) Items {
	if qty < 1 {
		return items.clone()
	}
	out := items.clone()
	if i := out.index(item.ProductID); i >= 0 {
		out[i].Quantity += qty
		return out
	}
	item.Quantity = qty
	return append(out, item)
}

// Remove drops the entry for id; absent ids are ignored.
func (items Items) Remove(id ProductID) Items {
	out := make(Items, 0, len(items))
	for _, item := range items {
		if item.ProductID != id {
			out = append(out, item)
		}
	}
	return out
}

// SetQuantity overwrites the quantity for id. Zero or less removes the entry.
func (items Items) SetQuantity(id ProductID, qty int) Items {
	if qty <= 0 {
		return items.Remove(id)
	}
	out := items.clone()
	if i := out.index(id); i >= 0 {
		out[i].Quantity = qty
	}
	return out
}

// Count is the sum of quantities, not the number of entries.
func (items Items) Count() int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Total is Σ(unitPrice × quantity) rounded to cents.
func (items Items) Total() float64 {
	return items.Sum().InexactFloat64()
}

// Sum is Total as a decimal.
func (items Items) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Normalize merges duplicate ids and drops entries without a positive quantity.
func (items Items) Normalize() Items {
	out := make(Items, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		out = out.Add(item, item.Quantity)
	}
	return out
}

func (items Items) clone() Items {
	out := make(Items, len(items))
	copy(out, items)
	return out
}
