// Package pricing computes cart and checkout totals. It is the only place
// the discount, shipping and tax rules live.
package pricing

import (
	"errors"
	"strings"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/shopspring/decimal"
)

const PromoSave10 = "SAVE10"

var ErrUnknownPromo = errors.New("invalid promo code")

var (
	discountRate          = decimal.RequireFromString("0.10")
	taxRate               = decimal.RequireFromString("0.08")
	flatShipping          = decimal.RequireFromString("9.99")
	freeShippingThreshold = decimal.NewFromInt(100)
)

// Breakdown is derived on every render and never persisted.
type Breakdown struct {
	Subtotal  float64 `json:"subtotal"`
	Discount  float64 `json:"discount"`
	Shipping  float64 `json:"shipping"`
	Tax       float64 `json:"tax"`
	Total     float64 `json:"total"`
	PromoCode string  `json:"promoCode,omitempty"`
}

// FreeShipping reports whether the order ships at no cost.
func (b Breakdown) FreeShipping() bool { return b.Shipping == 0 }

// ApplyPromo validates a user-entered code and returns its canonical form.
func ApplyPromo(code string) (string, error) {
	if canonical, ok := matchPromo(code); ok {
		return canonical, nil
	}
	return "", ErrUnknownPromo
}

func matchPromo(code string) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(code), PromoSave10) {
		return PromoSave10, true
	}
	return "", false
}

// Compute prices items with an optional promo code. Unknown codes give no
// discount.
func Compute(items cart.Items, promoCode string) Breakdown {
	subtotal := items.Sum()

	discount := decimal.Zero
	promo, ok := matchPromo(promoCode)
	if ok {
		discount = subtotal.Mul(discountRate).Round(2)
	}

	shipping := flatShipping
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Sub(discount).Mul(taxRate).Round(2)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	total := subtotal.Sub(discount).Add(shipping).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:  subtotal.InexactFloat64(),
		Discount:  discount.InexactFloat64(),
		Shipping:  shipping.InexactFloat64(),
		Tax:       tax.InexactFloat64(),
		Total:     total.InexactFloat64(),
		PromoCode: promo,
	}
}
