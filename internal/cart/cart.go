package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is one cart line. Price is snapshotted when the product is first
// added and does not track later catalog price changes.
type Item struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// TotalPrice returns the line subtotal.
func (i Item) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Store holds transient cart state scoped to one session. Implementations
// are keyed by an explicit session ID passed into every operation; there
// is no ambient session object.
type Store interface {
	// Add inserts the product with the given price snapshot if absent,
	// then sets (override) or increments the quantity.
	Add(ctx context.Context, sessionID string, productID int64, price decimal.Decimal, quantity int, override bool) error
	// Remove deletes a line. Removing an absent product is a no-op.
	Remove(ctx context.Context, sessionID string, productID int64) error
	// Items returns the current lines, re-read from the underlying store.
	Items(ctx context.Context, sessionID string) ([]Item, error)
	// Clear erases all cart state for the session.
	Clear(ctx context.Context, sessionID string) error
	// SetDiscountCode stores a discount code alongside the cart.
	SetDiscountCode(ctx context.Context, sessionID, code string) error
	// DiscountCode returns the stored code, or "" if none.
	DiscountCode(ctx context.Context, sessionID string) (string, error)
}

// Total sums price * quantity over items. An empty cart totals zero.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// Discount maps a discount code to its fixed amount. Unknown codes carry
// no discount.
func Discount(code string) decimal.Decimal {
	switch code {
	case "SAVE10":
		return decimal.NewFromInt(10)
	default:
		return decimal.Zero
	}
}

// TotalAfterDiscount applies a fixed discount, clamped so the payable
// total never goes negative.
func TotalAfterDiscount(total, discount decimal.Decimal) decimal.Decimal {
	after := total.Sub(discount)
	if after.IsNegative() {
		return decimal.Zero
	}
	return after
}
