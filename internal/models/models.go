package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the catalog
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	CategoryID  *int64          `db:"category_id" json:"category_id,omitempty"`
	Name        string          `db:"name" json:"name"`
	Slug        string          `db:"slug" json:"slug"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Available   bool            `db:"available" json:"available"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order created at checkout
type Order struct {
	ID          int64           `db:"id" json:"id"`
	OrderNumber string          `db:"order_number" json:"order_number"`
	FirstName   string          `db:"first_name" json:"first_name"`
	LastName    string          `db:"last_name" json:"last_name"`
	Email       string          `db:"email" json:"email"`
	Address     string          `db:"address" json:"address"`
	City        string          `db:"city" json:"city"`
	Paid        bool            `db:"paid" json:"paid"`
	Status      string          `db:"status" json:"status"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one line of an order. Price is snapshotted from the
// cart at checkout time and never tracks the live catalog price.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// Cost returns the line subtotal.
func (i OrderItem) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction represents a payment attempt against an order, one-to-one
// with the order it pays for. Reference is immutable once set.
type Transaction struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	Email     string          `db:"email" json:"email"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Reference string          `db:"reference" json:"reference"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Transaction statuses
const (
	TxStatusPending  = "pending"
	TxStatusSuccess  = "success"
	TxStatusFailed   = "failed"
	TxStatusRefunded = "refunded"
)

// TxStatusTerminal reports whether no further transition may leave status.
// success and refunded are sinks; failed may still move to refunded.
func TxStatusTerminal(status string) bool {
	return status == TxStatusSuccess || status == TxStatusRefunded
}

// TxCanTransition reports whether the payment state machine allows
// from -> to. Allowed: pending->success, pending->failed, failed->refunded.
func TxCanTransition(from, to string) bool {
	switch from {
	case TxStatusPending:
		return to == TxStatusSuccess || to == TxStatusFailed
	case TxStatusFailed:
		return to == TxStatusRefunded
	default:
		return false
	}
}

// ProcessedEvent records a webhook event that has already been applied,
// so at-least-once redeliveries do not repeat side effects.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
