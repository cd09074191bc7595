package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types carried on the notification topic
const (
	EventTypeOrderCreated  = "ORDER_CREATED"
	EventTypePaymentOK     = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after a checkout commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Email       string          `json:"email"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// PaymentConfirmedEvent published when a transaction settles successfully
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentFailedEvent published when the gateway reports a failed charge
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
}
