package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/gateway"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"
	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentStore is the durable side of payment reconciliation
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	GetTransactionByOrderID(ctx context.Context, orderID int64) (*models.Transaction, error)
	TransitionTransaction(ctx context.Context, reference, to string) (*models.Transaction, bool, error)
	ApplyTransactionEvent(ctx context.Context, eventID, eventType, reference, to string) (*models.Transaction, bool, error)
}

// PaymentGateway is the outbound payment provider API
type PaymentGateway interface {
	Initialize(ctx context.Context, email string, amount decimal.Decimal, reference string) (*gateway.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error)
	Refund(ctx context.Context, reference string) (*gateway.RefundResult, error)
	VerifySignature(body []byte, signature string) bool
}

// PaymentService drives the transaction state machine: initialize and
// verify on the synchronous pull path, webhook events on the asynchronous
// push path, refunds on explicit request.
type PaymentService struct {
	store     PaymentStore
	gateway   PaymentGateway
	publisher Publisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, gw PaymentGateway, publisher Publisher) *PaymentService {
	return &PaymentService{
		store:     store,
		gateway:   gw,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// BuildReference derives the gateway reference deterministically from the
// order identity, so re-initializing the same order produces the same
// reference and the gateway can deduplicate on its side.
func BuildReference(orderID int64, createdAt time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", orderID, createdAt.Unix())
}

// InitializeResponse carries the gateway redirect for the customer
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// Initialize starts a payment for an unpaid order. The gateway is called
// first; a Transaction row is persisted only on gateway-reported success,
// so a timed-out or declined initialize leaves nothing behind.
func (ps *PaymentService) Initialize(ctx context.Context, orderID int64, email string, amount decimal.Decimal) (*InitializeResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initialize")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Paid {
		return nil, fmt.Errorf("%w: %d", ErrOrderAlreadyPaid, orderID)
	}

	reference := BuildReference(order.ID, order.CreatedAt)

	existing, err := ps.store.GetTransactionByOrderID(ctx, orderID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.TxStatusSuccess {
			return nil, fmt.Errorf("%w: %d", ErrOrderAlreadyPaid, orderID)
		}
		reference = existing.Reference
	}

	start := time.Now()
	result, err := ps.gateway.Initialize(ctx, email, amount, reference)
	util.GatewayRequestLatency.WithLabelValues("initialize").Observe(time.Since(start).Seconds())
	if err != nil {
		ps.logger.Warn("Gateway initialize failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return nil, err
	}

	if existing == nil {
		txn := &models.Transaction{
			OrderID:   order.ID,
			Email:     email,
			Amount:    amount,
			Reference: result.Reference,
			Status:    models.TxStatusPending,
		}
		if err := ps.store.CreateTransaction(ctx, txn); err != nil {
			return nil, fmt.Errorf("failed to create transaction: %w", err)
		}
	}

	util.PaymentsInitializedTotal.Inc()
	ps.logger.Info("Payment initialized",
		zap.Int64("order_id", order.ID),
		zap.String("reference", result.Reference))

	return &InitializeResponse{
		AuthorizationURL: result.AuthorizationURL,
		Reference:        result.Reference,
	}, nil
}

// VerifyResponse reports the transaction state after a verify call
type VerifyResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Settled     bool                `json:"settled"`
}

// Verify pulls the settled state of a charge from the gateway. A settled
// charge moves the transaction to success and marks the order paid; an
// unsettled or unknown result mutates nothing. Terminal transactions are
// answered locally without a gateway round trip.
func (ps *PaymentService) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	txn, err := ps.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if models.TxStatusTerminal(txn.Status) {
		return &VerifyResponse{
			Transaction: txn,
			Settled:     txn.Status == models.TxStatusSuccess,
		}, nil
	}

	start := time.Now()
	result, err := ps.gateway.Verify(ctx, reference)
	util.GatewayRequestLatency.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	if err != nil {
		// Timeout or gateway failure: the charge state is unknown, so
		// report failure without touching the transaction.
		return nil, err
	}

	if !result.Settled() {
		return &VerifyResponse{Transaction: txn, Settled: false}, nil
	}

	txn, applied, err := ps.store.TransitionTransaction(ctx, reference, models.TxStatusSuccess)
	if err != nil {
		return nil, err
	}
	if applied {
		util.PaymentsConfirmedTotal.Inc()
		ps.logger.Info("Payment verified",
			zap.String("reference", reference),
			zap.Int64("order_id", txn.OrderID))
	}

	return &VerifyResponse{Transaction: txn, Settled: true}, nil
}

// webhookPayload is the gateway's event envelope
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// HandleWebhook applies a gateway-signed event. Delivery is at-least-once:
// the transition and the processed-event record commit atomically, and the
// notification email is published only when this delivery actually applied
// the transition, so duplicates never repeat a side effect.
func (ps *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if !ps.gateway.VerifySignature(body, signature) {
		util.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		return ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Data.Reference == "" {
		util.WebhookEventsTotal.WithLabelValues(payload.Event, "malformed").Inc()
		return fmt.Errorf("%w: missing reference", ErrMalformedPayload)
	}

	// The gateway sends no event ID, so the event type plus reference
	// stands in as the idempotency key: a redelivery maps to the same key.
	eventID := fmt.Sprintf("%s:%s", payload.Event, payload.Data.Reference)

	switch {
	case payload.Event == "charge.success" && payload.Data.Status == "success":
		txn, applied, err := ps.store.ApplyTransactionEvent(ctx, eventID, payload.Event,
			payload.Data.Reference, models.TxStatusSuccess)
		if err != nil {
			util.WebhookEventsTotal.WithLabelValues(payload.Event, "error").Inc()
			return err
		}
		if !applied {
			util.WebhookEventsTotal.WithLabelValues(payload.Event, "duplicate").Inc()
			return nil
		}

		util.WebhookEventsTotal.WithLabelValues(payload.Event, "applied").Inc()
		util.PaymentsConfirmedTotal.Inc()
		ps.logger.Info("Payment confirmed via webhook",
			zap.String("reference", txn.Reference),
			zap.Int64("order_id", txn.OrderID))

		ps.publishConfirmed(ctx, txn)
		return nil

	case payload.Event == "charge.failed":
		txn, applied, err := ps.store.ApplyTransactionEvent(ctx, eventID, payload.Event,
			payload.Data.Reference, models.TxStatusFailed)
		if err != nil {
			util.WebhookEventsTotal.WithLabelValues(payload.Event, "error").Inc()
			return err
		}
		if !applied {
			util.WebhookEventsTotal.WithLabelValues(payload.Event, "duplicate").Inc()
			return nil
		}

		util.WebhookEventsTotal.WithLabelValues(payload.Event, "applied").Inc()
		util.PaymentsFailedTotal.Inc()
		ps.logger.Warn("Payment failed via webhook",
			zap.String("reference", txn.Reference),
			zap.Int64("order_id", txn.OrderID))

		ps.publishFailed(ctx, txn)
		return nil

	default:
		util.WebhookEventsTotal.WithLabelValues(payload.Event, "unhandled").Inc()
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, payload.Event)
	}
}

func (ps *PaymentService) publishConfirmed(ctx context.Context, txn *models.Transaction) {
	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentOK,
			Timestamp: time.Now(),
		},
		OrderID:   txn.OrderID,
		Reference: txn.Reference,
		Email:     txn.Email,
		Amount:    txn.Amount,
	}
	if err := ps.publisher.PublishPaymentConfirmed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(err))
	}
}

func (ps *PaymentService) publishFailed(ctx context.Context, txn *models.Transaction) {
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID:   txn.OrderID,
		Reference: txn.Reference,
		Email:     txn.Email,
		Amount:    txn.Amount,
	}
	if err := ps.publisher.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

// Refund refunds a transaction through the gateway and moves it to
// refunded. Only failed transactions are eligible.
func (ps *PaymentService) Refund(ctx context.Context, reference string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	txn, err := ps.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TxStatusFailed {
		return nil, fmt.Errorf("%w: status %s", ErrNotRefundable, txn.Status)
	}

	start := time.Now()
	_, err = ps.gateway.Refund(ctx, reference)
	util.GatewayRequestLatency.WithLabelValues("refund").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	txn, _, err = ps.store.TransitionTransaction(ctx, reference, models.TxStatusRefunded)
	if err != nil {
		return nil, err
	}

	ps.logger.Info("Transaction refunded", zap.String("reference", reference))
	return txn, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrTransactionNotFound) ||
		errors.Is(err, store.ErrOrderNotFound) ||
		errors.Is(err, store.ErrProductNotFound)
}
