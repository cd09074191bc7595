package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/gateway"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentFixture(t *testing.T) (*PaymentService, *fakePaymentStore, *fakeGateway, *recordingPublisher, *models.Order) {
	t.Helper()

	orders := newFakeOrderStore()
	payments := newFakePaymentStore(orders)
	gw := &fakeGateway{}
	publisher := &recordingPublisher{}
	svc := NewPaymentService(payments, gw, publisher)

	order := &models.Order{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Address:   "12 Analytical Way",
		City:      "London",
	}
	items := []models.OrderItem{{ProductID: 1, Price: dec("13.50"), Quantity: 1}}
	require.NoError(t, orders.CreateOrderWithItems(context.Background(), order, items))

	return svc, payments, gw, publisher, order
}

func initializedTransaction(t *testing.T, svc *PaymentService, order *models.Order) string {
	t.Helper()
	resp, err := svc.Initialize(context.Background(), order.ID, order.Email, dec("13.50"))
	require.NoError(t, err)
	return resp.Reference
}

func TestInitializeCreatesPendingTransaction(t *testing.T) {
	svc, payments, _, _, order := paymentFixture(t)

	resp, err := svc.Initialize(context.Background(), order.ID, "ada@example.com", dec("13.50"))
	require.NoError(t, err)

	assert.Equal(t, BuildReference(order.ID, order.CreatedAt), resp.Reference)
	assert.Contains(t, resp.AuthorizationURL, resp.Reference)

	txn := payments.txns[resp.Reference]
	require.NotNil(t, txn)
	assert.Equal(t, models.TxStatusPending, txn.Status)
	assert.Equal(t, order.ID, txn.OrderID)
	assert.True(t, txn.Amount.Equal(dec("13.50")))
}

func TestInitializeUnknownOrder(t *testing.T) {
	svc, _, _, _, _ := paymentFixture(t)

	_, err := svc.Initialize(context.Background(), 9999, "ada@example.com", dec("13.50"))
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}

func TestInitializePaidOrder(t *testing.T) {
	svc, payments, _, _, order := paymentFixture(t)
	payments.orders[order.ID].Paid = true

	_, err := svc.Initialize(context.Background(), order.ID, "ada@example.com", dec("13.50"))
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestInitializeGatewayFailureLeavesNothing(t *testing.T) {
	svc, payments, gw, _, order := paymentFixture(t)
	gw.initializeFn = func(string, decimal.Decimal, string) (*gateway.InitializeResult, error) {
		return nil, &gateway.Error{Operation: "initialize", Err: fmt.Errorf("timeout")}
	}

	_, err := svc.Initialize(context.Background(), order.ID, "ada@example.com", dec("13.50"))
	require.Error(t, err)

	var gwErr *gateway.Error
	assert.ErrorAs(t, err, &gwErr)
	// A timed-out initialize must not persist a transaction.
	assert.Empty(t, payments.txns)
}

func TestInitializeReusesExistingPendingTransaction(t *testing.T) {
	svc, payments, _, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	resp, err := svc.Initialize(context.Background(), order.ID, "ada@example.com", dec("13.50"))
	require.NoError(t, err)

	assert.Equal(t, ref, resp.Reference)
	assert.Len(t, payments.txns, 1)
}

func TestVerifyUnknownReference(t *testing.T) {
	svc, payments, _, _, _ := paymentFixture(t)

	_, err := svc.Verify(context.Background(), "ORD-404-0")
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
	assert.Empty(t, payments.processed)
}

func TestVerifySettledMarksOrderPaid(t *testing.T) {
	svc, payments, _, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	resp, err := svc.Verify(context.Background(), ref)
	require.NoError(t, err)

	assert.True(t, resp.Settled)
	assert.Equal(t, models.TxStatusSuccess, resp.Transaction.Status)
	assert.True(t, payments.orders[order.ID].Paid)
}

func TestVerifyUnsettledMutatesNothing(t *testing.T) {
	svc, payments, gw, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	gw.verifyFn = func(reference string) (*gateway.VerifyResult, error) {
		return &gateway.VerifyResult{Status: "abandoned", Reference: reference}, nil
	}

	resp, err := svc.Verify(context.Background(), ref)
	require.NoError(t, err)

	assert.False(t, resp.Settled)
	assert.Equal(t, models.TxStatusPending, payments.txns[ref].Status)
	assert.False(t, payments.orders[order.ID].Paid)
}

func TestVerifyGatewayTimeoutMutatesNothing(t *testing.T) {
	svc, payments, gw, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	gw.verifyFn = func(string) (*gateway.VerifyResult, error) {
		return nil, &gateway.Error{Operation: "verify", Err: fmt.Errorf("timeout")}
	}

	_, err := svc.Verify(context.Background(), ref)
	require.Error(t, err)

	// Unknown outcome: the charge may still have succeeded, so the
	// transaction must stay pending.
	assert.Equal(t, models.TxStatusPending, payments.txns[ref].Status)
	assert.False(t, payments.orders[order.ID].Paid)
}

func TestVerifyTerminalSkipsGateway(t *testing.T) {
	svc, _, gw, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	_, err := svc.Verify(context.Background(), ref)
	require.NoError(t, err)

	gw.verifyFn = func(string) (*gateway.VerifyResult, error) {
		t.Fatal("gateway must not be called for a terminal transaction")
		return nil, nil
	}

	resp, err := svc.Verify(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Settled)
}

func webhookBody(event, reference, status string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"data":{"reference":%q,"status":%q}}`, event, reference, status))
}

func TestWebhookChargeSuccess(t *testing.T) {
	svc, payments, _, publisher, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	err := svc.HandleWebhook(context.Background(), webhookBody("charge.success", ref, "success"), "sig")
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusSuccess, payments.txns[ref].Status)
	assert.True(t, payments.orders[order.ID].Paid)
	require.Len(t, publisher.paymentConfirmed, 1)
	assert.Equal(t, ref, publisher.paymentConfirmed[0].Reference)
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	svc, payments, _, publisher, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)
	body := webhookBody("charge.success", ref, "success")

	require.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))
	require.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))

	// Order stays paid, but the confirmation email goes out exactly once.
	assert.True(t, payments.orders[order.ID].Paid)
	assert.Len(t, publisher.paymentConfirmed, 1)
}

func TestWebhookChargeFailed(t *testing.T) {
	svc, payments, _, publisher, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	err := svc.HandleWebhook(context.Background(), webhookBody("charge.failed", ref, "failed"), "sig")
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusFailed, payments.txns[ref].Status)
	assert.False(t, payments.orders[order.ID].Paid)
	require.Len(t, publisher.paymentFailed, 1)

	// A late duplicate failure event does not re-notify.
	require.NoError(t, svc.HandleWebhook(context.Background(),
		webhookBody("charge.failed", ref, "failed"), "sig"))
	assert.Len(t, publisher.paymentFailed, 1)
}

func TestWebhookUnknownReference(t *testing.T) {
	svc, _, _, publisher, _ := paymentFixture(t)

	err := svc.HandleWebhook(context.Background(),
		webhookBody("charge.success", "ORD-404-0", "success"), "sig")
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
	assert.Empty(t, publisher.paymentConfirmed)
}

func TestWebhookBadSignature(t *testing.T) {
	svc, _, gw, publisher, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)
	gw.signature = "expected"

	err := svc.HandleWebhook(context.Background(), webhookBody("charge.success", ref, "success"), "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, publisher.paymentConfirmed)
}

func TestWebhookMalformedPayload(t *testing.T) {
	svc, _, _, _, _ := paymentFixture(t)

	err := svc.HandleWebhook(context.Background(), []byte("{not json"), "sig")
	assert.ErrorIs(t, err, ErrMalformedPayload)

	err = svc.HandleWebhook(context.Background(), []byte(`{"event":"charge.success","data":{}}`), "sig")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestWebhookUnhandledEvent(t *testing.T) {
	svc, _, _, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	err := svc.HandleWebhook(context.Background(), webhookBody("transfer.success", ref, "success"), "sig")
	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestRefundRequiresFailedState(t *testing.T) {
	svc, _, _, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	// Pending transactions are not refundable.
	_, err := svc.Refund(context.Background(), ref)
	assert.ErrorIs(t, err, ErrNotRefundable)

	require.NoError(t, svc.HandleWebhook(context.Background(),
		webhookBody("charge.failed", ref, "failed"), "sig"))

	txn, err := svc.Refund(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusRefunded, txn.Status)

	// Refunded is a sink.
	_, err = svc.Refund(context.Background(), ref)
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefundGatewayFailureMutatesNothing(t *testing.T) {
	svc, payments, gw, _, order := paymentFixture(t)
	ref := initializedTransaction(t, svc, order)

	require.NoError(t, svc.HandleWebhook(context.Background(),
		webhookBody("charge.failed", ref, "failed"), "sig"))

	gw.refundFn = func(string) (*gateway.RefundResult, error) {
		return nil, &gateway.Error{Operation: "refund", Err: fmt.Errorf("timeout")}
	}

	_, err := svc.Refund(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, models.TxStatusFailed, payments.txns[ref].Status)
}

func TestBuildReferenceDeterministic(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, BuildReference(42, at), BuildReference(42, at))
	assert.NotEqual(t, BuildReference(42, at), BuildReference(43, at))
}
