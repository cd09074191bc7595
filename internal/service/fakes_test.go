package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/cart"
	"github.com/ericogbekene/Bakery-projectBE/internal/gateway"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memCartStore is an in-memory cart.Store for service tests
type memCartStore struct {
	carts    map[string]map[int64]cart.Item
	discount map[string]string
}

func newMemCartStore() *memCartStore {
	return &memCartStore{
		carts:    make(map[string]map[int64]cart.Item),
		discount: make(map[string]string),
	}
}

func (m *memCartStore) Add(_ context.Context, sessionID string, productID int64, price decimal.Decimal, quantity int, override bool) error {
	c := m.carts[sessionID]
	if c == nil {
		c = make(map[int64]cart.Item)
		m.carts[sessionID] = c
	}
	item, ok := c[productID]
	if !ok {
		item = cart.Item{ProductID: productID, Price: price}
	}
	if override {
		item.Quantity = quantity
	} else {
		item.Quantity += quantity
	}
	c[productID] = item
	return nil
}

func (m *memCartStore) Remove(_ context.Context, sessionID string, productID int64) error {
	delete(m.carts[sessionID], productID)
	return nil
}

func (m *memCartStore) Items(_ context.Context, sessionID string) ([]cart.Item, error) {
	items := make([]cart.Item, 0, len(m.carts[sessionID]))
	for _, item := range m.carts[sessionID] {
		items = append(items, item)
	}
	return items, nil
}

func (m *memCartStore) Clear(_ context.Context, sessionID string) error {
	delete(m.carts, sessionID)
	delete(m.discount, sessionID)
	return nil
}

func (m *memCartStore) SetDiscountCode(_ context.Context, sessionID, code string) error {
	m.discount[sessionID] = code
	return nil
}

func (m *memCartStore) DiscountCode(_ context.Context, sessionID string) (string, error) {
	return m.discount[sessionID], nil
}

// fakeCatalog serves products from a map
type fakeCatalog struct {
	products map[int64]models.Product
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrProductNotFound, id)
	}
	return &p, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeOrderStore persists orders in memory, mimicking the real store's
// order-number allocation and total recomputation.
type fakeOrderStore struct {
	nextID int64
	orders map[int64]*models.Order
	items  map[int64][]models.OrderItem
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
}

func (f *fakeOrderStore) CreateOrderWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	day := time.Now().Format("20060102")
	var last string
	for _, o := range f.orders {
		if len(o.OrderNumber) > 8 && o.OrderNumber[:8] == day && o.OrderNumber > last {
			last = o.OrderNumber
		}
	}

	f.nextID++
	order.ID = f.nextID
	order.OrderNumber = store.NextOrderNumber(day, last)
	order.CreatedAt = time.Now()

	total := decimal.Zero
	for i := range items {
		items[i].OrderID = order.ID
		items[i].ID = int64(i + 1)
		total = total.Add(items[i].Cost())
	}
	order.TotalCost = total

	saved := *order
	f.orders[order.ID] = &saved
	f.items[order.ID] = items
	return nil
}

func (f *fakeOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrOrderNotFound, id)
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

// recordingPublisher captures published notification events
type recordingPublisher struct {
	orderCreated     []*models.OrderCreatedEvent
	paymentConfirmed []*models.PaymentConfirmedEvent
	paymentFailed    []*models.PaymentFailedEvent
}

func (r *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	r.orderCreated = append(r.orderCreated, e)
	return nil
}

func (r *recordingPublisher) PublishPaymentConfirmed(_ context.Context, e *models.PaymentConfirmedEvent) error {
	r.paymentConfirmed = append(r.paymentConfirmed, e)
	return nil
}

func (r *recordingPublisher) PublishPaymentFailed(_ context.Context, e *models.PaymentFailedEvent) error {
	r.paymentFailed = append(r.paymentFailed, e)
	return nil
}

// fakePaymentStore mirrors the real store's transition semantics: the
// state machine guard, order paid flag, and processed-event tracking.
type fakePaymentStore struct {
	*fakeOrderStore
	txns      map[string]*models.Transaction
	processed map[string]bool
}

func newFakePaymentStore(orders *fakeOrderStore) *fakePaymentStore {
	return &fakePaymentStore{
		fakeOrderStore: orders,
		txns:           make(map[string]*models.Transaction),
		processed:      make(map[string]bool),
	}
}

func (f *fakePaymentStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	txn.ID = int64(len(f.txns) + 1)
	txn.CreatedAt = time.Now()
	saved := *txn
	f.txns[txn.Reference] = &saved
	return nil
}

func (f *fakePaymentStore) GetTransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	txn, ok := f.txns[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, reference)
	}
	copied := *txn
	return &copied, nil
}

func (f *fakePaymentStore) GetTransactionByOrderID(_ context.Context, orderID int64) (*models.Transaction, error) {
	for _, txn := range f.txns {
		if txn.OrderID == orderID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: order %d", store.ErrTransactionNotFound, orderID)
}

func (f *fakePaymentStore) TransitionTransaction(ctx context.Context, reference, to string) (*models.Transaction, bool, error) {
	txn, ok := f.txns[reference]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, reference)
	}
	if !models.TxCanTransition(txn.Status, to) {
		copied := *txn
		return &copied, false, nil
	}
	txn.Status = to
	if to == models.TxStatusSuccess {
		if o, ok := f.orders[txn.OrderID]; ok {
			o.Paid = true
		}
	}
	copied := *txn
	return &copied, true, nil
}

func (f *fakePaymentStore) ApplyTransactionEvent(ctx context.Context, eventID, eventType, reference, to string) (*models.Transaction, bool, error) {
	if f.processed[eventID] {
		txn, err := f.GetTransactionByReference(ctx, reference)
		return txn, false, err
	}
	txn, applied, err := f.TransitionTransaction(ctx, reference, to)
	if err != nil {
		return nil, false, err
	}
	f.processed[eventID] = true
	return txn, applied, nil
}

// fakeGateway scripts the payment provider's answers
type fakeGateway struct {
	initializeFn func(email string, amount decimal.Decimal, reference string) (*gateway.InitializeResult, error)
	verifyFn     func(reference string) (*gateway.VerifyResult, error)
	refundFn     func(reference string) (*gateway.RefundResult, error)
	signature    string
}

func (f *fakeGateway) Initialize(_ context.Context, email string, amount decimal.Decimal, reference string) (*gateway.InitializeResult, error) {
	if f.initializeFn != nil {
		return f.initializeFn(email, amount, reference)
	}
	return &gateway.InitializeResult{
		AuthorizationURL: "https://checkout.example/" + reference,
		Reference:        reference,
	}, nil
}

func (f *fakeGateway) Verify(_ context.Context, reference string) (*gateway.VerifyResult, error) {
	if f.verifyFn != nil {
		return f.verifyFn(reference)
	}
	return &gateway.VerifyResult{Status: "success", Reference: reference}, nil
}

func (f *fakeGateway) Refund(_ context.Context, reference string) (*gateway.RefundResult, error) {
	if f.refundFn != nil {
		return f.refundFn(reference)
	}
	return &gateway.RefundResult{Status: "processed"}, nil
}

func (f *fakeGateway) VerifySignature(_ []byte, signature string) bool {
	return f.signature == "" || signature == f.signature
}
