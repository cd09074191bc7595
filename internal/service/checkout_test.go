package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutFixture() (*CheckoutService, *fakeOrderStore, *fakeCatalog, *memCartStore, *recordingPublisher) {
	orders := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int64]models.Product{
		1: {ID: 1, Name: "Sourdough Loaf", Price: dec("5.00"), Available: true},
		2: {ID: 2, Name: "Cinnamon Roll", Price: dec("3.50"), Available: true},
	}}
	carts := newMemCartStore()
	publisher := &recordingPublisher{}
	return NewCheckoutService(orders, catalog, carts, publisher), orders, catalog, carts, publisher
}

func validCheckoutRequest() *CheckoutRequest {
	return &CheckoutRequest{
		FirstName: "ada",
		LastName:  "LOVELACE",
		Email:     "Ada@Example.com",
		Address:   "12 Analytical Way",
		City:      "London",
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, orders, _, _, publisher := checkoutFixture()

	_, err := svc.Checkout(context.Background(), "sess", validCheckoutRequest())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, orders.orders)
	assert.Empty(t, publisher.orderCreated)
}

func TestCheckoutCreatesOrderWithSnapshotPrices(t *testing.T) {
	svc, orders, _, carts, publisher := checkoutFixture()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "sess", 1, dec("5.00"), 2, false))
	require.NoError(t, carts.Add(ctx, "sess", 2, dec("3.50"), 1, false))

	resp, err := svc.Checkout(ctx, "sess", validCheckoutRequest())
	require.NoError(t, err)

	assert.Regexp(t, `^\d{8}-\d{5}$`, resp.OrderNumber)
	assert.Equal(t, "13.5", resp.TotalCost)

	order := orders.orders[resp.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, "Ada", order.FirstName)
	assert.Equal(t, "Lovelace", order.LastName)
	assert.Equal(t, "ada@example.com", order.Email)
	assert.True(t, order.TotalCost.Equal(dec("13.50")))

	items := orders.items[resp.OrderID]
	assert.Len(t, items, 2)

	// Cart is cleared only after the order committed.
	left, err := carts.Items(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, left)

	require.Len(t, publisher.orderCreated, 1)
	assert.Equal(t, resp.OrderID, publisher.orderCreated[0].OrderID)
	assert.Equal(t, models.EventTypeOrderCreated, publisher.orderCreated[0].EventType)
}

func TestCheckoutAbortsOnMissingProduct(t *testing.T) {
	svc, orders, catalog, carts, publisher := checkoutFixture()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "sess", 1, dec("5.00"), 2, false))
	require.NoError(t, carts.Add(ctx, "sess", 2, dec("3.50"), 1, false))

	// Product 2 disappears from the catalog between add and checkout.
	delete(catalog.products, 2)

	_, err := svc.Checkout(ctx, "sess", validCheckoutRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
	assert.Contains(t, err.Error(), "2")

	// Nothing persisted, cart untouched, nothing published.
	assert.Empty(t, orders.orders)
	items, _ := carts.Items(ctx, "sess")
	assert.Len(t, items, 2)
	assert.Empty(t, publisher.orderCreated)
}

func TestCheckoutSequencesOrderNumbersWithinDay(t *testing.T) {
	svc, orders, _, carts, _ := checkoutFixture()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "a", 1, dec("5.00"), 1, false))
	require.NoError(t, carts.Add(ctx, "b", 1, dec("5.00"), 1, false))

	first, err := svc.Checkout(ctx, "a", validCheckoutRequest())
	require.NoError(t, err)
	second, err := svc.Checkout(ctx, "b", validCheckoutRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, first.OrderNumber[:8], second.OrderNumber[:8])
	assert.Len(t, orders.orders, 2)
}

func TestGetOrder(t *testing.T) {
	svc, _, _, carts, _ := checkoutFixture()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "sess", 1, dec("5.00"), 1, false))
	resp, err := svc.Checkout(ctx, "sess", validCheckoutRequest())
	require.NoError(t, err)

	order, items, err := svc.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, resp.OrderNumber, order.OrderNumber)
	assert.Len(t, items, 1)

	_, _, err = svc.GetOrder(ctx, 9999)
	assert.True(t, errors.Is(err, store.ErrOrderNotFound))
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ada", "Ada"},
		{"LOVELACE", "Lovelace"},
		{"  o'brien ", "O'brien"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Capitalize(tt.in))
	}
}
