package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ericogbekene/Bakery-projectBE/internal/cart"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"
	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the durable side of checkout
type OrderStore interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

// Publisher is the async notification pipeline. Enqueue failures are
// logged, never propagated: the order already committed.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// CheckoutService converts a session cart into a durable order
type CheckoutService struct {
	orders    OrderStore
	catalog   Catalog
	carts     cart.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(orders OrderStore, catalog Catalog, carts cart.Store, publisher Publisher) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		catalog:   catalog,
		carts:     carts,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CheckoutRequest carries the contact and address fields for the order
// header. Field constraints ride on the binding tags; names are
// normalized to capitalized form before persisting.
type CheckoutRequest struct {
	FirstName string `json:"first_name" binding:"required,min=2"`
	LastName  string `json:"last_name" binding:"required,min=2"`
	Email     string `json:"email" binding:"required,email"`
	Address   string `json:"address" binding:"required,min=5"`
	City      string `json:"city" binding:"required"`
}

// CheckoutResponse is returned after a successful checkout
type CheckoutResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalCost   string `json:"total_cost"`
}

// Checkout atomically converts a non-empty cart into an order with items.
// Either the order header, all items, and the recomputed total commit
// together, or nothing is persisted and the cart is untouched. The cart
// is cleared only after the commit.
func (s *CheckoutService) Checkout(ctx context.Context, sessionID string, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	items, err := s.carts.Items(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	// Every cart line must still resolve against the catalog; one stale
	// reference aborts the whole checkout before anything is written.
	if err := s.resolveProducts(ctx, items); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("product_not_found").Inc()
		return nil, err
	}

	order := &models.Order{
		FirstName: Capitalize(req.FirstName),
		LastName:  Capitalize(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Address:   strings.TrimSpace(req.Address),
		City:      strings.TrimSpace(req.City),
		Status:    models.OrderStatusPending,
	}

	orderItems := make([]models.OrderItem, len(items))
	for i, item := range items {
		orderItems[i] = models.OrderItem{
			ProductID: item.ProductID,
			Price:     item.Price, // snapshot from the cart, not the live catalog
			Quantity:  item.Quantity,
		}
	}

	if err := s.orders.CreateOrderWithItems(ctx, order, orderItems); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.CheckoutsTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_cost", order.TotalCost.String()))

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		// The order is durable; a stale cart is recoverable on next read.
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.Email,
		TotalCost:   order.TotalCost,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TotalCost:   order.TotalCost.String(),
	}, nil
}

// resolveProducts verifies every cart line against the catalog, naming
// the first product that no longer exists.
func (s *CheckoutService) resolveProducts(ctx context.Context, items []cart.Item) error {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	found := make(map[int64]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}
	for _, item := range items {
		if !found[item.ProductID] {
			return fmt.Errorf("%w: %d", store.ErrProductNotFound, item.ProductID)
		}
	}
	return nil
}

// GetOrder retrieves an order with its items
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// Capitalize normalizes a name field: first letter upper, rest lower.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
