package service

import (
	"context"

	"github.com/ericogbekene/Bakery-projectBE/internal/cart"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog is the read side of the product store consumed by the cart and
// checkout flows.
type Catalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// CartService handles session cart operations
type CartService struct {
	carts   cart.Store
	catalog Catalog
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts cart.Store, catalog Catalog) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// CartLine is a cart item joined with live product details
type CartLine struct {
	Product    models.Product  `json:"product"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CartDetail is the full cart snapshot returned to the client
type CartDetail struct {
	Items              []CartLine      `json:"items"`
	Total              decimal.Decimal `json:"total_price"`
	Discount           decimal.Decimal `json:"discount"`
	TotalAfterDiscount decimal.Decimal `json:"total_after_discount"`
}

// Add inserts or updates a cart line, snapshotting the current catalog
// price when the product first enters the cart.
func (cs *CartService) Add(ctx context.Context, sessionID string, productID int64, quantity int, override bool) error {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	product, err := cs.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	if err := cs.carts.Add(ctx, sessionID, product.ID, product.Price, quantity, override); err != nil {
		return err
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	return nil
}

// Remove deletes a line from the cart. Removing an absent product is a
// no-op, not an error.
func (cs *CartService) Remove(ctx context.Context, sessionID string, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	if err := cs.carts.Remove(ctx, sessionID, productID); err != nil {
		return err
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Detail returns the current cart joined with live product details plus
// totals and the session discount. Lines whose product has vanished from
// the catalog are not shown; checkout will reject them explicitly.
func (cs *CartService) Detail(ctx context.Context, sessionID string) (*CartDetail, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Detail")
	defer span.End()

	items, err := cs.carts.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := cs.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			cs.logger.Warn("Cart references missing product",
				zap.String("session_id", sessionID),
				zap.Int64("product_id", item.ProductID))
			continue
		}
		lines = append(lines, CartLine{
			Product:    product,
			Quantity:   item.Quantity,
			Price:      item.Price,
			TotalPrice: item.TotalPrice(),
		})
	}

	code, err := cs.carts.DiscountCode(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	total := cart.Total(items)
	discount := cart.Discount(code)

	return &CartDetail{
		Items:              lines,
		Total:              total,
		Discount:           discount,
		TotalAfterDiscount: cart.TotalAfterDiscount(total, discount),
	}, nil
}

// ApplyDiscount stores a discount code on the session and returns the
// amount it is worth.
func (cs *CartService) ApplyDiscount(ctx context.Context, sessionID, code string) (decimal.Decimal, error) {
	if err := cs.carts.SetDiscountCode(ctx, sessionID, code); err != nil {
		return decimal.Zero, err
	}
	util.CartOperationsTotal.WithLabelValues("discount").Inc()
	return cart.Discount(code), nil
}

// Clear erases the cart for the session
func (cs *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := cs.carts.Clear(ctx, sessionID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}
