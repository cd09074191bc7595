package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/jmoiron/sqlx"
)

// orderNumberTries bounds the optimistic retry loop for daily sequence
// allocation. Two concurrent checkouts can race on the read-then-write;
// the loser re-reads and bumps the sequence.
const orderNumberTries = 5

const orderNumberConstraint = "orders_order_number_key"

// NextOrderNumber derives the next order number for the given day prefix
// (YYYYMMDD) from the highest existing number with that prefix. The
// sequence part is zero-padded to five digits and starts at 00001.
func NextOrderNumber(day, last string) string {
	seq := 1
	if last != "" {
		if idx := strings.LastIndex(last, "-"); idx >= 0 {
			if n, err := strconv.Atoi(last[idx+1:]); err == nil {
				seq = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%05d", day, seq)
}

// CreateOrderWithItems atomically persists an order header, its items, and
// the recomputed total. Either everything commits or nothing does. The
// caller resolves products beforehand; a stale product reference aborts
// the whole transaction via the order_items foreign key.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	day := time.Now().Format("20060102")

	return util.Attempt(orderNumberTries,
		func(err error) bool { return isUniqueViolation(err, orderNumberConstraint) },
		func() error { return s.createOrderTx(ctx, day, order, items) },
	)
}

func (s *Store) createOrderTx(ctx context.Context, day string, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var last sql.NullString
	err = tx.GetContext(ctx, &last,
		"SELECT MAX(order_number) FROM orders WHERE order_number LIKE $1", day+"-%")
	if err != nil {
		return fmt.Errorf("failed to read last order number: %w", err)
	}
	order.OrderNumber = NextOrderNumber(day, last.String)

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (order_number, first_name, last_name, email, address, city, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		order.OrderNumber, order.FirstName, order.LastName,
		order.Email, order.Address, order.City, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, price, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].Price, items[i].Quantity)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := recalcOrderTotal(ctx, tx, order.ID); err != nil {
		return err
	}
	if err := tx.GetContext(ctx, &order.TotalCost,
		"SELECT total_cost FROM orders WHERE id = $1", order.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// recalcOrderTotal re-derives total_cost from the current items. Called
// inside the same transaction as any item mutation so the invariant
// total_cost == sum(price * quantity) holds after every commit.
func recalcOrderTotal(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total_cost = COALESCE(
			(SELECT SUM(price * quantity) FROM order_items WHERE order_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to recalculate order total: %w", err)
	}
	return nil
}

// DeleteOrderItem removes an item and restores the total invariant in the
// same transaction.
func (s *Store) DeleteOrderItem(ctx context.Context, orderID, itemID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE id = $1 AND order_id = $2", itemID, orderID); err != nil {
		return err
	}
	if err := recalcOrderTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return nil
}
