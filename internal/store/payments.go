package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericogbekene/Bakery-projectBE/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateTransaction creates a new payment transaction in pending state
func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.db.GetContext(ctx, txn, `
		INSERT INTO transactions (order_id, email, amount, reference, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		txn.OrderID, txn.Email, txn.Amount, txn.Reference, txn.Status)
}

// GetTransactionByReference retrieves a transaction by its gateway reference
func (s *Store) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn,
		"SELECT * FROM transactions WHERE reference = $1", reference)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransactionByOrderID retrieves the transaction paying for an order
func (s *Store) GetTransactionByOrderID(ctx context.Context, orderID int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn,
		"SELECT * FROM transactions WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: order %d", ErrTransactionNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransitionTransaction moves the transaction identified by reference to
// the target status if the state machine allows it, marking the owning
// order paid on success. Both writes share one transaction. applied is
// false when the current state forbids the transition (already terminal,
// or a repeated delivery), which callers treat as an idempotent no-op.
func (s *Store) TransitionTransaction(ctx context.Context, reference, to string) (*models.Transaction, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	txn, applied, err := transitionTx(ctx, tx, reference, to)
	if err != nil {
		return nil, false, err
	}
	return txn, applied, tx.Commit()
}

// ApplyTransactionEvent is TransitionTransaction plus event-level
// idempotency: the event ID is recorded in processed_events inside the
// same transaction, and a previously recorded ID short-circuits to a
// no-op. At-least-once webhook deliveries therefore apply exactly once.
func (s *Store) ApplyTransactionEvent(ctx context.Context, eventID, eventType, reference, to string) (*models.Transaction, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var seen bool
	err = tx.GetContext(ctx, &seen,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	if err != nil {
		return nil, false, err
	}
	if seen {
		txn, err := s.GetTransactionByReference(ctx, reference)
		return txn, false, err
	}

	txn, applied, err := transitionTx(ctx, tx, reference, to)
	if err != nil {
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return nil, false, err
	}

	return txn, applied, tx.Commit()
}

func transitionTx(ctx context.Context, tx *sqlx.Tx, reference, to string) (*models.Transaction, bool, error) {
	var txn models.Transaction
	err := tx.GetContext(ctx, &txn,
		"SELECT * FROM transactions WHERE reference = $1 FOR UPDATE", reference)
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	if err != nil {
		return nil, false, err
	}

	if !models.TxCanTransition(txn.Status, to) {
		return &txn, false, nil
	}

	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions SET status = $1, updated_at = NOW()
		WHERE reference = $2
		RETURNING *`, to, reference)
	if err != nil {
		return nil, false, err
	}

	if to == models.TxStatusSuccess {
		if _, err := tx.ExecContext(ctx,
			"UPDATE orders SET paid = TRUE, updated_at = NOW() WHERE id = $1",
			txn.OrderID); err != nil {
			return nil, false, err
		}
	}

	return &txn, true, nil
}

// IsEventProcessed checks if a webhook event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}
