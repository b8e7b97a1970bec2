package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/order"
)

const (
	lockBucketSQL = `SELECT id FROM buckets WHERE user_id = $1 FOR UPDATE`

	checkoutLinesSQL = `SELECT bi.product_id, p.name, p.price, p.available_items, bi.quantity
		FROM bucket_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.bucket_id = $1
		ORDER BY p.name, bi.product_id`

	// Relative decrement guarded by the current stock level: the WHERE clause
	// re-validates availability under row-level locking, so concurrent
	// checkouts on other buckets can never drive stock negative.
	decrementStockSQL = `UPDATE products
		SET available_items = available_items - $2, modified_at = now()
		WHERE id = $1 AND available_items >= $2
		RETURNING available_items`

	currentStockSQL = `SELECT available_items FROM products WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, user_id, total) VALUES ($1, $2, $3) RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, price, discount, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	clearBucketSQL = `DELETE FROM bucket_items WHERE bucket_id = $1`
)

var _ order.TxStore = (*CheckoutStore)(nil)

// CheckoutStore implements order.TxStore: each checkout runs against one
// pgx transaction that commits or rolls back as a unit.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// InTx opens a transaction, runs fn against a transaction-scoped store, and
// commits when fn succeeds. Any error from fn or from commit rolls the whole
// transaction back.
func (s *CheckoutStore) InTx(ctx context.Context, fn func(order.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin checkout transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout transaction: %w", err)
	}
	return nil
}

// txStore implements order.Store over a single open transaction.
type txStore struct {
	tx pgx.Tx
}

// LockBucket takes an exclusive row lock on the user's bucket, blocking a
// concurrent checkout for the same user until this transaction finishes.
func (s *txStore) LockBucket(ctx context.Context, userID string) (string, error) {
	var bucketID string
	err := s.tx.QueryRow(ctx, lockBucketSQL, userID).Scan(&bucketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", order.ErrNoBucket
		}
		return "", fmt.Errorf("locking bucket for user %q: %w", userID, err)
	}
	return bucketID, nil
}

func (s *txStore) ListLines(ctx context.Context, bucketID string) ([]order.Line, error) {
	rows, err := s.tx.Query(ctx, checkoutLinesSQL, bucketID)
	if err != nil {
		return nil, fmt.Errorf("listing checkout lines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ProductID, &l.ProductName, &l.UnitPrice, &l.Available, &l.Quantity)
		return l, err
	})
}

func (s *txStore) DecrementStock(ctx context.Context, productID string, qty int) (int, bool, error) {
	var remaining int
	err := s.tx.QueryRow(ctx, decrementStockSQL, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("decrementing stock for product %q: %w", productID, err)
	}

	// Guard clause rejected the update; report the current availability.
	var available int
	if err := s.tx.QueryRow(ctx, currentStockSQL, productID).Scan(&available); err != nil {
		return 0, false, fmt.Errorf("reading stock for product %q: %w", productID, err)
	}
	return available, false, nil
}

func (s *txStore) CreateOrder(ctx context.Context, o *order.Order) error {
	err := s.tx.QueryRow(ctx, insertOrderSQL, o.ID, o.UserID, o.Total).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, item.ProductID, item.Name, item.Price, item.Discount, item.Quantity)
	}
	if err := s.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating order items for %q: %w", o.ID, err)
	}
	return nil
}

func (s *txStore) ClearBucket(ctx context.Context, bucketID string) error {
	if _, err := s.tx.Exec(ctx, clearBucketSQL, bucketID); err != nil {
		return fmt.Errorf("clearing bucket %q: %w", bucketID, err)
	}
	return nil
}
