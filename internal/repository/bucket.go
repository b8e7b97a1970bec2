package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/bucket"
)

const (
	// The no-op DO UPDATE makes the upsert return the existing row, giving
	// get-or-create in a single round trip.
	getOrCreateBucketSQL = `INSERT INTO buckets (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at`

	listBucketItemsSQL = `SELECT bi.product_id, p.name, p.price, p.available_items, bi.quantity
		FROM bucket_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.bucket_id = $1
		ORDER BY p.name, bi.product_id`

	getBucketItemSQL = `SELECT bi.product_id, p.name, p.price, p.available_items, bi.quantity
		FROM bucket_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.bucket_id = $1 AND bi.product_id = $2`

	addBucketItemSQL = `INSERT INTO bucket_items (bucket_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (bucket_id, product_id) DO UPDATE SET quantity = bucket_items.quantity + EXCLUDED.quantity`

	setBucketItemQuantitySQL = `UPDATE bucket_items SET quantity = $3 WHERE bucket_id = $1 AND product_id = $2`

	deleteBucketItemSQL = `DELETE FROM bucket_items WHERE bucket_id = $1 AND product_id = $2`
)

var _ bucket.Repository = (*BucketRepository)(nil)

// BucketRepository implements bucket.Repository backed by PostgreSQL.
type BucketRepository struct {
	pool *pgxpool.Pool
}

// NewBucketRepository returns a BucketRepository that uses the given pool.
func NewBucketRepository(pool *pgxpool.Pool) *BucketRepository {
	return &BucketRepository{pool: pool}
}

// GetOrCreate returns the user's bucket, creating it with newID on first
// access.
func (r *BucketRepository) GetOrCreate(ctx context.Context, userID, newID string) (*bucket.Bucket, error) {
	var b bucket.Bucket
	err := r.pool.QueryRow(ctx, getOrCreateBucketSQL, newID, userID).
		Scan(&b.ID, &b.UserID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create bucket for user %q: %w", userID, err)
	}
	return &b, nil
}

// ListItems returns the bucket's line items with products joined.
func (r *BucketRepository) ListItems(ctx context.Context, bucketID string) ([]bucket.LineItem, error) {
	rows, err := r.pool.Query(ctx, listBucketItemsSQL, bucketID)
	if err != nil {
		return nil, fmt.Errorf("listing bucket items: %w", err)
	}
	return pgx.CollectRows(rows, scanLineItem)
}

// GetItem returns a single line item, or bucket.ErrLineNotFound.
func (r *BucketRepository) GetItem(ctx context.Context, bucketID, productID string) (*bucket.LineItem, error) {
	rows, err := r.pool.Query(ctx, getBucketItemSQL, bucketID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting bucket item %q: %w", productID, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bucket.ErrLineNotFound
		}
		return nil, fmt.Errorf("getting bucket item %q: %w", productID, err)
	}
	return &item, nil
}

// AddItem inserts a line or increments the existing line's quantity.
func (r *BucketRepository) AddItem(ctx context.Context, bucketID, productID string, quantity int) error {
	if _, err := r.pool.Exec(ctx, addBucketItemSQL, bucketID, productID, quantity); err != nil {
		return fmt.Errorf("adding bucket item %q: %w", productID, err)
	}
	return nil
}

// SetItemQuantity replaces an existing line's quantity.
func (r *BucketRepository) SetItemQuantity(ctx context.Context, bucketID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, setBucketItemQuantitySQL, bucketID, productID, quantity)
	if err != nil {
		return fmt.Errorf("updating bucket item %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return bucket.ErrLineNotFound
	}
	return nil
}

// DeleteItem removes a line from the bucket.
func (r *BucketRepository) DeleteItem(ctx context.Context, bucketID, productID string) error {
	tag, err := r.pool.Exec(ctx, deleteBucketItemSQL, bucketID, productID)
	if err != nil {
		return fmt.Errorf("deleting bucket item %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return bucket.ErrLineNotFound
	}
	return nil
}

func scanLineItem(row pgx.CollectableRow) (bucket.LineItem, error) {
	var item bucket.LineItem
	err := row.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice,
		&item.AvailableItems, &item.Quantity)
	return item, err
}
