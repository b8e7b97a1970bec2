package bucket

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound is returned when a product is not in the user's bucket.
	ErrLineNotFound = errors.New("product not found in bucket")
	// ErrInvalidQuantity is returned for zero or negative quantities.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// Bucket is a user's shopping cart. Each user owns exactly one, created
// lazily on first access.
type Bucket struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// LineItem is one (product, quantity) row in a bucket, joined with the
// product fields needed to render and validate it.
type LineItem struct {
	ProductID      string
	ProductName    string
	UnitPrice      decimal.Decimal
	AvailableItems int
	Quantity       int
}

// Subtotal returns the undiscounted price of the line.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// View is a bucket with its line items and undiscounted running total.
type View struct {
	Items []LineItem
	Total decimal.Decimal
}

// Repository defines persistence operations for buckets and their line items.
type Repository interface {
	// GetOrCreate returns the user's bucket, creating it on first access.
	GetOrCreate(ctx context.Context, userID, newID string) (*Bucket, error)
	// ListItems returns the bucket's line items with products joined, in a
	// stable order.
	ListItems(ctx context.Context, bucketID string) ([]LineItem, error)
	// GetItem returns a single line item, or ErrLineNotFound.
	GetItem(ctx context.Context, bucketID, productID string) (*LineItem, error)
	// AddItem inserts a line with the given quantity, or increments the
	// existing line's quantity for the same product.
	AddItem(ctx context.Context, bucketID, productID string, quantity int) error
	// SetItemQuantity replaces the quantity of an existing line. Returns
	// ErrLineNotFound when the product is not in the bucket.
	SetItemQuantity(ctx context.Context, bucketID, productID string, quantity int) error
	// DeleteItem removes a line. Returns ErrLineNotFound when absent.
	DeleteItem(ctx context.Context, bucketID, productID string) error
}
