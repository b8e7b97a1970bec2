package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for checkout preconditions. Both are recoverable by the
// caller: the client can adjust the bucket and retry.
var (
	ErrNoBucket    = errors.New("user does not have a bucket")
	ErrEmptyBucket = errors.New("bucket is empty")
)

// InsufficientStockError indicates a bucket line requests more units than the
// product has in stock. Nothing is persisted before it is raised.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %q: only %d available, requested %d",
		e.Name, e.Available, e.Requested)
}

// Order is an immutable record of a successful checkout. Item rows snapshot
// the product name, the unit price actually charged and the discount applied,
// so historical orders stay accurate when the catalog changes later.
type Order struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	Items     []Item
	CreatedAt time.Time
}

// Item is one order line snapshot. Price is the discounted unit price.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Discount  decimal.Decimal
	Quantity  int
}

// Line is a bucket line item as read inside the checkout transaction, with
// the product fields checkout needs joined in.
type Line struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Available   int
	Quantity    int
}

// Store is the transactional unit of work checkout runs against. Every
// method call belongs to the single transaction opened by TxStore.InTx.
type Store interface {
	// LockBucket acquires an exclusive row lock on the user's bucket,
	// serializing concurrent checkouts for the same user, and returns the
	// bucket ID. Returns ErrNoBucket when the user has no bucket.
	LockBucket(ctx context.Context, userID string) (string, error)
	// ListLines returns the bucket's line items joined with product name,
	// price and availability, in a stable order.
	ListLines(ctx context.Context, bucketID string) ([]Line, error)
	// DecrementStock applies a conditional relative decrement guarded by
	// available_items >= qty. It returns the availability after the update
	// and ok=true, or the current availability and ok=false when the
	// decrement would drive stock negative.
	DecrementStock(ctx context.Context, productID string, qty int) (available int, ok bool, err error)
	// CreateOrder persists the order and its item snapshots.
	CreateOrder(ctx context.Context, o *Order) error
	// ClearBucket deletes every line item in the bucket.
	ClearBucket(ctx context.Context, bucketID string) error
}

// TxStore runs a function inside one atomically committed transaction.
// When fn returns an error the transaction rolls back and no partial state
// is visible.
type TxStore interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Repository defines read access to persisted orders.
type Repository interface {
	GetByID(ctx context.Context, userID, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
