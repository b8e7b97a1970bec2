package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/auth"
	"marketplace/internal/domain/sale"
)

var one = decimal.NewFromInt(1)

// DiscountResolver computes the best discount fraction for a product as seen
// by a requester. Implemented by sale.Resolver.
type DiscountResolver interface {
	BestDiscount(ctx context.Context, productID string, requester *sale.Requester) (decimal.Decimal, error)
}

// Service is the checkout engine. It turns a user's bucket into an immutable
// order, decrements stock, and empties the bucket inside one transaction,
// or not at all.
type Service struct {
	store     TxStore
	discounts DiscountResolver
}

// NewService creates a checkout Service.
func NewService(store TxStore, discounts DiscountResolver) *Service {
	return &Service{store: store, discounts: discounts}
}

// Checkout places an order from the user's current bucket contents.
//
// The whole operation runs as one unit of work: the user's bucket row is
// locked to serialize concurrent checkout attempts by the same user, stock is
// validated for every line before anything is written, stock decrements are
// conditional relative updates (safe under concurrent checkouts by other
// users), and any failure rolls everything back. On success the bucket ends
// empty and the completed order is returned.
//
// Expected failures: ErrNoBucket, ErrEmptyBucket, *InsufficientStockError.
// Anything else is a storage fault and should surface as a generic error.
func (s *Service) Checkout(ctx context.Context, user *auth.User) (*Order, error) {
	requester := &sale.Requester{ID: user.ID, GroupIDs: user.GroupIDs}

	var placed *Order
	err := s.store.InTx(ctx, func(store Store) error {
		bucketID, err := store.LockBucket(ctx, user.ID)
		if err != nil {
			return err
		}

		lines, err := store.ListLines(ctx, bucketID)
		if err != nil {
			return errors.Wrap(err, "list bucket lines")
		}
		if len(lines) == 0 {
			return ErrEmptyBucket
		}

		// Validate every line before writing anything, so the first
		// violation aborts with zero side effects.
		for _, line := range lines {
			if line.Quantity > line.Available {
				return &InsufficientStockError{
					ProductID: line.ProductID,
					Name:      line.ProductName,
					Available: line.Available,
					Requested: line.Quantity,
				}
			}
		}

		o := &Order{
			ID:     uuid.New().String(),
			UserID: user.ID,
			Items:  make([]Item, 0, len(lines)),
			Total:  decimal.Zero,
		}

		for _, line := range lines {
			discount, err := s.discounts.BestDiscount(ctx, line.ProductID, requester)
			if err != nil {
				return errors.Wrapf(err, "resolve discount for product %s", line.ProductID)
			}

			linePrice := line.UnitPrice.Mul(one.Sub(discount)).Round(2)
			o.Items = append(o.Items, Item{
				ProductID: line.ProductID,
				Name:      line.ProductName,
				Price:     linePrice,
				Discount:  discount,
				Quantity:  line.Quantity,
			})
			o.Total = o.Total.Add(linePrice.Mul(decimal.NewFromInt(int64(line.Quantity))))

			// Re-validated under the transaction's isolation: a concurrent
			// checkout on another user's bucket may have consumed stock
			// since ListLines.
			available, ok, err := store.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement stock for product %s", line.ProductID)
			}
			if !ok {
				return &InsufficientStockError{
					ProductID: line.ProductID,
					Name:      line.ProductName,
					Available: available,
					Requested: line.Quantity,
				}
			}
		}

		o.Total = o.Total.Round(2)
		if err := store.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := store.ClearBucket(ctx, bucketID); err != nil {
			return errors.Wrap(err, "clear bucket")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placed, nil
}
