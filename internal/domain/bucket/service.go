package bucket

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/catalog"
)

// InsufficientStockError indicates a requested quantity exceeds the
// product's current stock.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d items available for product %s, requested %d",
		e.Available, e.ProductID, e.Requested)
}

// Service implements bucket management: viewing the current bucket and
// adding, updating and removing line items.
type Service struct {
	buckets  Repository
	products catalog.Repository
}

// NewService creates a bucket Service.
func NewService(buckets Repository, products catalog.Repository) *Service {
	return &Service{buckets: buckets, products: products}
}

// Get returns the user's current bucket contents, creating the bucket on
// first access.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	b, err := s.buckets.GetOrCreate(ctx, userID, uuid.New().String())
	if err != nil {
		return nil, errors.Wrap(err, "get or create bucket")
	}
	return s.view(ctx, b.ID)
}

// Add puts quantity units of the product into the user's bucket. Adding a
// product already in the bucket increments its line quantity. The refreshed
// bucket view is returned.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// Rejecting unknown products up front keeps the 404 distinct from a
	// foreign key violation.
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	b, err := s.buckets.GetOrCreate(ctx, userID, uuid.New().String())
	if err != nil {
		return nil, errors.Wrap(err, "get or create bucket")
	}
	if err := s.buckets.AddItem(ctx, b.ID, productID, quantity); err != nil {
		return nil, errors.Wrapf(err, "add product %s", productID)
	}
	return s.view(ctx, b.ID)
}

// SetQuantity replaces the line quantity for a product already in the
// bucket. The new quantity must not exceed the product's current stock.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	b, err := s.buckets.GetOrCreate(ctx, userID, uuid.New().String())
	if err != nil {
		return nil, errors.Wrap(err, "get or create bucket")
	}

	line, err := s.buckets.GetItem(ctx, b.ID, productID)
	if err != nil {
		return nil, err
	}
	if quantity > line.AvailableItems {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Available: line.AvailableItems,
			Requested: quantity,
		}
	}

	if err := s.buckets.SetItemQuantity(ctx, b.ID, productID, quantity); err != nil {
		return nil, errors.Wrapf(err, "set quantity for product %s", productID)
	}
	return s.view(ctx, b.ID)
}

// Remove deletes a product line from the user's bucket.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	b, err := s.buckets.GetOrCreate(ctx, userID, uuid.New().String())
	if err != nil {
		return errors.Wrap(err, "get or create bucket")
	}
	return s.buckets.DeleteItem(ctx, b.ID, productID)
}

// view loads the bucket's lines and computes the undiscounted total.
func (s *Service) view(ctx context.Context, bucketID string) (*View, error) {
	items, err := s.buckets.ListItems(ctx, bucketID)
	if err != nil {
		return nil, errors.Wrap(err, "list bucket items")
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	return &View{Items: items, Total: total.Round(2)}, nil
}
