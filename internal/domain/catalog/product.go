package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Category is a catalog grouping. Categories form a tree via ParentID.
type Category struct {
	ID       string
	Name     string
	ParentID string
}

// Product is a purchasable catalog entry. Price is a fixed-point currency
// amount with 2 decimal places; AvailableItems is the current stock count
// and never goes below zero.
type Product struct {
	ID             string
	Name           string
	Description    string
	Price          decimal.Decimal
	AvailableItems int
	Categories     []Category
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// Page is one page of a product listing.
type Page struct {
	Products []Product
	Total    int
}

// Repository defines read access to the product catalog.
type Repository interface {
	List(ctx context.Context, q ListQuery) (*Page, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
