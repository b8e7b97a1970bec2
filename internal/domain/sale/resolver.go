package sale

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Resolver computes the single best discount fraction for a product from the
// currently active sales. Multiple applicable sales never stack: the customer
// gets the maximum discount among them.
type Resolver struct {
	sales Repository
	now   func() time.Time
}

// NewResolver creates a Resolver backed by the given sale Repository.
func NewResolver(sales Repository) *Resolver {
	return &Resolver{sales: sales, now: time.Now}
}

// BestDiscount returns the best applicable discount fraction in [0, 1] for
// the product, rounded to 2 decimal places. Public sales apply to everyone;
// restricted sales apply only when the requester is authenticated and their
// identity or one of their groups is on the allow-list. When no sale applies
// the result is 0.00.
func (r *Resolver) BestDiscount(ctx context.Context, productID string, requester *Requester) (decimal.Decimal, error) {
	sales, err := r.sales.ActiveForProduct(ctx, productID, r.now())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "active sales for product %s", productID)
	}

	best := decimal.Zero
	for i := range sales {
		s := &sales[i]
		if !applicable(s, requester) {
			continue
		}
		if s.Discount.GreaterThan(best) {
			best = s.Discount
		}
	}

	return best.Round(2), nil
}

// applicable reports whether the requester may use the sale.
func applicable(s *Sale, requester *Requester) bool {
	if !s.Restricted {
		return true
	}
	if requester == nil {
		return false
	}
	if slices.Contains(s.AllowedUserIDs, requester.ID) {
		return true
	}
	for _, gid := range requester.GroupIDs {
		if slices.Contains(s.AllowedGroupIDs, gid) {
			return true
		}
	}
	return false
}
