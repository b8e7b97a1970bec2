package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a time-windowed discount campaign. Its target set is the union of
// the products and categories it was attached to. A restricted ("closed")
// sale applies only to the users and groups on its allow-lists; a public
// sale applies to everyone, including anonymous requesters.
type Sale struct {
	ID               string
	Name             string
	Discount         decimal.Decimal
	AnnouncementDate time.Time
	StartDate        time.Time
	EndDate          time.Time
	WasAnnounced     bool

	Restricted      bool
	AllowedUserIDs  []string
	AllowedGroupIDs []string
}

// ActiveAt reports whether the sale's window contains the given instant.
// Both boundaries are inclusive.
func (s *Sale) ActiveAt(at time.Time) bool {
	return !at.Before(s.StartDate) && !at.After(s.EndDate)
}

// Requester identifies who is asking for a discount. A nil *Requester means
// an anonymous request.
type Requester struct {
	ID       string
	GroupIDs []string
}

// Repository defines read access to sales.
type Repository interface {
	// ActiveForProduct returns all sales active at the given instant whose
	// target set includes the product, either directly or through any of the
	// product's categories. Restriction allow-lists are populated.
	ActiveForProduct(ctx context.Context, productID string, at time.Time) ([]Sale, error)
}
