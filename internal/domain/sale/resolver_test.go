package sale

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSaleRepo struct {
	sales  []Sale
	err    error
	lastAt time.Time
}

func (m *mockSaleRepo) ActiveForProduct(_ context.Context, _ string, at time.Time) ([]Sale, error) {
	m.lastAt = at
	return m.sales, m.err
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func publicSale(discount string) Sale {
	return Sale{ID: "s-" + discount, Name: "public", Discount: pct(discount)}
}

func closedSale(discount string, userIDs, groupIDs []string) Sale {
	return Sale{
		ID:              "closed-" + discount,
		Name:            "closed",
		Discount:        pct(discount),
		Restricted:      true,
		AllowedUserIDs:  userIDs,
		AllowedGroupIDs: groupIDs,
	}
}

func TestBestDiscount_NoActiveSales(t *testing.T) {
	r := NewResolver(&mockSaleRepo{})

	d, err := r.BestDiscount(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.True(t, pct("0.00").Equal(d))
}

func TestBestDiscount_MaxAmongPublicSales(t *testing.T) {
	repo := &mockSaleRepo{sales: []Sale{
		publicSale("0.10"),
		publicSale("0.25"),
		publicSale("0.05"),
	}}
	r := NewResolver(repo)

	d, err := r.BestDiscount(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.True(t, pct("0.25").Equal(d))
}

func TestBestDiscount_AnonymousNeverSeesClosedSales(t *testing.T) {
	repo := &mockSaleRepo{sales: []Sale{
		closedSale("0.50", []string{"u1"}, nil),
	}}
	r := NewResolver(repo)

	d, err := r.BestDiscount(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(d))
}

func TestBestDiscount_ClosedSaleByUserAllowList(t *testing.T) {
	repo := &mockSaleRepo{sales: []Sale{
		publicSale("0.10"),
		closedSale("0.40", []string{"u1"}, nil),
	}}
	r := NewResolver(repo)

	d, err := r.BestDiscount(context.Background(), "p1", &Requester{ID: "u1"})
	require.NoError(t, err)
	assert.True(t, pct("0.40").Equal(d))

	// A different user only gets the public sale.
	d, err = r.BestDiscount(context.Background(), "p1", &Requester{ID: "u2"})
	require.NoError(t, err)
	assert.True(t, pct("0.10").Equal(d))
}

func TestBestDiscount_ClosedSaleByGroupMembership(t *testing.T) {
	repo := &mockSaleRepo{sales: []Sale{
		closedSale("0.30", nil, []string{"vip"}),
	}}
	r := NewResolver(repo)

	d, err := r.BestDiscount(context.Background(), "p1", &Requester{ID: "u1", GroupIDs: []string{"vip", "beta"}})
	require.NoError(t, err)
	assert.True(t, pct("0.30").Equal(d))

	d, err = r.BestDiscount(context.Background(), "p1", &Requester{ID: "u1", GroupIDs: []string{"beta"}})
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(d))
}

func TestBestDiscount_PublicAndClosedNeverStack(t *testing.T) {
	repo := &mockSaleRepo{sales: []Sale{
		publicSale("0.10"),
		closedSale("0.15", []string{"u1"}, nil),
	}}
	r := NewResolver(repo)

	// Max wins; 0.10 and 0.15 do not sum to 0.25.
	d, err := r.BestDiscount(context.Background(), "p1", &Requester{ID: "u1"})
	require.NoError(t, err)
	assert.True(t, pct("0.15").Equal(d))
}

func TestBestDiscount_RepositoryError(t *testing.T) {
	repo := &mockSaleRepo{err: errors.New("connection refused")}
	r := NewResolver(repo)

	_, err := r.BestDiscount(context.Background(), "p1", nil)
	require.Error(t, err)
}

func TestBestDiscount_QueriesWithInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockSaleRepo{}
	r := NewResolver(repo)
	r.now = func() time.Time { return fixed }

	_, err := r.BestDiscount(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, repo.lastAt)
}

func TestSale_ActiveAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	s := &Sale{StartDate: start, EndDate: end}

	assert.True(t, s.ActiveAt(start))
	assert.True(t, s.ActiveAt(end))
	assert.True(t, s.ActiveAt(start.Add(time.Hour)))
	assert.False(t, s.ActiveAt(start.Add(-time.Second)))
	assert.False(t, s.ActiveAt(end.Add(time.Second)))
}
