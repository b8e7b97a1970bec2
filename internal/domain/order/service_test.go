package order

import (
	"context"
	"maps"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain/auth"
	"marketplace/internal/domain/sale"
)

// --- Mock implementations ---

// mockTxStore models the transactional store: all mutations inside InTx are
// staged on a copy and only become visible when fn succeeds.
type mockTxStore struct {
	bucketID string // empty means the user has no bucket
	lines    []Line
	stock    map[string]int

	orders        []*Order
	bucketCleared bool

	createOrderErr error
}

type txView struct {
	base *mockTxStore

	stock         map[string]int
	orders        []*Order
	bucketCleared bool
}

func (m *mockTxStore) InTx(_ context.Context, fn func(Store) error) error {
	view := &txView{base: m, stock: maps.Clone(m.stock)}
	if err := fn(view); err != nil {
		return err // rollback: staged state dropped
	}
	m.stock = view.stock
	m.orders = append(m.orders, view.orders...)
	if view.bucketCleared {
		m.bucketCleared = true
		m.lines = nil
	}
	return nil
}

func (v *txView) LockBucket(_ context.Context, _ string) (string, error) {
	if v.base.bucketID == "" {
		return "", ErrNoBucket
	}
	return v.base.bucketID, nil
}

func (v *txView) ListLines(_ context.Context, _ string) ([]Line, error) {
	return v.base.lines, nil
}

func (v *txView) DecrementStock(_ context.Context, productID string, qty int) (int, bool, error) {
	available := v.stock[productID]
	if available < qty {
		return available, false, nil
	}
	v.stock[productID] = available - qty
	return available - qty, true, nil
}

func (v *txView) CreateOrder(_ context.Context, o *Order) error {
	if v.base.createOrderErr != nil {
		return v.base.createOrderErr
	}
	v.orders = append(v.orders, o)
	return nil
}

func (v *txView) ClearBucket(_ context.Context, _ string) error {
	v.bucketCleared = true
	return nil
}

// mockResolver returns a fixed discount per product ID, zero otherwise.
type mockResolver struct {
	discounts map[string]decimal.Decimal
	err       error
}

func (m *mockResolver) BestDiscount(_ context.Context, productID string, _ *sale.Requester) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	if d, ok := m.discounts[productID]; ok {
		return d, nil
	}
	return decimal.Zero, nil
}

// --- Helpers ---

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testUser() *auth.User {
	return &auth.User{ID: "u1", Email: "u1@example.com"}
}

// --- Tests ---

func TestCheckout_NoBucket(t *testing.T) {
	store := &mockTxStore{}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())
	require.ErrorIs(t, err, ErrNoBucket)
	assert.Empty(t, store.orders)
}

func TestCheckout_EmptyBucket(t *testing.T) {
	store := &mockTxStore{bucketID: "b1"}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())
	require.ErrorIs(t, err, ErrEmptyBucket)
	assert.Empty(t, store.orders)
}

func TestCheckout_Success(t *testing.T) {
	// Product A: price 100.00, stock 5, qty 2, 10% public sale.
	// Product B: price 50.00, stock 1, qty 1, no sale.
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("100.00"), Available: 5, Quantity: 2},
			{ProductID: "b", ProductName: "Product B", UnitPrice: money("50.00"), Available: 1, Quantity: 1},
		},
		stock: map[string]int{"a": 5, "b": 1},
	}
	resolver := &mockResolver{discounts: map[string]decimal.Decimal{
		"a": money("0.10"),
	}}
	svc := NewService(store, resolver)

	o, err := svc.Checkout(context.Background(), testUser())
	require.NoError(t, err)

	// Total = 100.00*0.9*2 + 50.00*1 = 230.00.
	assert.True(t, money("230.00").Equal(o.Total), "total = %s", o.Total)
	assert.Equal(t, "u1", o.UserID)
	require.Len(t, o.Items, 2)

	assert.Equal(t, "Product A", o.Items[0].Name)
	assert.True(t, money("90.00").Equal(o.Items[0].Price))
	assert.True(t, money("0.10").Equal(o.Items[0].Discount))
	assert.Equal(t, 2, o.Items[0].Quantity)

	assert.Equal(t, "Product B", o.Items[1].Name)
	assert.True(t, money("50.00").Equal(o.Items[1].Price))
	assert.True(t, decimal.Zero.Equal(o.Items[1].Discount))

	// Stock decremented, bucket emptied, order committed.
	assert.Equal(t, 3, store.stock["a"])
	assert.Equal(t, 0, store.stock["b"])
	assert.True(t, store.bucketCleared)
	require.Len(t, store.orders, 1)
	assert.Equal(t, o.ID, store.orders[0].ID)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("10.00"), Available: 2, Quantity: 3},
		},
		stock: map[string]int{"a": 2},
	}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "a", stockErr.ProductID)
	assert.Equal(t, "Product A", stockErr.Name)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	// No partial effects: stock and bucket untouched, no order.
	assert.Equal(t, 2, store.stock["a"])
	assert.False(t, store.bucketCleared)
	assert.Len(t, store.lines, 1)
	assert.Empty(t, store.orders)
}

func TestCheckout_ConcurrentDecrementConflict(t *testing.T) {
	// The loaded lines passed validation, but another checkout consumed the
	// stock before the conditional decrement ran.
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("10.00"), Available: 3, Quantity: 2},
		},
		stock: map[string]int{"a": 1},
	}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	// Rolled back: the conflicting decrement left stock as it was.
	assert.Equal(t, 1, store.stock["a"])
	assert.False(t, store.bucketCleared)
	assert.Empty(t, store.orders)
}

func TestCheckout_RestrictedDiscountGoesThroughResolver(t *testing.T) {
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("100.00"), Available: 10, Quantity: 1},
		},
		stock: map[string]int{"a": 10},
	}
	resolver := &mockResolver{discounts: map[string]decimal.Decimal{
		"a": money("0.25"),
	}}
	svc := NewService(store, resolver)

	o, err := svc.Checkout(context.Background(), testUser())
	require.NoError(t, err)
	assert.True(t, money("75.00").Equal(o.Total))
}

func TestCheckout_StorageFailureRollsBack(t *testing.T) {
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("10.00"), Available: 5, Quantity: 1},
		},
		stock:          map[string]int{"a": 5},
		createOrderErr: errors.New("constraint violation"),
	}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEmptyBucket)

	// The decrement staged before the failure must not leak.
	assert.Equal(t, 5, store.stock["a"])
	assert.False(t, store.bucketCleared)
	assert.Empty(t, store.orders)
}

func TestCheckout_RetryOnEmptiedBucketFails(t *testing.T) {
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("10.00"), Available: 5, Quantity: 1},
		},
		stock: map[string]int{"a": 5},
	}
	svc := NewService(store, &mockResolver{})

	_, err := svc.Checkout(context.Background(), testUser())
	require.NoError(t, err)

	// A successful checkout empties the bucket, so the retry fails.
	_, err = svc.Checkout(context.Background(), testUser())
	require.ErrorIs(t, err, ErrEmptyBucket)
	assert.Len(t, store.orders, 1)
}

func TestCheckout_LinePriceRounding(t *testing.T) {
	// 9.99 * (1 - 0.33) = 6.6933 → rounds to 6.69 per unit; 3 units = 20.07.
	store := &mockTxStore{
		bucketID: "b1",
		lines: []Line{
			{ProductID: "a", ProductName: "Product A", UnitPrice: money("9.99"), Available: 10, Quantity: 3},
		},
		stock: map[string]int{"a": 10},
	}
	resolver := &mockResolver{discounts: map[string]decimal.Decimal{
		"a": money("0.33"),
	}}
	svc := NewService(store, resolver)

	o, err := svc.Checkout(context.Background(), testUser())
	require.NoError(t, err)
	assert.True(t, money("6.69").Equal(o.Items[0].Price))
	assert.True(t, money("20.07").Equal(o.Total))
}
