package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, user_id, total, created_at FROM orders
		WHERE user_id = $1 AND id = $2`

	listOrdersSQL = `SELECT id, user_id, total, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	orderItemsSQL = `SELECT order_id, product_id, name, price, discount, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY name`
)

// ErrOrderNotFound is returned when an order does not exist for the user.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository provides read access to placed orders. Orders are written
// exclusively by the CheckoutStore transaction and are immutable afterwards.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns one of the user's orders with its item snapshots.
func (r *OrderRepository) GetByID(ctx context.Context, userID, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, userID, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUser returns the user's orders, newest first, with item snapshots.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.CreatedAt)
	return o, err
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = &orders[i]
	}

	rows, err := r.pool.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item order.Item
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Discount, &item.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := index[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
