package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/catalog"
)

const (
	getProductByIDSQL = `SELECT id, name, description, price, available_items, created_at, modified_at
		FROM products WHERE id = $1`

	productCategoriesSQL = `SELECT pc.product_id, c.id, c.name, COALESCE(c.parent_id, '')
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.name`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of products matching the query, with categories
// attached and the total match count for pagination.
func (r *ProductRepository) List(ctx context.Context, q catalog.ListQuery) (*catalog.Page, error) {
	sql, args := buildListSQL(q)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	total := 0
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.AvailableItems,
			&p.CreatedAt, &p.ModifiedAt, &total)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}

	if err := r.attachCategories(ctx, products); err != nil {
		return nil, err
	}

	return &catalog.Page{Products: products, Total: total}, nil
}

// GetByID returns a single product with its categories.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.AvailableItems,
			&p.CreatedAt, &p.ModifiedAt)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	products := []catalog.Product{p}
	if err := r.attachCategories(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// buildListSQL assembles the listing query. The sort field comes from the
// domain allow-list in catalog.ParseListQuery, never from raw client input.
func buildListSQL(q catalog.ListQuery) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString(`SELECT id, name, description, price, available_items, created_at, modified_at,
		COUNT(*) OVER() AS total FROM products p`)

	if len(q.CategoryIDs) > 0 {
		args = append(args, q.CategoryIDs)
		op := "EXISTS"
		if q.ExcludeCategories {
			op = "NOT EXISTS"
		}
		fmt.Fprintf(&b, ` WHERE %s (SELECT 1 FROM product_categories pc
			WHERE pc.product_id = p.id AND pc.category_id = ANY($%d))`, op, len(args))
	}

	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY p.%s %s, p.id", q.SortField, dir)

	args = append(args, q.PageSize)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	args = append(args, q.Offset())
	fmt.Fprintf(&b, " OFFSET $%d", len(args))

	return b.String(), args
}

// attachCategories resolves the many-to-many category memberships for the
// given products in one query.
func (r *ProductRepository) attachCategories(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]*catalog.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = &products[i]
	}

	rows, err := r.pool.Query(ctx, productCategoriesSQL, ids)
	if err != nil {
		return fmt.Errorf("loading product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var c catalog.Category
		if err := rows.Scan(&productID, &c.ID, &c.Name, &c.ParentID); err != nil {
			return fmt.Errorf("scanning product category: %w", err)
		}
		if p, ok := index[productID]; ok {
			p.Categories = append(p.Categories, c)
		}
	}
	return rows.Err()
}
