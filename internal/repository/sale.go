package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/sale"
)

const (
	// A sale targets a product either directly or through any of the
	// product's categories. Allow-lists are aggregated per sale so the
	// resolver can check applicability without extra round trips.
	activeSalesForProductSQL = `SELECT s.id, s.name, s.discount, s.announcement_date, s.start_date, s.end_date,
			s.was_announced, s.restricted,
			COALESCE(su.user_ids, '{}') AS user_ids,
			COALESCE(sg.group_ids, '{}') AS group_ids
		FROM sales s
		LEFT JOIN (SELECT sale_id, array_agg(user_id) AS user_ids FROM sale_users GROUP BY sale_id) su
			ON su.sale_id = s.id
		LEFT JOIN (SELECT sale_id, array_agg(group_id) AS group_ids FROM sale_groups GROUP BY sale_id) sg
			ON sg.sale_id = s.id
		WHERE s.start_date <= $2 AND s.end_date >= $2
			AND (
				EXISTS (SELECT 1 FROM sale_products sp WHERE sp.sale_id = s.id AND sp.product_id = $1)
				OR EXISTS (SELECT 1 FROM sale_categories sc
					JOIN product_categories pc ON pc.category_id = sc.category_id
					WHERE sc.sale_id = s.id AND pc.product_id = $1)
			)`

	dueForAnnouncementSQL = `SELECT s.id, s.name, s.discount,
			COALESCE(p.names, '{}') AS product_names,
			COALESCE(c.names, '{}') AS category_names
		FROM sales s
		LEFT JOIN (SELECT sp.sale_id, array_agg(pr.name ORDER BY pr.name) AS names
			FROM sale_products sp JOIN products pr ON pr.id = sp.product_id GROUP BY sp.sale_id) p
			ON p.sale_id = s.id
		LEFT JOIN (SELECT sc.sale_id, array_agg(ca.name ORDER BY ca.name) AS names
			FROM sale_categories sc JOIN categories ca ON ca.id = sc.category_id GROUP BY sc.sale_id) c
			ON c.sale_id = s.id
		WHERE NOT s.was_announced AND s.announcement_date <= $1
		ORDER BY s.announcement_date`

	markAnnouncedSQL = `UPDATE sales SET was_announced = TRUE WHERE id = $1`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL, plus the
// announcement queries used by the sale-announce batch tool.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// ActiveForProduct returns all sales active at the given instant whose target
// set includes the product directly or via one of its categories.
func (r *SaleRepository) ActiveForProduct(ctx context.Context, productID string, at time.Time) ([]sale.Sale, error) {
	rows, err := r.pool.Query(ctx, activeSalesForProductSQL, productID, at)
	if err != nil {
		return nil, fmt.Errorf("querying active sales for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanSale)
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var s sale.Sale
	err := row.Scan(&s.ID, &s.Name, &s.Discount, &s.AnnouncementDate, &s.StartDate, &s.EndDate,
		&s.WasAnnounced, &s.Restricted, &s.AllowedUserIDs, &s.AllowedGroupIDs)
	return s, err
}

// Announcement is a due sale with the target names needed to render an
// announcement row.
type Announcement struct {
	SaleID        string
	SaleName      string
	Discount      decimal.Decimal
	ProductNames  []string
	CategoryNames []string
}

// DueForAnnouncement returns unannounced sales whose announcement date has
// passed, oldest first.
func (r *SaleRepository) DueForAnnouncement(ctx context.Context, now time.Time) ([]Announcement, error) {
	rows, err := r.pool.Query(ctx, dueForAnnouncementSQL, now)
	if err != nil {
		return nil, fmt.Errorf("querying due sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Announcement, error) {
		var a Announcement
		err := row.Scan(&a.SaleID, &a.SaleName, &a.Discount, &a.ProductNames, &a.CategoryNames)
		return a, err
	})
}

// MarkAnnounced flags a sale as announced so subsequent runs skip it.
func (r *SaleRepository) MarkAnnounced(ctx context.Context, saleID string) error {
	if _, err := r.pool.Exec(ctx, markAnnouncedSQL, saleID); err != nil {
		return fmt.Errorf("marking sale %q announced: %w", saleID, err)
	}
	return nil
}
