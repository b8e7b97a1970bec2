// Command seed-db loads the development catalog into PostgreSQL: categories,
// products, user groups, users with bearer tokens, and sales. All inserts are
// upserts so the command can run repeatedly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/auth"
	"marketplace/internal/repository"
)

type catalogFile struct {
	Categories []categoryJSON `json:"categories"`
	Groups     []groupJSON    `json:"groups"`
	Users      []userJSON     `json:"users"`
	Products   []productJSON  `json:"products"`
	Sales      []saleJSON     `json:"sales"`
}

type categoryJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

type groupJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userJSON struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Token   string   `json:"token"`
	IsStaff bool     `json:"is_staff"`
	Groups  []string `json:"groups"`
}

type productJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	AvailableItems int             `json:"available_items"`
	Categories     []string        `json:"categories"`
}

type saleJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Discount         decimal.Decimal `json:"discount"`
	AnnouncementDate time.Time       `json:"announcement_date"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Restricted       bool            `json:"restricted"`
	Products         []string        `json:"products"`
	Categories       []string        `json:"categories"`
	Users            []string        `json:"users"`
	Groups           []string        `json:"groups"`
}

func main() {
	var (
		databaseURL string
		catalogPath string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&pepper, "token-pepper", "", "HMAC pepper for bearer token hashing (or MARKET_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("MARKET_TOKEN_PEPPER")
	}
	if pepper == "" {
		slog.Error("token pepper is required: set --token-pepper or MARKET_TOKEN_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogPath, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogPath, pepper string) error {
	slog.Info("reading catalog file", slog.String("path", catalogPath))

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogFile
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCategories(ctx, pool, catalog.Categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedGroups(ctx, pool, catalog.Groups); err != nil {
		return errors.Wrap(err, "seed groups")
	}
	if err := seedUsers(ctx, pool, catalog.Users, pepper); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedProducts(ctx, pool, catalog.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedSales(ctx, pool, catalog.Sales); err != nil {
		return errors.Wrap(err, "seed sales")
	}

	return nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool, categories []categoryJSON) error {
	slog.Info("upserting categories", slog.Int("count", len(categories)))

	const sql = `
		INSERT INTO categories (id, name, parent_id)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`

	for _, c := range categories {
		if _, err := pool.Exec(ctx, sql, c.ID, c.Name, c.Parent); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}
	return nil
}

func seedGroups(ctx context.Context, pool *pgxpool.Pool, groups []groupJSON) error {
	slog.Info("upserting groups", slog.Int("count", len(groups)))

	const sql = `
		INSERT INTO user_groups (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	for _, g := range groups {
		if _, err := pool.Exec(ctx, sql, g.ID, g.Name); err != nil {
			return errors.Wrapf(err, "upsert group %s", g.ID)
		}
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, users []userJSON, pepper string) error {
	slog.Info("upserting users", slog.Int("count", len(users)))

	const userSQL = `
		INSERT INTO users (id, email, name, token_hash, is_staff)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email, name = EXCLUDED.name,
			token_hash = EXCLUDED.token_hash, is_staff = EXCLUDED.is_staff`

	const memberSQL = `
		INSERT INTO user_group_members (user_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	for _, u := range users {
		hash := auth.HashToken(u.Token, []byte(pepper))
		if _, err := pool.Exec(ctx, userSQL, u.ID, u.Email, u.Name, hash, u.IsStaff); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
		for _, gid := range u.Groups {
			if _, err := pool.Exec(ctx, memberSQL, u.ID, gid); err != nil {
				return errors.Wrapf(err, "add user %s to group %s", u.ID, gid)
			}
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.String("email", u.Email))
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	const productSQL = `
		INSERT INTO products (id, name, description, price, available_items)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, available_items = EXCLUDED.available_items,
			modified_at = now()`

	const categorySQL = `
		INSERT INTO product_categories (product_id, category_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	for _, p := range products {
		if _, err := pool.Exec(ctx, productSQL, p.ID, p.Name, p.Description, p.Price, p.AvailableItems); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, cid := range p.Categories {
			if _, err := pool.Exec(ctx, categorySQL, p.ID, cid); err != nil {
				return errors.Wrapf(err, "link product %s to category %s", p.ID, cid)
			}
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedSales(ctx context.Context, pool *pgxpool.Pool, sales []saleJSON) error {
	slog.Info("upserting sales", slog.Int("count", len(sales)))

	const saleSQL = `
		INSERT INTO sales (id, name, discount, announcement_date, start_date, end_date, restricted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, discount = EXCLUDED.discount,
			announcement_date = EXCLUDED.announcement_date,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			restricted = EXCLUDED.restricted`

	links := []struct {
		sql    string
		values func(s saleJSON) []string
	}{
		{`INSERT INTO sale_products (sale_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			func(s saleJSON) []string { return s.Products }},
		{`INSERT INTO sale_categories (sale_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			func(s saleJSON) []string { return s.Categories }},
		{`INSERT INTO sale_users (sale_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			func(s saleJSON) []string { return s.Users }},
		{`INSERT INTO sale_groups (sale_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			func(s saleJSON) []string { return s.Groups }},
	}

	for _, s := range sales {
		if _, err := pool.Exec(ctx, saleSQL,
			s.ID, s.Name, s.Discount, s.AnnouncementDate, s.StartDate, s.EndDate, s.Restricted,
		); err != nil {
			return errors.Wrapf(err, "upsert sale %s", s.ID)
		}
		for _, link := range links {
			for _, id := range link.values(s) {
				if _, err := pool.Exec(ctx, link.sql, s.ID, id); err != nil {
					return errors.Wrapf(err, "link sale %s to %s", s.ID, id)
				}
			}
		}
		slog.Info("upserted sale", slog.String("id", s.ID), slog.String("name", s.Name))
	}
	return nil
}
