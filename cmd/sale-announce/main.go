// Command sale-announce renders announcement rows for every sale whose
// announcement date has passed and writes them as a gzipped CSV handed to the
// mail pipeline. One row per (recipient, sale) pair; a bloom filter guards
// against duplicate recipients when the user table contains repeated emails.
// Successfully exported sales are flagged so the next run skips them.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"marketplace/internal/repository"
)

const (
	recipientCapacity = 10_000_000
	recipientFPR      = 0.001
	progressEvery     = 100_000
)

func main() {
	var (
		databaseURL string
		outDir      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outDir, "out-dir", ".", "directory for the announcement CSV")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, outDir); err != nil {
		slog.Error("sale announce failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("sale announce completed successfully")
}

func run(ctx context.Context, databaseURL, outDir string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	sales := repository.NewSaleRepository(pool)
	users := repository.NewUserRepository(pool)

	due, err := sales.DueForAnnouncement(ctx, time.Now())
	if err != nil {
		return errors.Wrap(err, "load due sales")
	}
	if len(due) == 0 {
		slog.Info("no sales due for announcement")
		return nil
	}

	slog.Info("sales due for announcement", slog.Int("count", len(due)))

	outPath := filepath.Join(outDir,
		fmt.Sprintf("sales_announcements_%s.csv.gz", time.Now().UTC().Format("20060102T150405")))

	if err := writeAnnouncements(ctx, users, due, outPath); err != nil {
		return errors.Wrap(err, "write announcements")
	}

	for _, a := range due {
		if err := sales.MarkAnnounced(ctx, a.SaleID); err != nil {
			return errors.Wrapf(err, "mark sale %s announced", a.SaleID)
		}
	}

	slog.Info("announcement file written", slog.String("path", outPath))
	return nil
}

// saleColumns renders the recipient-independent CSV columns for one sale:
// subject line, discount, and the comma-joined product and category names.
func saleColumns(a repository.Announcement) [4]string {
	return [4]string{
		fmt.Sprintf("New Sale: %s is here!", a.SaleName),
		a.Discount.StringFixed(2),
		strings.Join(a.ProductNames, ", "),
		strings.Join(a.CategoryNames, ", "),
	}
}

// writeAnnouncements streams recipients from the database into a gzipped CSV.
// The producer goroutine reads emails, the writer goroutine compresses and
// writes rows, so a slow disk never stalls the database cursor more than one
// channel buffer's worth.
func writeAnnouncements(ctx context.Context, users *repository.UserRepository, due []repository.Announcement, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", outPath)
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	w := csv.NewWriter(gz)

	if err := w.Write([]string{"email", "subject", "discount", "products", "categories"}); err != nil {
		return errors.Wrap(err, "write header")
	}

	// Per-sale columns are identical for every recipient, so build them once.
	cols := make([][4]string, len(due))
	for i := range due {
		cols[i] = saleColumns(due[i])
	}

	seen := bloom.NewWithEstimates(recipientCapacity, recipientFPR)
	emails := make(chan string, 1024)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(emails)
		return users.ActiveUserEmails(ctx, func(email string) error {
			if seen.TestAndAddString(email) {
				return nil
			}
			select {
			case emails <- email:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	g.Go(func() error {
		var rows uint64
		for email := range emails {
			for _, c := range cols {
				record := []string{email, c[0], c[1], c[2], c[3]}
				if err := w.Write(record); err != nil {
					return errors.Wrap(err, "write row")
				}
				rows++
				if rows%progressEvery == 0 {
					slog.Info("write progress", slog.Uint64("rows", rows))
				}
			}
		}
		slog.Info("rows written", slog.Uint64("rows", rows))
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip stream")
	}
	return f.Close()
}
