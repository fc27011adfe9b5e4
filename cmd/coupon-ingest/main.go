// Command coupon-ingest bulk-imports coupons from gzip-compressed CSV files.
//
// Each file holds rows of
//
//	code,title,type,discount,minimum_spend,max_customer_uses,expiry
//
// with an optional header row. Codes already stored, or repeated across the
// input, are skipped; the first occurrence wins.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and screen the files without writing")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-ingest [flags] FILE.csv.gz...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args(), dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, dryRun bool) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("parsing files", slog.Int("files", len(files)))

	rows, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	slog.Info("rows parsed", slog.Int("count", len(rows)))

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	cfg, err := postgres.NewShopRepository(pool).Current(ctx)
	if err != nil {
		return errors.Wrap(err, "load shop config")
	}

	seeder := postgres.NewSeeder(pool)
	existing, err := seeder.CouponCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "load existing codes")
	}

	sc := newScreener(existing, seeder.CouponCodeExists)
	fresh, err := sc.screen(ctx, rows)
	if err != nil {
		return errors.Wrap(err, "screen codes")
	}

	slog.Info("screened codes",
		slog.Int("existing", len(existing)),
		slog.Int("new", len(fresh)),
		slog.Int("skipped", len(rows)-len(fresh)),
		slog.Int("bloom_false_positives", sc.falsePositives),
	)

	if len(fresh) == 0 || dryRun {
		slog.Info("nothing written", slog.Bool("dry_run", dryRun))
		return nil
	}

	now := time.Now().UTC()
	for i := range fresh {
		fresh[i].ID = uuid.NewString()
		fresh[i].ShopConfigID = cfg.ID
		fresh[i].CreatedAt = now
		fresh[i].UpdatedAt = now
	}

	return writeCoupons(ctx, seeder, fresh)
}

func writeCoupons(ctx context.Context, seeder *postgres.Seeder, coupons []coupon.Coupon) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	n, err := seeder.CopyCoupons(ctx, coupons)
	if err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	slog.Info("coupons written", slog.Int64("rows", n))
	return nil
}
