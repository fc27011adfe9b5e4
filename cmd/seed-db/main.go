package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-coupons/db"
	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/fixture"
	"github.com/xenking/shop-coupons/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		fixturesFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixturesFile, "fixtures-file", "", "path to a fixtures JSON file (defaults to the embedded set)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or COUPONS_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COUPONS_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COUPONS_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or COUPONS_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COUPONS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixturesFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixturesFile, apiKey, pepper string) error {
	set, err := loadFixtures(fixturesFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)

	if err := seedFixtures(ctx, seeder, set); err != nil {
		return err
	}

	if err := seedAPIKey(ctx, seeder, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func loadFixtures(path string) (*fixture.Set, error) {
	data := db.Fixtures
	if path != "" {
		slog.Info("reading fixtures file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read fixtures file")
		}
	}

	set, err := fixture.ParseBytes(data, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "parse fixtures")
	}
	return set, nil
}

func seedFixtures(ctx context.Context, seeder *postgres.Seeder, set *fixture.Set) error {
	if err := seeder.UpsertShop(ctx, set.Shop); err != nil {
		return errors.Wrap(err, "upsert shop config")
	}
	slog.Info("upserted shop config",
		slog.String("id", set.Shop.ID),
		slog.String("currency", set.Shop.BaseCurrency),
	)

	for _, c := range set.Coupons {
		if err := seeder.UpsertCoupon(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("title", c.Title))
	}

	for _, o := range set.Orders {
		if err := seeder.UpsertOrder(ctx, o); err != nil {
			return errors.Wrapf(err, "upsert order %s", o.ID)
		}

		slog.Info("upserted order",
			slog.String("id", o.ID),
			slog.Int("modifications", len(o.Modifications)),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, seeder *postgres.Seeder, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	if err := seeder.UpsertAPIKey(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeEditCoupons},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default admin key"))

	return nil
}
