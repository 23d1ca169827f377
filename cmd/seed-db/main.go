// Command seed-db loads an initial product catalog and creates a demo user
// with an API key for local development.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solient/storefront/internal/domain/auth"
	"github.com/solient/storefront/internal/domain/product"
	"github.com/solient/storefront/internal/storage/postgres"
)

type productJSON struct {
	Slug  string          `json:"slug"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		email        string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&email, "email", "demo@storefront.local", "email of the seeded user")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SHOP_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, email, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, email, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	raw, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrapf(err, "read products file %s", productsFile)
	}
	var items []productJSON
	if err := json.Unmarshal(raw, &items); err != nil {
		return errors.Wrap(err, "parse products file")
	}

	products := postgres.NewProductRepository(pool)
	for _, it := range items {
		p := product.Product{
			Slug:       it.Slug,
			Title:      it.Title,
			PriceCents: it.Price.Shift(2).IntPart(),
		}
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
	}
	slog.Info("products seeded", slog.Int("count", len(items)))

	users := postgres.NewUserRepository(pool)
	userID, err := users.CreateUser(ctx, email)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))

	apikeys := postgres.NewAPIKeyRepository(pool)
	err = apikeys.Insert(ctx, auth.APIKeyInfo{
		ID:      uuid.New().String(),
		UserID:  userID,
		KeyHash: hex.EncodeToString(mac.Sum(nil)),
		Name:    "seed",
	})
	if err != nil {
		return err
	}

	slog.Info("user seeded", slog.String("email", email), slog.Int64("user_id", userID))
	return nil
}
