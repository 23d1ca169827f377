//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/solient/storefront/internal/domain/order"
	"github.com/solient/storefront/internal/domain/product"
	"github.com/solient/storefront/internal/domain/user"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	testPool, err = NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

// seedUser creates a user with a unique email and returns its ID.
func seedUser(t *testing.T, ctx context.Context) int64 {
	t.Helper()
	id, err := NewUserRepository(testPool).CreateUser(ctx,
		fmt.Sprintf("%s@storefront.local", uuid.New()))
	require.NoError(t, err)
	return id
}

// seedProduct upserts a product with a unique slug and returns it.
func seedProduct(t *testing.T, ctx context.Context, priceCents int64) product.Product {
	t.Helper()
	repo := NewProductRepository(testPool)
	slug := "it-" + uuid.New().String()
	require.NoError(t, repo.Upsert(ctx, product.Product{
		Slug:       slug,
		Title:      "Integration " + slug,
		PriceCents: priceCents,
	}))
	p, err := repo.GetBySlug(ctx, slug)
	require.NoError(t, err)
	return *p
}

func makeOrder(userID int64, p product.Product, qty int, at time.Time) *order.Order {
	return &order.Order{
		ID:     uuid.New().String(),
		UserID: userID,
		Lines: []order.Line{{
			ProductID:      p.ID,
			Slug:           p.Slug,
			Title:          p.Title,
			UnitPriceCents: p.PriceCents,
			Quantity:       qty,
		}},
		TotalCents: p.PriceCents * int64(qty),
		Status:     order.StatusPaid,
		CreatedAt:  at,
	}
}

func TestSumQuantityByProduct_BoundaryInclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	userID := seedUser(t, ctx)
	p := seedProduct(t, ctx, 650)

	// timestamptz keeps microseconds; truncate so equality is exact.
	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, makeOrder(userID, p, 2, at)))

	// since == created_at: the committed row still counts.
	sums, err := repo.SumQuantityByProduct(ctx, userID, []int64{p.ID}, at)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{p.ID: 2}, sums)

	// One microsecond later the row has aged out.
	sums, err = repo.SumQuantityByProduct(ctx, userID, []int64{p.ID}, at.Add(time.Microsecond))
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestSumQuantityByProduct_ScopedToUserAndProducts(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	buyer := seedUser(t, ctx)
	other := seedUser(t, ctx)
	wanted := seedProduct(t, ctx, 650)
	unrelated := seedProduct(t, ctx, 800)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, makeOrder(buyer, wanted, 1, at)))
	require.NoError(t, repo.Create(ctx, makeOrder(buyer, unrelated, 3, at)))
	require.NoError(t, repo.Create(ctx, makeOrder(other, wanted, 5, at)))

	sums, err := repo.SumQuantityByProduct(ctx, buyer, []int64{wanted.ID}, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{wanted.ID: 1}, sums,
		"other users and unrequested products must not count")
}

func TestCreate_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	userID := seedUser(t, ctx)
	p := seedProduct(t, ctx, 650)

	at := time.Now().UTC().Truncate(time.Microsecond)
	o := makeOrder(userID, p, 1, at)
	// Second line violates the quantity check, failing the batch after the
	// header insert succeeded.
	o.Lines = append(o.Lines, order.Line{
		ProductID: p.ID,
		Slug:      p.Slug,
		Title:     p.Title,
		Quantity:  0,
	})

	require.Error(t, repo.Create(ctx, o))

	// Nothing of the order is visible: no header, no lines, no window sum.
	_, err := repo.Get(ctx, o.ID, userID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	sums, err := repo.SumQuantityByProduct(ctx, userID, []int64{p.ID}, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestCreateGetList_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	userID := seedUser(t, ctx)
	stranger := seedUser(t, ctx)
	p := seedProduct(t, ctx, 650)

	at := time.Now().UTC().Truncate(time.Microsecond)
	first := makeOrder(userID, p, 2, at.Add(-time.Second))
	first.ShippingAddress = &user.Address{Line1: "1 Main St", City: "Oslo", PostalCode: "0150", Country: "NO"}
	second := makeOrder(userID, p, 1, at)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.Get(ctx, first.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalCents, got.TotalCents)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, first.Lines[0], got.Lines[0])
	require.NotNil(t, got.ShippingAddress)
	assert.Equal(t, *first.ShippingAddress, *got.ShippingAddress)

	// Scoped to the owner.
	_, err = repo.Get(ctx, first.ID, stranger)
	assert.ErrorIs(t, err, order.ErrNotFound)

	list, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	require.Len(t, list[1].Lines, 1)
}
