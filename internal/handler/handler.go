// Package handler exposes the storefront API over HTTP. Handlers translate
// wire requests into domain calls and map domain errors onto status codes;
// all business rules live in the domain packages.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/solient/storefront/internal/domain/order"
	"github.com/solient/storefront/internal/domain/product"
)

// OrderService is the slice of the order domain the handler consumes.
type OrderService interface {
	Purchase(ctx context.Context, req order.PurchaseRequest) (*order.Order, error)
	Order(ctx context.Context, userID int64, orderID string) (*order.Order, error)
	Orders(ctx context.Context, userID int64) ([]order.Order, error)
}

// Metrics holds the handler's instruments. The zero value disables recording.
type Metrics struct {
	// Purchases counts purchase attempts, labelled by outcome.
	Purchases metric.Int64Counter
}

// NewMetrics creates the handler instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (Metrics, error) {
	meter := mp.Meter("storefront/handler")
	purchases, err := meter.Int64Counter("storefront.purchases")
	if err != nil {
		return Metrics{}, errors.Wrap(err, "create purchases counter")
	}
	return Metrics{Purchases: purchases}, nil
}

// Handler serves the storefront API routes.
type Handler struct {
	products product.Repository
	orders   OrderService
	security *SecurityHandler
	metrics  Metrics
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orders OrderService,
	security *SecurityHandler,
	metrics Metrics,
) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
		security: security,
		metrics:  metrics,
	}
}

// Routes builds the API router. Catalog reads are public; order routes
// require an authenticated API key.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{ref}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(h.security.Authenticate)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})

	return r
}
