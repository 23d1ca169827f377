package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solient/storefront/internal/domain/order"
	"github.com/solient/storefront/internal/domain/purchaselimit"
	"github.com/solient/storefront/internal/domain/user"
)

type orderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress *user.Address      `json:"shippingAddress,omitempty"`
	SaveAddress     bool               `json:"saveAddress,omitempty"`
}

type orderItemRequest struct {
	Slug      string `json:"slug,omitempty"`
	ProductID int64  `json:"productId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// ref converts the optional-field wire shape into the tagged domain
// reference. When both are present the numeric ID wins.
func (it orderItemRequest) ref() order.Ref {
	switch {
	case it.ProductID != 0:
		return order.ByID(it.ProductID)
	case it.Slug != "":
		return order.BySlug(it.Slug)
	default:
		return order.Ref{}
	}
}

type orderPayload struct {
	ID              string        `json:"id"`
	Total           json.Number   `json:"total"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	ShippingAddress *user.Address `json:"shippingAddress,omitempty"`
	Items           []linePayload `json:"items"`
}

type linePayload struct {
	ProductID int64       `json:"productId"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
}

type limitExceededResponse struct {
	Error         string               `json:"error"`
	Limit         int                  `json:"limit"`
	WindowSeconds int                  `json:"windowSeconds"`
	Product       limitExceededProduct `json:"product"`
}

type limitExceededProduct struct {
	ID                      int64  `json:"id"`
	Slug                    string `json:"slug,omitempty"`
	RequestedQuantity       int    `json:"requestedQuantity"`
	RecentPurchasedQuantity int    `json:"recentPurchasedQuantity"`
}

// placeOrder handles POST /orders.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.RequestItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.RequestItem{Ref: it.ref(), Quantity: it.Quantity}
	}

	o, err := h.orders.Purchase(r.Context(), order.PurchaseRequest{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		SaveAddress:     req.SaveAddress,
	})
	if err != nil {
		h.countPurchase(r, purchaseOutcome(err))
		h.writePurchaseError(w, r, err)
		return
	}

	h.countPurchase(r, "accepted")
	writeJSON(w, http.StatusCreated, map[string]orderPayload{"order": renderOrder(o)})
}

// getOrder handles GET /orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	o, err := h.orders.Order(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]orderPayload{"order": renderOrder(o)})
}

// listOrders handles GET /orders.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := h.orders.Orders(r.Context(), userID)
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	payload := make([]orderPayload, len(list))
	for i := range list {
		payload[i] = renderOrder(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string][]orderPayload{"orders": payload})
}

// writePurchaseError maps domain errors from Purchase onto wire responses.
func (h *Handler) writePurchaseError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrEmptyItems) {
		writeError(w, http.StatusBadRequest, "invalid request",
			fieldError{Field: "items", Message: "at least one item is required"})
		return
	}

	var missingRef *order.MissingRefError
	if errors.As(err, &missingRef) {
		writeError(w, http.StatusBadRequest, "invalid request",
			fieldError{
				Field:   itemField(missingRef.Index, ""),
				Message: "product reference required (slug or productId)",
			})
		return
	}

	var invalidQty *order.InvalidQuantityError
	if errors.As(err, &invalidQty) {
		writeError(w, http.StatusBadRequest, "invalid request",
			fieldError{
				Field:   itemField(invalidQty.Index, "quantity"),
				Message: "quantity must be a positive integer",
			})
		return
	}

	var notFound *order.ProductNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusBadRequest, notFound.Error())
		return
	}

	var exceeded *purchaselimit.LimitExceededError
	if errors.As(err, &exceeded) {
		writeJSON(w, http.StatusTooManyRequests, limitExceededResponse{
			Error:         exceeded.Error(),
			Limit:         exceeded.Limit,
			WindowSeconds: int(exceeded.Window / time.Second),
			Product: limitExceededProduct{
				ID:                      exceeded.ProductID,
				Slug:                    exceeded.Slug,
				RequestedQuantity:       exceeded.Requested,
				RecentPurchasedQuantity: exceeded.Prior,
			},
		})
		return
	}

	writeServerError(w, r, err)
}

func purchaseOutcome(err error) string {
	var exceeded *purchaselimit.LimitExceededError
	switch {
	case errors.As(err, &exceeded):
		return "rate_limited"
	default:
		return "rejected"
	}
}

func (h *Handler) countPurchase(r *http.Request, outcome string) {
	if h.metrics.Purchases == nil {
		return
	}
	h.metrics.Purchases.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func itemField(index int, sub string) string {
	field := "items[" + strconv.Itoa(index) + "]"
	if sub != "" {
		field += "." + sub
	}
	return field
}

func renderOrder(o *order.Order) orderPayload {
	items := make([]linePayload, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = linePayload{
			ProductID: l.ProductID,
			Slug:      l.Slug,
			Title:     l.Title,
			Price:     money(l.UnitPriceCents),
			Quantity:  l.Quantity,
		}
	}
	return orderPayload{
		ID:              o.ID,
		Total:           money(o.TotalCents),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
	}
}
