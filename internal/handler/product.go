package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/solient/storefront/internal/domain/product"
)

type productPayload struct {
	ID    int64       `json:"id"`
	Slug  string      `json:"slug"`
	Title string      `json:"title"`
	Price json.Number `json:"price"`
}

// listProducts handles GET /products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	payload := make([]productPayload, len(list))
	for i, p := range list {
		payload[i] = renderProduct(p)
	}
	writeJSON(w, http.StatusOK, map[string][]productPayload{"products": payload})
}

// getProduct handles GET /products/{ref}. A numeric ref is treated as a
// product ID, anything else as a slug.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var (
		p   *product.Product
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		p, err = h.products.GetByID(r.Context(), id)
	} else {
		p, err = h.products.GetBySlug(r.Context(), ref)
	}
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]productPayload{"product": renderProduct(*p)})
}

func renderProduct(p product.Product) productPayload {
	return productPayload{
		ID:    p.ID,
		Slug:  p.Slug,
		Title: p.Title,
		Price: money(p.PriceCents),
	}
}
