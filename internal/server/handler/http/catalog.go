package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/catalog"
	"github.com/atinyakov/wishkeeper/internal/models"
)

// CatalogHandler serves the product catalog.
type CatalogHandler struct {
	Catalog catalog.Service
	Log     *zap.Logger
}

// List handles GET /api/products. An optional ?category= narrows the result.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListAll(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		products = catalog.ByCategory(products, category)
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Catalog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if p == nil {
		writeError(w, h.Log, apperrors.NotFound("product", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
