package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/middleware"
	"github.com/atinyakov/wishkeeper/internal/models"
)

// WishlistService defines the wishlist operations required by the WishlistHandler.
type WishlistService interface {
	List(ctx context.Context, ownerID string) ([]models.Record, error)
	Add(ctx context.Context, ownerID string, p models.Product) (string, error)
	Remove(ctx context.Context, ownerID, remoteID string) error
}

// WishlistHandler serves the caller's wishlist collection.
type WishlistHandler struct {
	WishlistService WishlistService
	Log             *zap.Logger
}

// CreateRequest is the body of POST /api/wishlist.
type CreateRequest struct {
	Product *models.Product `json:"product"`
}

// CreateResponse is returned by POST /api/wishlist.
type CreateResponse struct {
	RemoteID string `json:"remote_id"`
}

// List handles GET /api/wishlist.
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.WishlistService.List(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Add handles POST /api/wishlist.
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.Product == nil {
		writeError(w, h.Log, apperrors.InvalidInput("product is required"))
		return
	}

	id, err := h.WishlistService.Add(r.Context(), middleware.GetUserIDFromContext(r.Context()), *req.Product)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{RemoteID: id})
}

// Remove handles DELETE /api/wishlist/{remoteID}.
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	remoteID := chi.URLParam(r, "remoteID")
	if err := h.WishlistService.Remove(r.Context(), middleware.GetUserIDFromContext(r.Context()), remoteID); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
