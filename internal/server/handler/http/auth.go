// Package http provides the HTTP handlers and router of the WishKeeper server.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/middleware"
	"github.com/atinyakov/wishkeeper/internal/models"
	"github.com/atinyakov/wishkeeper/internal/service"
)

// AuthService defines the authentication operations required by the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, email string) (*service.Registration, error)
	Login(ctx context.Context, id models.Identity) (*models.User, error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	AuthService AuthService
	Log         *zap.Logger
}

// RegisterRequest represents the JSON payload for user registration.
type RegisterRequest struct {
	Email string `json:"email"`
}

// RegisterResponse carries the new user and its PEM-encoded client credentials.
type RegisterResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Cert  string `json:"cert"`
	Key   string `json:"key"`
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	reg, err := h.AuthService.Register(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("user registered", zap.String("uid", reg.User.ID))
	writeJSON(w, http.StatusCreated, RegisterResponse{
		UID:   reg.User.ID,
		Email: reg.User.Email,
		Cert:  string(reg.CertPEM),
		Key:   string(reg.KeyPEM),
	})
}

// Login handles POST /api/login. The identity comes from the client certificate.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Log, apperrors.Unauthorized("client certificate required"))
		return
	}

	u, err := h.AuthService.Login(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Identity{UID: u.ID, Email: u.Email})
}
