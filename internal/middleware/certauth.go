// Package middleware provides HTTP middlewares for authentication, logging and metrics.
package middleware

import (
	"context"
	"net/http"

	"github.com/atinyakov/wishkeeper/internal/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// CertAuth is a middleware that enforces mutual TLS authentication.
//
// It checks whether the incoming HTTP request has a verified client
// certificate. The certificate Common Name is the user id and its first
// e-mail SAN is the user e-mail; both are stored in the request context for
// the handlers downstream.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		cert := r.TLS.PeerCertificates[0]
		if cert.Subject.CommonName == "" {
			http.Error(w, "client certificate has no subject", http.StatusUnauthorized)
			return
		}

		id := models.Identity{UID: cert.Subject.CommonName}
		if len(cert.EmailAddresses) > 0 {
			id.Email = cert.EmailAddresses[0]
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by CertAuth.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// GetUserIDFromContext extracts the user ID (Common Name from client certificate)
// from the request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UID
}
