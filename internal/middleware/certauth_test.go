package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestCertAuth_NoCertificate(t *testing.T) {
	dummy := &dummyHandler{}
	h := CertAuth(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/wishlist", nil)
	h.ServeHTTP(rec, req)

	if dummy.called {
		t.Error("did not expect next handler to be called when no certificate provided")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}
}

func TestCertAuth_EmptyCommonName(t *testing.T) {
	dummy := &dummyHandler{}
	h := CertAuth(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/wishlist", nil)
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{{}}}
	h.ServeHTTP(rec, req)

	if dummy.called || rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without calling next, got %d (called=%v)", rec.Code, dummy.called)
	}
}

func TestCertAuth_ValidCertificate(t *testing.T) {
	cert := &x509.Certificate{
		Subject:        pkix.Name{CommonName: "uid-alice"},
		EmailAddresses: []string{"alice@example.com"},
	}
	ts := &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}

	dummy := &dummyHandler{}
	h := CertAuth(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/wishlist", nil)
	req.TLS = ts
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Error("expected next handler to be called when valid certificate provided")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
	id, ok := IdentityFromContext(dummy.ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if id.UID != "uid-alice" || id.Email != "alice@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	empty := GetUserIDFromContext(context.Background())
	if empty != "" {
		t.Errorf("expected empty string for missing user, got '%s'", empty)
	}
	ctx := WithIdentity(context.Background(), models.Identity{UID: "bob"})
	val := GetUserIDFromContext(ctx)
	if val != "bob" {
		t.Errorf("expected 'bob', got '%s'", val)
	}
}
