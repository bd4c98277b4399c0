package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/wishkeeper/internal/certgen"
	"github.com/atinyakov/wishkeeper/internal/client/remote"
	"github.com/atinyakov/wishkeeper/internal/models"
)

var testCert = []byte("-----BEGIN CERTIFICATE-----\nZmFrZQ==\n-----END CERTIFICATE-----\n")

func loginServer(t *testing.T, status int, id models.Identity) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "user not found", status)
			return
		}
		_ = json.NewEncoder(w).Encode(id)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	mu   sync.Mutex
	seen []*models.Identity
}

func (r *recorder) listen(id *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, id)
}

func (r *recorder) uids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.seen))
	for _, id := range r.seen {
		if id == nil {
			out = append(out, "")
			continue
		}
		out = append(out, id.UID)
	}
	return out
}

func TestSession_SignInPersistsAndPublishes(t *testing.T) {
	srv := loginServer(t, http.StatusOK, models.Identity{UID: "u1", Email: "alice@example.com"})
	path := filepath.Join(t.TempDir(), "session")

	s, err := New(srv.Client(), srv.URL, path, testCert, nil)
	require.NoError(t, err)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.listen)
	defer unsubscribe()

	id, err := s.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "u1", s.Current().UID)
	assert.Equal(t, []string{"", "u1"}, rec.uids())

	sealed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "alice@example.com")
}

func TestSession_RestoreAfterRestart(t *testing.T) {
	srv := loginServer(t, http.StatusOK, models.Identity{UID: "u1", Email: "alice@example.com"})
	path := filepath.Join(t.TempDir(), "session")

	first, err := New(srv.Client(), srv.URL, path, testCert, nil)
	require.NoError(t, err)
	_, err = first.SignIn(context.Background())
	require.NoError(t, err)

	second, err := New(srv.Client(), srv.URL, path, testCert, nil)
	require.NoError(t, err)
	rec := &recorder{}
	second.Subscribe(rec.listen)

	id, err := second.Restore()
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, []string{"", "u1"}, rec.uids())
}

func TestSession_RestoreWithOtherCertificateFails(t *testing.T) {
	srv := loginServer(t, http.StatusOK, models.Identity{UID: "u1"})
	path := filepath.Join(t.TempDir(), "session")

	first, err := New(srv.Client(), srv.URL, path, testCert, nil)
	require.NoError(t, err)
	_, err = first.SignIn(context.Background())
	require.NoError(t, err)

	other, err := New(srv.Client(), srv.URL, path, []byte("another certificate"), nil)
	require.NoError(t, err)
	_, err = other.Restore()
	assert.ErrorContains(t, err, "open session file")
	assert.Nil(t, other.Current())
}

func TestSession_RestoreWithoutFile(t *testing.T) {
	s, err := New(http.DefaultClient, "http://unused", filepath.Join(t.TempDir(), "missing"), testCert, nil)
	require.NoError(t, err)

	id, err := s.Restore()
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestSession_SignOut(t *testing.T) {
	srv := loginServer(t, http.StatusOK, models.Identity{UID: "u1"})
	path := filepath.Join(t.TempDir(), "session")
	s, err := New(srv.Client(), srv.URL, path, testCert, nil)
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	_, err = s.SignIn(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.SignOut())

	assert.Nil(t, s.Current())
	assert.NoFileExists(t, path)
	assert.Equal(t, []string{"", "u1", ""}, rec.uids())

	// signing out twice is harmless
	assert.NoError(t, s.SignOut())
}

func TestSession_SignInRejected(t *testing.T) {
	srv := loginServer(t, http.StatusUnauthorized, models.Identity{})
	s, err := New(srv.Client(), srv.URL, filepath.Join(t.TempDir(), "session"), testCert, nil)
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	_, err = s.SignIn(context.Background())
	assert.ErrorContains(t, err, "server error 401: user not found")
	assert.True(t, remote.IsStatus(err, http.StatusUnauthorized))
	assert.Nil(t, s.Current())
	assert.Equal(t, []string{""}, rec.uids())
}

func TestSession_Unsubscribe(t *testing.T) {
	srv := loginServer(t, http.StatusOK, models.Identity{UID: "u1"})
	s, err := New(srv.Client(), srv.URL, filepath.Join(t.TempDir(), "session"), testCert, nil)
	require.NoError(t, err)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.listen)
	unsubscribe()
	unsubscribe()

	_, err = s.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, rec.uids())
}

func TestNew_RequiresCertificate(t *testing.T) {
	_, err := New(http.DefaultClient, "http://unused", "session", nil, nil)
	assert.Error(t, err)
}

func TestSeal_RoundTrip(t *testing.T) {
	aead, err := newAEAD(testCert)
	require.NoError(t, err)

	a, err := seal(aead, []byte("payload"))
	require.NoError(t, err)
	b, err := seal(aead, []byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces must differ")

	plain, err := open(aead, a)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	_, err = open(aead, a[:4])
	assert.Error(t, err)
	a[len(a)-1] ^= 0xff
	_, err = open(aead, a)
	assert.Error(t, err)
}

// TestRegisterAndSignInOverMutualTLS drives the full credential flow against
// a TLS server that verifies client certificates with a test CA.
func TestRegisterAndSignInOverMutualTLS(t *testing.T) {
	dir := t.TempDir()
	ca, err := certgen.NewCA("Test CA", time.Hour)
	require.NoError(t, err)
	caPath := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(caPath, ca.CertPEM(), 0o600))

	serverCertPEM, serverKeyPEM, err := ca.IssueServer("127.0.0.1")
	require.NoError(t, err)
	serverCert, err := tls.X509KeyPair(serverCertPEM, serverKeyPEM)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		certPEM, keyPEM, err := ca.IssueClient("uid-42", req.Email)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uid": "uid-42", "email": req.Email, "cert": string(certPEM), "key": string(keyPEM),
		})
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		cert := r.TLS.PeerCertificates[0]
		_ = json.NewEncoder(w).Encode(models.Identity{UID: cert.Subject.CommonName, Email: cert.EmailAddresses[0]})
	})

	srv := httptest.NewUnstartedServer(mux)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    pool,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	anon, err := NewAnonymousClient(caPath)
	require.NoError(t, err)
	creds := Credentials{CertFile: filepath.Join(dir, "client.crt"), KeyFile: filepath.Join(dir, "client.key")}
	assert.False(t, creds.Exist())

	registered, err := Register(context.Background(), anon, srv.URL, "alice@example.com", creds)
	require.NoError(t, err)
	assert.Equal(t, "uid-42", registered.UID)
	assert.True(t, creds.Exist())

	client, err := LoadClientCertificate(creds.CertFile, creds.KeyFile, caPath)
	require.NoError(t, err)
	certPEM, err := os.ReadFile(creds.CertFile)
	require.NoError(t, err)

	s, err := New(client, srv.URL, filepath.Join(dir, "session"), certPEM, nil)
	require.NoError(t, err)
	id, err := s.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UID: "uid-42", Email: "alice@example.com"}, *id)

	anonSession, err := New(anon, srv.URL, filepath.Join(dir, "anon"), certPEM, nil)
	require.NoError(t, err)
	_, err = anonSession.SignIn(context.Background())
	assert.ErrorContains(t, err, "no client certificate provided")
}

func TestRegister_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"ALREADY_EXISTS","message":"taken"}`, http.StatusConflict)
	}))
	t.Cleanup(srv.Close)
	creds := Credentials{CertFile: filepath.Join(t.TempDir(), "c.crt"), KeyFile: filepath.Join(t.TempDir(), "c.key")}

	_, err := Register(context.Background(), srv.Client(), srv.URL, "a@b.co", creds)
	assert.ErrorContains(t, err, "server error 409: taken")
	assert.True(t, remote.IsStatus(err, http.StatusConflict))
	assert.False(t, creds.Exist())
}

func TestLoadCredentials_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("invalid pem"), 0o600))

	_, err := NewAnonymousClient(filepath.Join(dir, "missing.pem"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = NewAnonymousClient(bad)
	assert.ErrorContains(t, err, "failed to parse CA cert")
	_, err = LoadClientCertificate(bad, bad, bad)
	assert.ErrorContains(t, err, "failed to load client cert/key")
}
