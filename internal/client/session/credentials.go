package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/wishkeeper/internal/client/remote"
	"github.com/atinyakov/wishkeeper/internal/models"
)

const requestTimeout = 10 * time.Second

func loadCAPool(caPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	return caPool, nil
}

// NewAnonymousClient returns an HTTPS client that trusts caPath but presents
// no client certificate. It is enough for registration and the catalog.
func NewAnonymousClient(caPath string) (*http.Client, error) {
	caPool, err := loadCAPool(caPath)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Transport: transport, Timeout: requestTimeout}, nil
}

// LoadClientCertificate returns an HTTPS client that authenticates with the
// certificate in certFile/keyFile and trusts the CA in caFile.
func LoadClientCertificate(certFile, keyFile, caFile string) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	caPool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: requestTimeout}, nil
}

// Credentials locates the client certificate and key on disk.
type Credentials struct {
	CertFile string
	KeyFile  string
}

// Exist reports whether both files are present.
func (c Credentials) Exist() bool {
	_, errCert := os.Stat(c.CertFile)
	_, errKey := os.Stat(c.KeyFile)
	return errCert == nil && errKey == nil
}

// Register creates an account for email at baseURL and saves the issued
// certificate and key to creds.
func Register(ctx context.Context, client *http.Client, baseURL, email string, creds Credentials) (*models.Identity, error) {
	b, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/register", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, remote.NewStatusError(resp.StatusCode, data)
	}

	var out struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
		Cert  string `json:"cert"`
		Key   string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Cert == "" || out.Key == "" {
		return nil, errors.New("server returned no credentials")
	}
	if err := os.WriteFile(creds.CertFile, []byte(out.Cert), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", creds.CertFile, err)
	}
	if err := os.WriteFile(creds.KeyFile, []byte(out.Key), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", creds.KeyFile, err)
	}
	return &models.Identity{UID: out.UID, Email: out.Email}, nil
}
