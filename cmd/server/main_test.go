package main

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/wishkeeper/internal/certgen"
)

func TestServerTLSConfig(t *testing.T) {
	dir := t.TempDir()
	ca, err := certgen.NewCA("Test CA", time.Hour)
	require.NoError(t, err)
	certPEM, keyPEM, err := ca.IssueServer("localhost")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.crt"), certPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.key"), keyPEM, 0o600))

	cfg, err := serverTLSConfig(dir, ca.Cert)
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotNil(t, cfg.ClientCAs)

	_, err = serverTLSConfig(t.TempDir(), ca.Cert)
	assert.ErrorContains(t, err, "load server cert/key")
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()

	seeded, err := loadCatalog("")
	require.NoError(t, err)
	all, err := seeded.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - id: \"a\"\n    name: Kettle\n    price: 30\n"), 0o600))
	fromFile, err := loadCatalog(path)
	require.NoError(t, err)
	p, err := fromFile.GetByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kettle", p.Name)

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
