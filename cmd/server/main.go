// Package main initializes and starts the WishKeeper HTTPS server,
// setting up configuration, logging, database connections, the wishlist
// cache, repositories, services, handlers, and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/catalog"
	"github.com/atinyakov/wishkeeper/internal/certgen"
	"github.com/atinyakov/wishkeeper/internal/config"
	"github.com/atinyakov/wishkeeper/internal/db"
	"github.com/atinyakov/wishkeeper/internal/logger"
	"github.com/atinyakov/wishkeeper/internal/repository"
	"github.com/atinyakov/wishkeeper/internal/server/handler/http"
	"github.com/atinyakov/wishkeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	db.StartSoftDeleteCleaner(ctx, postgresDB, options.CleanupInterval, options.Retention, zapLogger)

	// Repositories; the wishlist one is fronted by Redis when configured.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	var wishlistRepo repository.WishlistRepository = repository.NewPostgresWishlistRepository(postgresDB)
	if options.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: options.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("redis unavailable, cache will retry per request", zap.Error(err))
		}
		wishlistRepo = repository.NewCachedWishlistRepository(wishlistRepo, rdb, options.CacheTTL, zapLogger)
		zapLogger.Info("wishlist cache enabled", zap.String("redis", options.RedisAddr))
	}

	ca, err := certgen.LoadCA(
		filepath.Join(options.CertsDir, "ca.crt"),
		filepath.Join(options.CertsDir, "ca.key"),
	)
	if err != nil {
		zapLogger.Fatal("failed to load CA", zap.Error(err))
	}

	products, err := loadCatalog(options.CatalogFile)
	if err != nil {
		zapLogger.Fatal("failed to load catalog", zap.Error(err))
	}

	// Business-logic services and HTTP handlers.
	authService := service.NewAuthService(userRepo, ca)
	wishlistService := service.NewWishlistService(wishlistRepo)

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	wishlistHandler := &http.WishlistHandler{WishlistService: wishlistService, Log: zapLogger}
	catalogHandler := &http.CatalogHandler{Catalog: products, Log: zapLogger}

	router := http.NewRouter(authHandler, wishlistHandler, catalogHandler, zapLogger)

	tlsConfig, err := serverTLSConfig(options.CertsDir, ca.Cert)
	if err != nil {
		zapLogger.Fatal("failed to configure TLS", zap.Error(err))
	}

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

func loadCatalog(path string) (catalog.Service, error) {
	if path == "" {
		return catalog.NewStatic(catalog.Seed()), nil
	}
	return catalog.LoadFile(path)
}

// serverTLSConfig loads the server key pair from certsDir and verifies
// client certificates against ca when they are presented. Registration and
// the catalog are reachable without one.
func serverTLSConfig(certsDir string, ca *x509.Certificate) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(certsDir, "server.crt"),
		filepath.Join(certsDir, "server.key"),
	)
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
