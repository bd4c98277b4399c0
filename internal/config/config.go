// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON config file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// RedisAddr enables the wishlist query cache when set.
	RedisAddr string `json:"redis_addr" env:"REDIS_ADDR"`

	// CacheTTL bounds how long a cached wishlist stays valid.
	CacheTTL time.Duration `json:"cache_ttl" env:"CACHE_TTL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// CatalogFile is an optional YAML or JSON catalog; the demo catalog is served otherwise.
	CatalogFile string `json:"catalog_file" env:"CATALOG_FILE"`

	// CertsDir holds ca.crt, ca.key, server.crt and server.key.
	CertsDir string `json:"certs_dir" env:"CERTS_DIR"`

	// CleanupInterval is how often soft-deleted wishlist records are purged.
	CleanupInterval time.Duration `json:"cleanup_interval" env:"CLEANUP_INTERVAL"`

	// Retention is how long soft-deleted wishlist records are kept.
	Retention time.Duration `json:"retention" env:"RETENTION"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// Parse parses os.Args and the environment. It exits the process on error.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs parses the command-line args, then overlays the config file
// and finally the environment variables.
func ParseArgs(args []string) (*Options, error) {
	options := &Options{}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.RedisAddr, "r", "", "redis address for the wishlist cache")
	fs.DurationVar(&options.CacheTTL, "cache-ttl", 5*time.Minute, "wishlist cache ttl")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&options.CatalogFile, "catalog", "", "path to catalog file (yaml or json)")
	fs.StringVar(&options.CertsDir, "certs", "certs", "directory with CA and server certificates")
	fs.DurationVar(&options.CleanupInterval, "cleanup-interval", time.Hour, "soft-delete cleanup interval")
	fs.DurationVar(&options.Retention, "retention", 30*24*time.Hour, "soft-delete retention")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(options); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return options, nil
}
