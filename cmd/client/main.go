// Package main is the WishKeeper command-line client. It registers accounts
// and runs an interactive shell for browsing the catalog and managing the
// wishlist.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/catalog"
	"github.com/atinyakov/wishkeeper/internal/client/remote"
	"github.com/atinyakov/wishkeeper/internal/client/session"
	"github.com/atinyakov/wishkeeper/internal/logger"
	"github.com/atinyakov/wishkeeper/internal/wishlist"
)

var (
	version   string
	buildDate string
)

type options struct {
	cmd         string
	baseURL     string
	certFile    string
	keyFile     string
	caFile      string
	sessionFile string
	email       string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&o.cmd, "cmd", "shell", "command: register | shell")
	fs.StringVar(&o.baseURL, "url", "https://localhost:8080", "server base URL")
	fs.StringVar(&o.certFile, "cert", "client.crt", "path to client cert")
	fs.StringVar(&o.keyFile, "key", "client.key", "path to client key")
	fs.StringVar(&o.caFile, "ca", "certs/ca.crt", "path to CA cert")
	fs.StringVar(&o.sessionFile, "session", ".wishkeeper-session", "path to the sealed session file")
	fs.StringVar(&o.email, "email", "", "e-mail for registration")
	fs.StringVar(&o.logLevel, "log-level", "error", "log level")
	fs.BoolVar(&o.showVersion, "version", false, "show build version and date")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("WishKeeper Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	l := logger.New()
	if err := l.Init(opts.logLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	creds := session.Credentials{CertFile: opts.certFile, KeyFile: opts.keyFile}

	switch opts.cmd {
	case "register":
		if opts.email == "" {
			log.Fatal("please provide -email=address")
		}
		client, err := session.NewAnonymousClient(opts.caFile)
		if err != nil {
			log.Fatal(err)
		}
		id, err := session.Register(ctx, client, opts.baseURL, opts.email, creds)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Registered %s (uid %s); credentials saved to %s and %s\n",
			id.Email, id.UID, creds.CertFile, creds.KeyFile)
	case "shell":
		if !creds.Exist() {
			log.Fatalf("no credentials at %s; run with -cmd register -email=address first", creds.CertFile)
		}
		if err := runShell(ctx, opts, creds, l.Log); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown command: %s", opts.cmd)
	}
}

func runShell(ctx context.Context, opts *options, creds session.Credentials, zl *zap.Logger) error {
	client, err := session.LoadClientCertificate(creds.CertFile, creds.KeyFile, opts.caFile)
	if err != nil {
		return err
	}
	certPEM, err := os.ReadFile(creds.CertFile)
	if err != nil {
		return err
	}

	sess, err := session.New(client, opts.baseURL, opts.sessionFile, certPEM, zl.Named("session"))
	if err != nil {
		return err
	}
	repo := remote.New(client, opts.baseURL, remote.DefaultBreakerConfig(), zl.Named("remote"))
	store := wishlist.New(repo, wishlist.WithLogger(zl.Named("wishlist")))

	detach := store.Attach(ctx, sess)
	defer detach()

	if id, err := sess.Restore(); err != nil {
		zl.Warn("session not restored", zap.Error(err))
	} else if id != nil {
		fmt.Printf("Welcome back, %s\n", id.Email)
	}

	sh := &shell{
		catalog: catalog.NewHTTPClient(client, opts.baseURL),
		store:   store,
		session: sess,
		out:     os.Stdout,
		prompt:  "wishkeeper> ",
	}
	sh.run(ctx, os.Stdin)
	return nil
}
