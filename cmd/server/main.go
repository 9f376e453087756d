// Package main implements remotestore, an HTTP server exposing a
// remoteStorage-compatible document tree.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              remotestore                │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health        - Health check        │
//	│    /info          - Backend and stats   │
//	│    /storage/*     - Documents, folders  │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    server         - HTTP handlers       │
//	│    auth.Authority - Bearer tokens       │
//	│    Database       - Serialized store    │
//	└─────────────────────────────────────────┘
//
// Configuration comes from defaults, an optional YAML file, RS_* environment
// variables and finally the command line, later sources winning.
//
// Example usage:
//
//	RS_TOKEN_SECRET=s3cret remotestore serve --backend=folder --data=/var/lib/rs
//	TOKEN=$(RS_TOKEN_SECRET=s3cret remotestore token --subject=alice)
//	curl -X PUT -H "Authorization: Bearer $TOKEN" \
//	  -H "Content-Type: text/plain" -d milk localhost:8080/storage/notes/todo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/dreamware/remotestore/internal/auth"
	"github.com/dreamware/remotestore/internal/config"
	"github.com/dreamware/remotestore/internal/database"
)

// Version is reported by --version.
const Version = "0.1.0"

const usage = `remotestore.

Usage:
    remotestore serve [--config=<file>] [--listen=<addr>] [--backend=<name>]
        [--data=<dir>] [--verbosity=<level>]
    remotestore token --subject=<subject> [--config=<file>] [--ttl=<duration>]
    remotestore -h | --help
    remotestore --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<file>        YAML configuration file.
    --listen=<addr>        Listen address, e.g. :8080.
    --backend=<name>       Storage backend: memory, folder or kv.
    --data=<dir>           Data directory of the folder backend.
    --verbosity=<level>    Log verbosity.
    --subject=<subject>    Token subject.
    --ttl=<duration>       Token lifetime, e.g. 24h.`

// logFatal is a variable so tests can intercept fatal errors.
var logFatal = glog.Fatalf

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer glog.Flush()

	if isToken, _ := opts.Bool("token"); isToken {
		if err := runToken(opts, os.Stdout); err != nil {
			logFatal("token: %v", err)
		}
	} else if isServe, _ := opts.Bool("serve"); isServe {
		serve(opts)
	}
}

// loadConfig builds the configuration and overlays the command line options.
func loadConfig(opts docopt.Opts) (config.Config, error) {
	path, _ := opts.String("--config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := opts.String("--listen"); v != "" {
		cfg.Listen = v
	}
	if v, _ := opts.String("--backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := opts.String("--data"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := opts.String("--verbosity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("--verbosity: %w", err)
		}
		cfg.Verbosity = n
	}
	if v, _ := opts.String("--ttl"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("--ttl: %w", err)
		}
		cfg.TokenTTL = ttl
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupLogging points glog at stderr with the configured verbosity.
func setupLogging(verbosity int) {
	flag.Set("logtostderr", "true")
	flag.Set("v", strconv.Itoa(verbosity))
}

// runToken prints a signed token for --subject.
func runToken(opts docopt.Opts, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	subject, err := opts.String("--subject")
	if err != nil || subject == "" {
		return errors.New("--subject is required")
	}
	token, err := auth.NewAuthority(cfg.TokenSecret).Issue(subject, cfg.TokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func serve(opts docopt.Opts) {
	cfg, err := loadConfig(opts)
	if err != nil {
		logFatal("config: %v", err)
		return
	}
	setupLogging(cfg.Verbosity)

	db, err := database.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		logFatal("open %s backend: %v", cfg.Backend, err)
		return
	}
	srv := newServer(db, auth.NewAuthority(cfg.TokenSecret))

	s := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		glog.Infof("remotestore listening on %s (backend %s)", cfg.Listen, cfg.Backend)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		glog.Warningf("server shutdown: %v", err)
	}
	glog.Info("remotestore stopped")
}
