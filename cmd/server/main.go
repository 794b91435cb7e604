// Package main is the entry point for the RZN membership server.
//
// The main package stays minimal: read configuration, build the logger,
// hand both to internal/server. All logic lives in imported packages.
//
// USAGE:
//
//	SESSION_SECRET=$(openssl rand -hex 32) rzn-server
//	rzn-server -seed staff.yaml        # create initial staff, then serve
//	rzn-server -export-roster > roster.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/rzn-members/internal/config"
	"github.com/sakif/rzn-members/internal/logging"
	"github.com/sakif/rzn-members/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rzn-server:", err)
		os.Exit(1)
	}
}

func run() error {
	seedPath := flag.String("seed", "", "YAML file of initial accounts to create before serving")
	exportRoster := flag.Bool("export-roster", false, "write the public roster as YAML to stdout and exit")
	flag.Parse()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// === 2. LOGGING ===
	// With -export-roster stdout carries the YAML, so logs go to stderr.
	logOut := os.Stdout
	if *exportRoster {
		logOut = os.Stderr
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOut})
	if err != nil {
		return err
	}

	// === 3. DATABASE DIRECTORY ===
	if cfg.DBDriver == "sqlite" && !strings.HasPrefix(cfg.DBDSN, ":memory:") && !strings.HasPrefix(cfg.DBDSN, "file:") {
		dir := filepath.Dir(cfg.DBDSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	ctx := context.Background()

	// === 4. WIRE EVERYTHING ===
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if *seedPath != "" {
		res, err := srv.Service().LoadSeedFile(ctx, *seedPath)
		if err != nil {
			srv.Close()
			return fmt.Errorf("seeding from %s: %w", *seedPath, err)
		}
		logger.Info("seed file applied",
			slog.String("file", *seedPath),
			slog.Any("created", res.Created),
			slog.Any("skipped", res.Skipped),
		)
	}

	if *exportRoster {
		defer srv.Close()
		out, err := srv.Service().ExportRoster(ctx)
		if err != nil {
			return fmt.Errorf("exporting roster: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}
