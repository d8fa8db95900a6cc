// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// ffs-server builds a FastFileStats section for a directory tree and
// keeps it current from filesystem change notifications. Clients map
// the section read-only and resolve paths with no syscalls; the
// control socket answers administrative requests (status, rebuild,
// freeze, thaw).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fastfilestats/ffstats/lib/build"
	"github.com/fastfilestats/ffstats/lib/clock"
	"github.com/fastfilestats/ffstats/lib/config"
	"github.com/fastfilestats/ffstats/lib/control"
	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/region"
	"github.com/fastfilestats/ffstats/lib/resolve"
	"github.com/fastfilestats/ffstats/lib/track"
)

// Process exit codes. Monitoring tells a full section apart from a
// broken deployment by these.
const (
	exitFailure     = 1
	exitBuildFailed = 2
	exitRegionFull  = 3
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		switch {
		case errors.Is(err, region.ErrRegionFull):
			os.Exit(exitRegionFull)
		case errors.As(err, new(buildError)):
			os.Exit(exitBuildFailed)
		default:
			os.Exit(exitFailure)
		}
	}
}

// buildError marks a failed section build for exit-code selection.
type buildError struct{ err error }

func (e buildError) Error() string { return e.err.Error() }
func (e buildError) Unwrap() error { return e.err }

func run() error {
	var (
		configPath    string
		root          string
		prefix        string
		sectionDir    string
		maxBytes      uint32
		controlSocket string
		snapshotDir   string
		statsInterval string
		paranoid      bool
	)
	pflag.StringVar(&configPath, "config", "", "path to ffstats.yaml (optional; flags override)")
	pflag.StringVar(&root, "root", "", "directory tree to walk and watch")
	pflag.StringVar(&prefix, "prefix", "", `published drive-qualified prefix, e.g. 'f:\src'`)
	pflag.StringVar(&sectionDir, "section-dir", "", "directory for the section file (default /dev/shm)")
	pflag.Uint32Var(&maxBytes, "max-bytes", 0, "section reservation cap in bytes (default 300 MiB)")
	pflag.StringVar(&controlSocket, "control-socket", "", "control socket path (default <section>.sock)")
	pflag.StringVar(&snapshotDir, "snapshot-dir", "", "default destination for freeze snapshots")
	pflag.StringVar(&statsInterval, "stats-interval", "", `counter logging interval (default "60s")`)
	pflag.BoolVar(&paranoid, "paranoid", false, "abort on developer-time invariant violations")
	pflag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if root != "" {
		cfg.Root = root
	}
	if prefix != "" {
		cfg.Prefix = prefix
	}
	if sectionDir != "" {
		cfg.SectionDir = sectionDir
	}
	if maxBytes != 0 {
		cfg.MaxBytes = maxBytes
	}
	if controlSocket != "" {
		cfg.ControlSocket = controlSocket
	}
	if snapshotDir != "" {
		cfg.SnapshotDir = snapshotDir
	}
	if statsInterval != "" {
		cfg.StatsInterval = statsInterval
	}
	cfg.Paranoid = cfg.Paranoid || paranoid
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, clock.Real())
}

// newLogger builds the process logger: JSON to stderr, info level.
func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// serve wires the section lifecycle: create, build, then a single
// event loop that owns every write to the mapping.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, clk clock.Clock) error {
	sectionPath := cfg.SectionPath()
	sec, err := region.Create(sectionPath, cfg.MaxBytes)
	if err != nil {
		return err
	}
	defer func() {
		sec.Remove()
		sec.Close()
	}()
	logger.Info("section created", "path", sectionPath, "max_bytes", cfg.MaxBytes)

	tree := &enum.OSTree{Root: cfg.Root, Prefix: cfg.Prefix}
	buildStats, err := build.Build(sec, tree, cfg.Prefix, build.Options{
		Logger:   logger,
		Paranoid: cfg.Paranoid,
	})
	if err != nil {
		if errors.Is(err, region.ErrRegionFull) {
			return err
		}
		return buildError{err}
	}

	resolver, err := resolve.New(sec.Bytes(), resolve.Options{})
	if err != nil {
		return buildError{fmt.Errorf("opening freshly built section: %w", err)}
	}

	notifier, err := track.NewInotify(cfg.Root, logger)
	if err != nil {
		return fmt.Errorf("starting change notifications: %w", err)
	}
	defer notifier.Close()

	server := &server{
		cfg:        cfg,
		logger:     logger,
		clk:        clk,
		section:    sec,
		tree:       tree,
		resolver:   resolver,
		applier:    track.NewApplier(resolver, tree, cfg.Prefix, logger),
		buildStats: buildStats,
	}

	controlRequests := make(chan controlCall)
	controlServer, err := control.Serve(cfg.ControlSocketPath(), func(request control.Request) control.Response {
		call := controlCall{request: request, reply: make(chan control.Response, 1)}
		select {
		case controlRequests <- call:
			return <-call.reply
		case <-ctx.Done():
			return control.Response{Error: "server shutting down"}
		}
	}, logger)
	if err != nil {
		return err
	}
	defer controlServer.Close()
	logger.Info("control socket ready", "path", cfg.ControlSocketPath())

	return server.loop(ctx, notifier.Batches(), controlRequests)
}
