// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/config"
	"github.com/bureau-foundation/telespool/lib/pipeline"
	"github.com/bureau-foundation/telespool/lib/transport"
	"github.com/bureau-foundation/telespool/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, socketPath, endpoint, logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("telespool-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket accepting JSONL records (overrides relay.socket_path)")
	flagSet.StringVar(&endpoint, "endpoint", "", "collector URL (overrides network.endpoint)")
	flagSet.StringVar(&logLevel, "log-level", "info", "minimum log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if showVersion {
		fmt.Printf("telespool-relay %s\n", version.Info())
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger := newLogger(level)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Relay.SocketPath = socketPath
	}
	if endpoint != "" {
		cfg.Network.Endpoint = endpoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Network.Endpoint == "" {
		return fmt.Errorf("network.endpoint is required; set it in the config file or pass --endpoint")
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	httpTransport, err := transport.NewHTTP(transport.HTTPConfig{
		Endpoint: cfg.Network.Endpoint,
		Timeout:  cfg.Network.TimeoutDuration(),
		Headers:  cfg.Network.Headers,
		Logger:   logger.With("component", "transport"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	delivery, err := pipeline.New(cfg, httpTransport, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}
	stopTimeout := cfg.Relay.StopTimeoutDuration()
	if err := delivery.Start(ctx); err != nil {
		delivery.Stop(stopTimeout)
		return err
	}

	listener, err := listenUnix(cfg.Relay.SocketPath)
	if err != nil {
		delivery.Stop(stopTimeout)
		return err
	}
	defer os.Remove(cfg.Relay.SocketPath)

	relay := &Relay{
		accumulator: NewAccumulator(cfg.Relay.FlushThreshold),
		pipeline:    delivery,
		clock:       clock.Real(),
		logger:      logger,
	}

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- relay.Run(ctx, listener, cfg.Relay.FlushIntervalDuration())
	}()

	logger.Info("telemetry relay running",
		"version", version.Info(),
		"socket", cfg.Relay.SocketPath,
		"endpoint", httpTransport.Endpoint(),
		"spool_dir", cfg.Spool.Dir,
		"flush_interval", cfg.Relay.FlushIntervalDuration(),
		"flush_threshold", cfg.Relay.FlushThreshold,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		serveErr = <-socketDone
	case serveErr = <-socketDone:
	}
	if serveErr != nil {
		logger.Error("socket server failed", "error", serveErr)
	}

	// Run has returned, so the flush loop is gone. The pipeline is
	// still running and this batch is posted or spooled like any other.
	flushCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	relay.flush(flushCtx)
	cancel()

	delivery.Stop(stopTimeout)
	logger.Info("telemetry relay stopped",
		"records_received", relay.received.Load(),
		"records_rejected", relay.rejected.Load(),
		"records_lost", relay.lost.Load(),
		"batches", relay.accumulator.Batches(),
	)
	return serveErr
}

// loadConfig reads the file named by --config, falling back to
// $TELESPOOL_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// listenUnix binds the producer socket, replacing a stale socket file
// left by a previous process.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o660); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return listener, nil
}
