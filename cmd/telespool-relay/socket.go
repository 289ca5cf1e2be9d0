// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/netutil"
	"github.com/bureau-foundation/telespool/lib/telemetry"
)

// maxRecordLine bounds one JSON line. A longer line ends the
// connection.
const maxRecordLine = 1 << 20

// submitter accepts batches; *pipeline.Pipeline in production.
type submitter interface {
	Submit(ctx context.Context, records []telemetry.Record) (bool, error)
}

// Relay holds the relay's runtime state, shared between connection
// handlers and the flush loop.
type Relay struct {
	accumulator *Accumulator
	pipeline    submitter
	clock       clock.Clock
	logger      *slog.Logger

	received atomic.Uint64
	rejected atomic.Uint64
	lost     atomic.Uint64
}

// Run serves listener and flushes the accumulator every interval
// until ctx is cancelled or the listener fails. It returns only after
// the connection handlers and the flush loop have exited, so no
// flush races the caller's final flush or pipeline shutdown.
func (r *Relay) Run(ctx context.Context, listener net.Listener, interval time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		r.runFlushLoop(runCtx, interval)
	}()

	err := r.Serve(runCtx, listener)
	cancel()
	<-flushDone
	return err
}

// Serve accepts producer connections until ctx is cancelled or the
// listener fails, then waits for open connections to finish. The
// listener is closed on return.
func (r *Relay) Serve(ctx context.Context, listener net.Listener) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(serveCtx, func() { listener.Close() })
	defer stop()

	var connections sync.WaitGroup
	defer connections.Wait()

	for {
		connection, err := listener.Accept()
		if err != nil {
			if serveCtx.Err() != nil {
				return nil
			}
			cancel()
			return fmt.Errorf("accepting connection: %w", err)
		}
		connections.Add(1)
		go func() {
			defer connections.Done()
			r.handleConnection(serveCtx, connection)
		}()
	}
}

// handleConnection reads JSON records line by line. Malformed or
// invalid lines are counted and skipped; the connection stays open.
func (r *Relay) handleConnection(ctx context.Context, connection net.Conn) {
	defer connection.Close()
	stop := context.AfterFunc(ctx, func() { connection.Close() })
	defer stop()

	scanner := bufio.NewScanner(connection)
	scanner.Buffer(make([]byte, 0, 64<<10), maxRecordLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		record, err := parseRecord(line)
		if err != nil {
			r.rejected.Add(1)
			r.logger.Warn("rejected telemetry record", "error", err)
			continue
		}
		r.received.Add(1)
		if r.accumulator.Add(record) {
			r.flush(ctx)
		}
	}

	err := scanner.Err()
	switch {
	case err == nil, ctx.Err() != nil, netutil.IsExpectedCloseError(err):
	case errors.Is(err, bufio.ErrTooLong):
		r.rejected.Add(1)
		r.logger.Warn("dropping producer connection: record line too long", "max_bytes", maxRecordLine)
	default:
		r.logger.Warn("reading producer connection failed", "error", err)
	}
}

func parseRecord(line []byte) (telemetry.Record, error) {
	var record telemetry.Record
	if err := json.Unmarshal(line, &record); err != nil {
		return telemetry.Record{}, fmt.Errorf("decoding record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return telemetry.Record{}, err
	}
	return record, nil
}

// flush drains the accumulator into one pipeline batch. Called both
// by connection handlers when the threshold is reached and by the
// flush loop.
func (r *Relay) flush(ctx context.Context) {
	records := r.accumulator.Flush()
	if records == nil {
		return
	}

	accepted, err := r.pipeline.Submit(ctx, records)
	if err != nil {
		r.logger.Error("submitting telemetry batch failed",
			"error", err,
			"records", len(records),
		)
		r.lost.Add(uint64(len(records)))
		return
	}
	if !accepted {
		r.lost.Add(uint64(len(records)))
	}
}

// runFlushLoop periodically flushes the accumulator so records ship
// even when traffic never reaches the threshold. The loop runs until
// ctx is cancelled.
func (r *Relay) runFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}
