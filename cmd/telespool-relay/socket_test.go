// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/telemetry"
	"github.com/bureau-foundation/telespool/lib/testutil"
)

// fakeSubmitter records every batch on a channel. When release is
// set, Submit blocks until it is closed.
type fakeSubmitter struct {
	accept  bool
	err     error
	release chan struct{}
	batches chan []telemetry.Record
}

func newFakeSubmitter(accept bool) *fakeSubmitter {
	return &fakeSubmitter{accept: accept, batches: make(chan []telemetry.Record, 16)}
}

func (f *fakeSubmitter) Submit(_ context.Context, records []telemetry.Record) (bool, error) {
	f.batches <- records
	if f.release != nil {
		<-f.release
	}
	return f.accept, f.err
}

func newTestRelay(threshold int, submitter *fakeSubmitter, c clock.Clock) *Relay {
	return &Relay{
		accumulator: NewAccumulator(threshold),
		pipeline:    submitter,
		clock:       c,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func recordLine(t *testing.T, record telemetry.Record) string {
	t.Helper()
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return string(data) + "\n"
}

// serveConnection runs handleConnection on one end of a pipe and
// returns the other end plus a channel closed when the handler exits.
func serveConnection(ctx context.Context, relay *Relay) (net.Conn, <-chan struct{}) {
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.handleConnection(ctx, server)
	}()
	return client, done
}

func TestHandleConnectionFlushesAtThreshold(t *testing.T) {
	submitter := newFakeSubmitter(true)
	relay := newTestRelay(2, submitter, clock.Real())
	source := testutil.UniqueID("producer")

	client, done := serveConnection(context.Background(), relay)
	input := recordLine(t, testRecord(source, 0)) +
		"\n" +
		"not json\n" +
		`{"kind":"metric","time":1}` + "\n" +
		recordLine(t, testRecord(source, 1)) +
		recordLine(t, testRecord(source, 2))
	if _, err := io.WriteString(client, input); err != nil {
		t.Fatalf("writing records: %v", err)
	}
	client.Close()
	testutil.RequireClosed(t, done, 5*time.Second, "handler exit")

	batch := testutil.RequireReceive(t, submitter.batches, 5*time.Second, "threshold flush")
	if len(batch) != 2 {
		t.Fatalf("batch has %d records, want 2", len(batch))
	}
	for i, record := range batch {
		if record.Source != source || record.Metric.Value != float64(i) {
			t.Errorf("record %d = %+v", i, record)
		}
	}

	if got := relay.received.Load(); got != 3 {
		t.Errorf("received = %d, want 3", got)
	}
	if got := relay.rejected.Load(); got != 2 {
		t.Errorf("rejected = %d, want 2", got)
	}
	if got := relay.accumulator.Len(); got != 1 {
		t.Errorf("accumulator holds %d records, want 1", got)
	}
}

func TestHandleConnectionLineTooLong(t *testing.T) {
	submitter := newFakeSubmitter(true)
	relay := newTestRelay(0, submitter, clock.Real())

	client, done := serveConnection(context.Background(), relay)
	go func() {
		// The handler hangs up partway through, so this write fails.
		io.WriteString(client, strings.Repeat("x", maxRecordLine+1)+"\n")
		client.Close()
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "handler exit")

	if got := relay.rejected.Load(); got != 1 {
		t.Errorf("rejected = %d, want 1", got)
	}
	if relay.accumulator.Len() != 0 {
		t.Errorf("accumulator holds %d records", relay.accumulator.Len())
	}
}

func TestFlushCountsLostRecords(t *testing.T) {
	tests := []struct {
		name     string
		accept   bool
		err      error
		wantLost uint64
	}{
		{"accepted", true, nil, 0},
		{"declined", false, nil, 3},
		{"error", false, errors.New("invalid argument"), 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			submitter := newFakeSubmitter(test.accept)
			submitter.err = test.err
			relay := newTestRelay(0, submitter, clock.Real())
			for i := range 3 {
				relay.accumulator.Add(testRecord("web", i))
			}

			relay.flush(context.Background())

			testutil.RequireReceive(t, submitter.batches, 5*time.Second, "batch")
			if got := relay.lost.Load(); got != test.wantLost {
				t.Errorf("lost = %d, want %d", got, test.wantLost)
			}
		})
	}
}

func TestFlushEmptyAccumulatorSubmitsNothing(t *testing.T) {
	submitter := newFakeSubmitter(true)
	relay := newTestRelay(0, submitter, clock.Real())

	relay.flush(context.Background())

	select {
	case batch := <-submitter.batches:
		t.Fatalf("unexpected batch of %d records", len(batch))
	default:
	}
}

func TestFlushLoopFlushesOnTick(t *testing.T) {
	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	submitter := newFakeSubmitter(true)
	relay := newTestRelay(0, submitter, fakeClock)
	relay.accumulator.Add(testRecord("web", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.runFlushLoop(ctx, 5*time.Second)
	}()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(5 * time.Second)
	batch := testutil.RequireReceive(t, submitter.batches, 5*time.Second, "timer flush")
	if len(batch) != 1 {
		t.Errorf("batch has %d records, want 1", len(batch))
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "flush loop exit")
}

func TestRunWaitsForFlushInProgress(t *testing.T) {
	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	submitter := newFakeSubmitter(true)
	submitter.release = make(chan struct{})
	relay := newTestRelay(0, submitter, fakeClock)
	relay.accumulator.Add(testRecord("web", 0))

	path := shortSocketPath(t)
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- relay.Run(ctx, listener, 5*time.Second) }()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(5 * time.Second)
	testutil.RequireReceive(t, submitter.batches, 5*time.Second, "timer flush")

	// The tick's Submit is still blocked; Run must not return yet.
	cancel()
	select {
	case err := <-runDone:
		t.Fatalf("Run returned (%v) while a flush was still submitting", err)
	case <-time.After(100 * time.Millisecond): //nolint:realclock negative check
	}

	close(submitter.release)
	if err := testutil.RequireReceive(t, runDone, 5*time.Second, "run exit"); err != nil {
		t.Errorf("Run: %v", err)
	}
}

// shortSocketPath keeps the socket path under the sun_path limit,
// which t.TempDir paths can exceed.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tsr")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "relay.sock")
}

func TestServeOverUnixSocket(t *testing.T) {
	path := shortSocketPath(t)
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	submitter := newFakeSubmitter(true)
	relay := newTestRelay(2, submitter, clock.Real())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- relay.Serve(ctx, listener) }()

	connection, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	input := recordLine(t, testRecord("db", 0)) + recordLine(t, testRecord("db", 1))
	if _, err := io.WriteString(connection, input); err != nil {
		t.Fatalf("writing records: %v", err)
	}

	batch := testutil.RequireReceive(t, submitter.batches, 5*time.Second, "batch over socket")
	if len(batch) != 2 {
		t.Errorf("batch has %d records, want 2", len(batch))
	}

	// The connection is still open; cancellation must close it.
	cancel()
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "serve exit"); err != nil {
		t.Errorf("Serve: %v", err)
	}
	connection.Close()

	if _, err := net.Dial("unix", path); err == nil {
		t.Error("listener still accepting after Serve returned")
	}
}
