// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/telespool/lib/transmission"
)

// recordingOutput returns a fixed answer and records every Send.
type recordingOutput struct {
	accept bool
	panics bool

	mu       sync.Mutex
	received []*transmission.Transmission
	stopped  int
}

func (r *recordingOutput) Send(_ context.Context, t *transmission.Transmission) bool {
	r.mu.Lock()
	r.received = append(r.received, t)
	r.mu.Unlock()
	if r.panics {
		panic("recordingOutput: told to panic")
	}
	return r.accept
}

func (r *recordingOutput) Stop(time.Duration) {
	r.mu.Lock()
	r.stopped++
	r.mu.Unlock()
}

func (r *recordingOutput) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// gatedTransport blocks each Post until the test sends an answer on
// release. started receives once per Post entry.
type gatedTransport struct {
	started chan []byte
	release chan bool
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		started: make(chan []byte, 16),
		release: make(chan bool),
	}
}

func (g *gatedTransport) Post(ctx context.Context, payload []byte, _, _ string) bool {
	g.started <- payload
	select {
	case ok := <-g.release:
		return ok
	case <-ctx.Done():
		return false
	}
}

func newTestTransmission(t *testing.T, payload string) *transmission.Transmission {
	t.Helper()
	created, err := transmission.New([]byte(payload), transmission.ContentTypeJSONStream, transmission.EncodingGzip, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("transmission.New: %v", err)
	}
	return created
}
