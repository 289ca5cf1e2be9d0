// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/telespool/lib/transmission"
)

// fakeDispatcher records every dispatch and answers with accept.
// Each dispatched transmission is also sent on dispatched, which is
// buffered generously so tests can ignore it.
type fakeDispatcher struct {
	accept bool
	panics bool

	mu         sync.Mutex
	received   []*transmission.Transmission
	dispatched chan *transmission.Transmission
}

func newFakeDispatcher(accept bool) *fakeDispatcher {
	return &fakeDispatcher{
		accept:     accept,
		dispatched: make(chan *transmission.Transmission, 64),
	}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, t *transmission.Transmission) (bool, error) {
	f.mu.Lock()
	f.received = append(f.received, t)
	f.mu.Unlock()
	f.dispatched <- t
	if f.panics {
		panic("fakeDispatcher: told to panic")
	}
	return f.accept, nil
}

func (f *fakeDispatcher) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	payloads := make([]string, len(f.received))
	for i, t := range f.received {
		payloads[i] = string(t.Payload())
	}
	return payloads
}

// baseTime anchors creation timestamps in tests.
var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTransmissionAt(t *testing.T, payload string, createdAt time.Time) *transmission.Transmission {
	t.Helper()
	created, err := transmission.New([]byte(payload), transmission.ContentTypeJSONStream, transmission.EncodingGzip, createdAt)
	if err != nil {
		t.Fatalf("transmission.New: %v", err)
	}
	return created
}

func openStore(t *testing.T, dir string, maxBytes int64) *Store {
	t.Helper()
	store, err := Open(StoreConfig{Dir: dir, MaxBytes: maxBytes})
	if err != nil {
		t.Fatalf("Open(%s): %v", dir, err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// filesWithSuffix lists directory entries ending in suffix, sorted.
func filesWithSuffix(t *testing.T, dir, suffix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func writeRaw(t *testing.T, dir, fileName string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile(%s): %v", fileName, err)
	}
	return path
}
