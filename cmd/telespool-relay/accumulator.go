// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"sync"

	"github.com/bureau-foundation/telespool/lib/telemetry"
)

// Accumulator collects records from producer connections until a
// flush takes them as one batch.
//
// Thread-safe: connection handlers call Add while the flush loop and
// threshold checks call Flush.
type Accumulator struct {
	mu             sync.Mutex
	records        []telemetry.Record
	batches        uint64
	flushThreshold int
}

// NewAccumulator creates an Accumulator that asks for a flush once it
// holds flushThreshold records. A threshold of 0 disables count-based
// flushing (the caller must flush on a timer alone).
func NewAccumulator(flushThreshold int) *Accumulator {
	return &Accumulator{flushThreshold: flushThreshold}
}

// Add appends a record. Returns true if the accumulator has reached
// the flush threshold, signaling that the caller should call Flush.
func (a *Accumulator) Add(record telemetry.Record) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return a.flushThreshold > 0 && len(a.records) >= a.flushThreshold
}

// Flush atomically takes every accumulated record. Returns nil if
// nothing was added since the last flush.
func (a *Accumulator) Flush() []telemetry.Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.records) == 0 {
		return nil
	}
	records := a.records
	a.records = nil
	a.batches++
	return records
}

// Len returns the number of records waiting for the next flush.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Batches returns how many non-empty flushes have happened.
func (a *Accumulator) Batches() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batches
}
