// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workers provides the bounded goroutine pool behind every
// blocking fan-out in the pipeline: network posts and startup spool
// loading.
//
// A [Pool] runs at most Size tasks at once, enforced by a weighted
// semaphore so the bound is exact even under concurrent Submit calls.
// What happens when the pool is full is the pool's [Admission]
// policy:
//
//   - [AdmissionReject] returns false immediately. The caller falls
//     back (the dispatcher moves on to the spool).
//   - [AdmissionBlock] waits for a free slot until the caller's
//     context is done or the pool is stopped.
//
// Stop is cooperative: it refuses new work and waits up to a timeout
// for running tasks. Running tasks are never interrupted.
package workers
