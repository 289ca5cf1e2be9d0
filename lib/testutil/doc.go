// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for telespool
// packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern so tests that wait on goroutines fail
// with a message instead of hanging. They are the only place tests
// use real wall-clock timeouts.
//
// [UniqueID] generates monotonically increasing identifiers, used for
// distinguishable payload contents across parallel tests.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
