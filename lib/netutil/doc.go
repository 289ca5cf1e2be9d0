// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network I/O helpers shared by the HTTP
// transport and the relay's socket listener.
//
// Response body helpers bound every read at a fixed size so a
// misbehaving collector cannot make the pipeline buffer an unbounded
// error page. Connection helpers classify the errors that show up
// when a client hangs up mid-stream.
package netutil
