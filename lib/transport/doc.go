// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements output.Transport over HTTP.
//
// Each transmission becomes one POST whose body is the compressed
// payload, with Content-Type and Content-Encoding copied from the
// transmission. Any 2xx response is a delivery; everything else,
// including connection errors and timeouts, is a failure the caller
// will spool.
package transport
