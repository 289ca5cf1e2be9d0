// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import "io"

// MaxErrorBody is how much of a response body is kept for diagnostics.
const MaxErrorBody int64 = 64 << 10

// ErrorBody reads up to MaxErrorBody bytes of body as a string. Read
// errors are ignored: a truncated body is still useful in a log line.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBody))
	return string(data)
}

// DrainBody discards up to MaxErrorBody bytes so the underlying
// connection can be reused by the HTTP client.
func DrainBody(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, MaxErrorBody))
}
