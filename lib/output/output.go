// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"time"

	"github.com/bureau-foundation/telespool/lib/transmission"
)

// Output is a delivery mechanism.
type Output interface {
	// Send reports whether the output took responsibility for t. A
	// false return means the caller still owns t and should try
	// elsewhere.
	Send(ctx context.Context, t *transmission.Transmission) bool

	// Stop stops accepting transmissions and waits up to timeout for
	// in-flight work. Best-effort: it returns when the timeout
	// expires even if work remains.
	Stop(timeout time.Duration)
}

// Transport performs one blocking delivery of a payload to the
// ingestion endpoint and reports success. Implementations must honor
// ctx cancellation where the underlying I/O allows it.
type Transport interface {
	Post(ctx context.Context, payload []byte, contentType, contentEncoding string) bool
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, payload []byte, contentType, contentEncoding string) bool

// Post calls f.
func (f TransportFunc) Post(ctx context.Context, payload []byte, contentType, contentEncoding string) bool {
	return f(ctx, payload, contentType, contentEncoding)
}
