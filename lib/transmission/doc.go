// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transmission defines the unit of delivery in the telemetry
// pipeline: one serialized, compressed payload together with the HTTP
// content type and content encoding a transport needs to send it.
//
// A [Transmission] is immutable. It is born in memory by the
// serializer or reconstructed from a spool file, and it dies once a
// transport accepts it or the spool refuses it for capacity.
//
// The package also owns the one error sentinel shared by every
// pipeline constructor, [ErrInvalidArgument]. Validation failures wrap
// it so callers can test with errors.Is regardless of which component
// rejected the argument.
package transmission
