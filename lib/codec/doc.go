// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for telespool's on-disk
// formats.
//
// Spool files are CBOR envelopes around an already-compressed payload.
// CBOR carries the payload as a byte string without base64 inflation,
// and Core Deterministic Encoding (RFC 8949 §4.2) makes identical
// envelopes byte-identical, which keeps checksums and test fixtures
// stable.
//
// Types that are only ever written to disk use `cbor` struct tags.
// Types that are also printed as JSON (by telespool-inspect) use
// `json` tags; fxamacker/cbor falls back to them when `cbor` tags are
// absent. Never put both on one field.
package codec
