// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package serializer turns a batch of telemetry records into a single
// compressed [transmission.Transmission].
//
// Each record is encoded as one JSON object, records are joined with
// '\n' in input order, and the whole buffer is compressed once. The
// result is labeled application/x-json-stream with the content
// encoding of the chosen compressor (gzip unless configured
// otherwise).
//
// [Decode] and [DecodeRecords] reverse the process. The pipeline never
// needs them; the inspect tool and tests do.
package serializer
