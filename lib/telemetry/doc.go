// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the records instrumentation hands to the
// delivery pipeline: spans, metric points, and log records, each
// wrapped in a [Record] envelope that carries the signal kind and the
// emitting source.
//
// Records are serialized as JSON, one record per line, by the
// serializer package. Field names are snake_case and stable; the
// ingestion side parses them line by line.
package telemetry
