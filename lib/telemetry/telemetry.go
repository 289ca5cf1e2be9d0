// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/hex"
	"fmt"
)

// TraceID is a 16-byte globally unique trace identifier. JSON encodes
// it as 32 lowercase hex characters.
type TraceID [16]byte

// MarshalText implements encoding.TextMarshaler.
func (id TraceID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string
// decodes to the zero TraceID.
func (id *TraceID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = TraceID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid TraceID hex: %w", err)
	}
	if len(decoded) != 16 {
		return fmt.Errorf("invalid TraceID: expected 16 bytes, got %d", len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// IsZero reports whether this is the zero TraceID.
func (id TraceID) IsZero() bool { return id == TraceID{} }

// String returns the lowercase hex representation.
func (id TraceID) String() string { return hex.EncodeToString(id[:]) }

// SpanID is an 8-byte span identifier, unique within a trace.
type SpanID [8]byte

// MarshalText implements encoding.TextMarshaler.
func (id SpanID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SpanID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = SpanID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid SpanID hex: %w", err)
	}
	if len(decoded) != 8 {
		return fmt.Errorf("invalid SpanID: expected 8 bytes, got %d", len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// IsZero reports whether this is the zero SpanID.
func (id SpanID) IsZero() bool { return id == SpanID{} }

// String returns the lowercase hex representation.
func (id SpanID) String() string { return hex.EncodeToString(id[:]) }

// SpanStatus indicates the outcome of a span's operation.
type SpanStatus uint8

const (
	SpanStatusUnset SpanStatus = 0
	SpanStatusOK    SpanStatus = 1
	SpanStatusError SpanStatus = 2
)

// MetricKind distinguishes how a metric point's value is interpreted.
type MetricKind uint8

const (
	// MetricKindGauge is an instantaneous value that can go up or down.
	MetricKindGauge MetricKind = 0

	// MetricKindCounter is monotonically increasing; resets are
	// detected by the consumer.
	MetricKindCounter MetricKind = 1

	// MetricKindHistogram carries a distribution in Histogram instead
	// of Value.
	MetricKindHistogram MetricKind = 2
)

// Severity levels follow OpenTelemetry numbering; each constant is the
// minimum of its range.
const (
	SeverityTrace uint8 = 1
	SeverityDebug uint8 = 5
	SeverityInfo  uint8 = 9
	SeverityWarn  uint8 = 13
	SeverityError uint8 = 17
	SeverityFatal uint8 = 21
)

// Span is a unit of work within a distributed trace.
type Span struct {
	TraceID      TraceID `json:"trace_id"`
	SpanID       SpanID  `json:"span_id"`
	ParentSpanID SpanID  `json:"parent_span_id"`

	// Operation names the work, scoped by convention: "http.request",
	// "db.query", "queue.publish".
	Operation string `json:"operation"`

	// StartTime is Unix nanoseconds; Duration is nanoseconds.
	StartTime int64 `json:"start_time"`
	Duration  int64 `json:"duration"`

	Status        SpanStatus `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

// MetricPoint is a single metric observation.
type MetricPoint struct {
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels,omitempty"`
	Kind      MetricKind        `json:"kind"`
	Timestamp int64             `json:"timestamp"`

	// Value is always serialized: zero is a valid measurement.
	Value float64 `json:"value"`

	Histogram *HistogramValue `json:"histogram,omitempty"`
}

// HistogramValue is a bucketed distribution summary. BucketCounts has
// one more entry than Boundaries (the implicit +Inf bucket).
type HistogramValue struct {
	Boundaries   []float64 `json:"boundaries"`
	BucketCounts []uint64  `json:"bucket_counts"`
	Sum          float64   `json:"sum"`
	Count        uint64    `json:"count"`
}

// LogRecord is a structured log entry with optional trace correlation.
type LogRecord struct {
	Severity   uint8          `json:"severity"`
	Body       string         `json:"body"`
	TraceID    TraceID        `json:"trace_id"`
	SpanID     SpanID         `json:"span_id"`
	Timestamp  int64          `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
