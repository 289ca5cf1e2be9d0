// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"time"
)

// Kind names the signal carried by a Record.
type Kind string

const (
	KindSpan   Kind = "span"
	KindMetric Kind = "metric"
	KindLog    Kind = "log"
)

// Record is the envelope serialized as one JSON line. Exactly one of
// Span, Metric, and Log is set, matching Kind.
type Record struct {
	Kind Kind `json:"kind"`

	// Time is when the record was produced, as Unix nanoseconds.
	Time int64 `json:"time"`

	// Source identifies the emitting process or service.
	Source string `json:"source,omitempty"`

	// Tags are context key-value pairs shared by every signal kind
	// (host, service version, deployment).
	Tags map[string]string `json:"tags,omitempty"`

	Span   *Span        `json:"span,omitempty"`
	Metric *MetricPoint `json:"metric,omitempty"`
	Log    *LogRecord   `json:"log,omitempty"`
}

// NewSpanRecord wraps a span, stamping the record time from the span's
// start time.
func NewSpanRecord(source string, span Span) Record {
	return Record{Kind: KindSpan, Time: span.StartTime, Source: source, Span: &span}
}

// NewMetricRecord wraps a metric point.
func NewMetricRecord(source string, metric MetricPoint) Record {
	return Record{Kind: KindMetric, Time: metric.Timestamp, Source: source, Metric: &metric}
}

// NewLogRecord wraps a log record.
func NewLogRecord(source string, log LogRecord) Record {
	return Record{Kind: KindLog, Time: log.Timestamp, Source: source, Log: &log}
}

// Timestamp returns Time as a time.Time.
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Validate checks that Kind is known and that exactly the matching
// payload field is set.
func (r Record) Validate() error {
	set := 0
	if r.Span != nil {
		set++
	}
	if r.Metric != nil {
		set++
	}
	if r.Log != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("telemetry record: expected exactly one payload, got %d", set)
	}
	switch r.Kind {
	case KindSpan:
		if r.Span == nil {
			return fmt.Errorf("telemetry record: kind %q without span", r.Kind)
		}
	case KindMetric:
		if r.Metric == nil {
			return fmt.Errorf("telemetry record: kind %q without metric", r.Kind)
		}
		if r.Metric.Name == "" {
			return fmt.Errorf("telemetry record: metric name is empty")
		}
	case KindLog:
		if r.Log == nil {
			return fmt.Errorf("telemetry record: kind %q without log", r.Kind)
		}
	default:
		return fmt.Errorf("telemetry record: unknown kind %q", r.Kind)
	}
	return nil
}
