// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecordJSONRoundTrip(t *testing.T) {
	span := Span{
		TraceID:    TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		Operation:  "http.request",
		StartTime:  1_700_000_000_000_000_000,
		Duration:   1500,
		Status:     SpanStatusOK,
		Attributes: map[string]any{"http.method": "POST"},
	}
	record := NewSpanRecord("checkout", span)
	record.Tags = map[string]string{"host": "web-1"}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(record, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, record)
	}
}

func TestTraceIDText(t *testing.T) {
	id := TraceID{0xab, 0xcd}
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "abcd0000000000000000000000000000" {
		t.Fatalf("unexpected text %q", text)
	}

	var parsed TraceID
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if parsed != id {
		t.Fatalf("got %v, want %v", parsed, id)
	}

	if err := parsed.UnmarshalText([]byte("abcd")); err == nil {
		t.Fatal("expected error for short TraceID")
	}
	if err := parsed.UnmarshalText(nil); err != nil || !parsed.IsZero() {
		t.Fatalf("empty text should decode to zero, got %v (err %v)", parsed, err)
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"span", NewSpanRecord("svc", Span{Operation: "op"}), false},
		{"metric", NewMetricRecord("svc", MetricPoint{Name: "requests_total", Kind: MetricKindCounter}), false},
		{"log", NewLogRecord("svc", LogRecord{Severity: SeverityInfo, Body: "started"}), false},
		{"metric without name", NewMetricRecord("svc", MetricPoint{}), true},
		{"no payload", Record{Kind: KindSpan}, true},
		{"kind mismatch", Record{Kind: KindLog, Span: &Span{}}, true},
		{"unknown kind", Record{Kind: "event", Span: &Span{}}, true},
		{"two payloads", Record{Kind: KindSpan, Span: &Span{}, Log: &LogRecord{}}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.record.Validate()
			if (err != nil) != test.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}
