// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/telemetry"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

// Serializer encodes record batches. It is safe for concurrent use.
type Serializer struct {
	compressor compressor
	clock      clock.Clock
}

// Option configures a Serializer.
type Option func(*options)

type options struct {
	encoding string
	clock    clock.Clock
}

// WithEncoding selects the payload compression: transmission.EncodingGzip
// (the default), EncodingZstd, or EncodingLZ4.
func WithEncoding(encoding string) Option {
	return func(o *options) { o.encoding = encoding }
}

// WithClock sets the clock that stamps each transmission's creation
// time. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New returns a Serializer. An unknown encoding is an
// ErrInvalidArgument.
func New(opts ...Option) (*Serializer, error) {
	o := options{encoding: transmission.EncodingGzip, clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		return nil, fmt.Errorf("serializer: clock is nil: %w", transmission.ErrInvalidArgument)
	}
	compressor, err := newCompressor(o.encoding)
	if err != nil {
		return nil, err
	}
	return &Serializer{compressor: compressor, clock: o.clock}, nil
}

// Encoding returns the content encoding of produced transmissions.
func (s *Serializer) Encoding() string { return s.compressor.encoding() }

// Serialize encodes records as newline-delimited JSON and compresses
// the result. A nil slice and an empty slice are both rejected with
// ErrInvalidArgument, with distinct messages.
func (s *Serializer) Serialize(records []telemetry.Record) (*transmission.Transmission, error) {
	if records == nil {
		return nil, fmt.Errorf("serializer: records is nil: %w", transmission.ErrInvalidArgument)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("serializer: records is empty: %w", transmission.ErrInvalidArgument)
	}

	var raw bytes.Buffer
	for i := range records {
		line, err := json.Marshal(&records[i])
		if err != nil {
			return nil, fmt.Errorf("serializer: encoding record %d: %w", i, err)
		}
		if i > 0 {
			raw.WriteByte('\n')
		}
		raw.Write(line)
	}

	payload, err := s.compressor.compress(raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serializer: compressing %d bytes: %w", raw.Len(), err)
	}
	return transmission.New(payload, transmission.ContentTypeJSONStream, s.compressor.encoding(), s.clock.Now())
}

// Decode decompresses a transmission produced by a Serializer and
// splits it into its JSON lines.
func Decode(t *transmission.Transmission) ([][]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("serializer: transmission is nil: %w", transmission.ErrInvalidArgument)
	}
	if t.ContentType() != transmission.ContentTypeJSONStream {
		return nil, fmt.Errorf("serializer: unsupported content type %q", t.ContentType())
	}
	raw, err := decompress(t.ContentEncoding(), t.Payload())
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return bytes.Split(raw, []byte{'\n'}), nil
}

// DecodeRecords decodes every line of t into a telemetry.Record.
func DecodeRecords(t *transmission.Transmission) ([]telemetry.Record, error) {
	lines, err := Decode(t)
	if err != nil {
		return nil, err
	}
	records := make([]telemetry.Record, 0, len(lines))
	for i, line := range lines {
		var record telemetry.Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("serializer: decoding line %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}
