// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument is wrapped by every validation error in the
// pipeline: nil dependencies, out-of-range worker counts, nil or empty
// record batches.
var ErrInvalidArgument = errors.New("invalid argument")

// Content types and encodings produced by the serializer. Transports
// copy these verbatim into Content-Type and Content-Encoding headers.
const (
	ContentTypeJSONStream = "application/x-json-stream"

	EncodingGzip = "gzip"
	EncodingZstd = "zstd"
	EncodingLZ4  = "lz4"
)

// Transmission is a ready-to-send telemetry payload. The zero value is
// not valid; construct with [New].
type Transmission struct {
	payload         []byte
	contentType     string
	contentEncoding string
	createdAt       time.Time
}

// New validates and constructs a Transmission. The payload is copied,
// so the caller may reuse its buffer. A zero createdAt is allowed and
// means "unknown"; the spool then names the file by write time.
func New(payload []byte, contentType, contentEncoding string, createdAt time.Time) (*Transmission, error) {
	if payload == nil {
		return nil, fmt.Errorf("transmission: payload is nil: %w", ErrInvalidArgument)
	}
	if contentType == "" {
		return nil, fmt.Errorf("transmission: content type is empty: %w", ErrInvalidArgument)
	}
	if contentEncoding == "" {
		return nil, fmt.Errorf("transmission: content encoding is empty: %w", ErrInvalidArgument)
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	return &Transmission{
		payload:         copied,
		contentType:     contentType,
		contentEncoding: contentEncoding,
		createdAt:       createdAt,
	}, nil
}

// Payload returns the compressed payload bytes. The returned slice is
// shared with the Transmission and must not be modified.
func (t *Transmission) Payload() []byte { return t.payload }

// ContentType returns the MIME type of the uncompressed payload.
func (t *Transmission) ContentType() string { return t.contentType }

// ContentEncoding returns the compression applied to the payload.
func (t *Transmission) ContentEncoding() string { return t.contentEncoding }

// CreatedAt returns when the payload was serialized.
func (t *Transmission) CreatedAt() time.Time { return t.createdAt }

// Size returns the payload length in bytes.
func (t *Transmission) Size() int { return len(t.payload) }

// String summarizes the transmission for log attributes without
// dumping the payload.
func (t *Transmission) String() string {
	return fmt.Sprintf("transmission(%d bytes, %s, %s)", len(t.payload), t.contentType, t.contentEncoding)
}
