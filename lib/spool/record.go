// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/telespool/lib/codec"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

// File suffixes. See the package documentation for the state machine.
const (
	permanentSuffix = ".trn"
	claimedSuffix   = ".tmp"
	partialSuffix   = ".part"
	lockFileName    = ".lock"
)

// recordVersion is the envelope format written by this package.
const recordVersion = 1

// errCorruptRecord marks a spool file that decoded but failed
// validation. Callers delete such files.
var errCorruptRecord = errors.New("corrupt spool record")

// checksumDomainKey keys the BLAKE3 payload checksum so spool
// checksums never collide with hashes computed for other purposes over
// the same bytes.
var checksumDomainKey = [32]byte{
	't', 'e', 'l', 'e', 's', 'p', 'o', 'o', 'l', '.', 's', 'p', 'o', 'o', 'l', '.',
	'r', 'e', 'c', 'o', 'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// envelope is the on-disk form of one transmission.
type envelope struct {
	Version         int    `cbor:"v"`
	ContentType     string `cbor:"content_type"`
	ContentEncoding string `cbor:"content_encoding"`
	CreatedAt       int64  `cbor:"created_at"`
	Payload         []byte `cbor:"payload"`
	Checksum        []byte `cbor:"checksum"`
}

func checksum(payload []byte) []byte {
	hasher, err := blake3.NewKeyed(checksumDomainKey[:])
	if err != nil {
		panic("spool: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hasher.Sum(nil)
}

// encodeRecord returns the file contents for t.
func encodeRecord(t *transmission.Transmission) ([]byte, error) {
	var createdAt int64
	if !t.CreatedAt().IsZero() {
		createdAt = t.CreatedAt().UnixNano()
	}
	data, err := codec.Marshal(envelope{
		Version:         recordVersion,
		ContentType:     t.ContentType(),
		ContentEncoding: t.ContentEncoding(),
		CreatedAt:       createdAt,
		Payload:         t.Payload(),
		Checksum:        checksum(t.Payload()),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding spool record: %w", err)
	}
	return data, nil
}

// decodeRecord parses file contents back into a Transmission. Any
// structural problem wraps errCorruptRecord.
func decodeRecord(data []byte) (*transmission.Transmission, error) {
	var record envelope
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	if record.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errCorruptRecord, record.Version)
	}
	if !bytes.Equal(record.Checksum, checksum(record.Payload)) {
		return nil, fmt.Errorf("%w: payload checksum mismatch", errCorruptRecord)
	}
	if record.Payload == nil {
		record.Payload = []byte{}
	}
	var createdAt time.Time
	if record.CreatedAt != 0 {
		createdAt = time.Unix(0, record.CreatedAt)
	}
	t, err := transmission.New(record.Payload, record.ContentType, record.ContentEncoding, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	return t, nil
}

// nameSequence disambiguates records created in the same nanosecond
// by one process; the uuid covers everything else.
var nameSequence atomic.Uint64

// newRecordName returns a unique base name (no suffix) that sorts by
// createdAt, then by creation order within this process.
func newRecordName(createdAt time.Time) string {
	nanos := createdAt.UnixNano()
	if createdAt.IsZero() || nanos < 0 {
		nanos = 0
	}
	return fmt.Sprintf("%020d-%010d-%s", nanos, nameSequence.Add(1)%10_000_000_000, uuid.NewString())
}

// nameTime recovers the creation time encoded in a base name.
func nameTime(base string) (time.Time, bool) {
	prefix, _, found := strings.Cut(base, "-")
	if !found {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// splitName separates a directory entry into its base name and suffix.
// The second result is false for files the spool does not own.
func splitName(fileName string) (base, suffix string, ok bool) {
	for _, candidate := range []string{permanentSuffix, claimedSuffix, partialSuffix} {
		if strings.HasSuffix(fileName, candidate) {
			base = strings.TrimSuffix(fileName, candidate)
			if base == "" || strings.HasPrefix(base, ".") {
				return "", "", false
			}
			return base, candidate, true
		}
	}
	return "", "", false
}
