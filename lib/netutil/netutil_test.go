// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestErrorBodyTruncates(t *testing.T) {
	body := strings.Repeat("x", int(MaxErrorBody)+100)
	got := ErrorBody(strings.NewReader(body))
	if int64(len(got)) != MaxErrorBody {
		t.Errorf("ErrorBody length = %d, want %d", len(got), MaxErrorBody)
	}
}

func TestErrorBodyShort(t *testing.T) {
	if got := ErrorBody(strings.NewReader("bad ingest key")); got != "bad ingest key" {
		t.Errorf("ErrorBody = %q", got)
	}
}

func TestDrainBodyConsumesReader(t *testing.T) {
	reader := strings.NewReader("accepted")
	DrainBody(reader)
	if reader.Len() != 0 {
		t.Errorf("%d bytes left unread", reader.Len())
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading record: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"broken pipe", syscall.EPIPE, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("disk full"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
