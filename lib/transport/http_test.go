// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bureau-foundation/telespool/lib/output"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

var _ output.Transport = (*HTTP)(nil)

type capturedRequest struct {
	method          string
	contentType     string
	contentEncoding string
	ingestKey       string
	body            []byte
}

func newCapturingServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	captured := make(chan capturedRequest, 4)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		captured <- capturedRequest{
			method:          request.Method,
			contentType:     request.Header.Get("Content-Type"),
			contentEncoding: request.Header.Get("Content-Encoding"),
			ingestKey:       request.Header.Get("X-Ingest-Key"),
			body:            body,
		}
		writer.WriteHeader(status)
		io.WriteString(writer, "server says hello")
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestNewHTTPValidation(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		timeout  time.Duration
	}{
		{"empty", "", 0},
		{"no scheme", "collector.local/ingest", 0},
		{"wrong scheme", "ftp://collector.local/ingest", 0},
		{"no host", "http:///ingest", 0},
		{"negative timeout", "http://collector.local/ingest", -time.Second},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewHTTP(HTTPConfig{Endpoint: test.endpoint, Timeout: test.timeout})
			if !errors.Is(err, transmission.ErrInvalidArgument) {
				t.Errorf("NewHTTP error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestPostSendsHeadersAndBody(t *testing.T) {
	server, captured := newCapturingServer(t, http.StatusAccepted)
	transport, err := NewHTTP(HTTPConfig{
		Endpoint: server.URL + "/v1/ingest",
		Client:   server.Client(),
		Headers:  map[string]string{"X-Ingest-Key": "secret-key"},
	})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	if !transport.Post(context.Background(), []byte("compressed"), transmission.ContentTypeJSONStream, transmission.EncodingGzip) {
		t.Fatal("Post returned false for a 202")
	}
	request := <-captured
	if request.method != http.MethodPost {
		t.Errorf("method = %s, want POST", request.method)
	}
	if request.contentType != transmission.ContentTypeJSONStream {
		t.Errorf("Content-Type = %q", request.contentType)
	}
	if request.contentEncoding != transmission.EncodingGzip {
		t.Errorf("Content-Encoding = %q", request.contentEncoding)
	}
	if request.ingestKey != "secret-key" {
		t.Errorf("X-Ingest-Key = %q", request.ingestKey)
	}
	if string(request.body) != "compressed" {
		t.Errorf("body = %q", request.body)
	}
}

func TestPostFailsOnNon2xx(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		server, _ := newCapturingServer(t, status)
		transport, err := NewHTTP(HTTPConfig{Endpoint: server.URL, Client: server.Client()})
		if err != nil {
			t.Fatalf("NewHTTP: %v", err)
		}
		if transport.Post(context.Background(), []byte("x"), transmission.ContentTypeJSONStream, transmission.EncodingGzip) {
			t.Errorf("Post returned true for status %d", status)
		}
	}
}

func TestPostFailsWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	transport, err := NewHTTP(HTTPConfig{Endpoint: endpoint, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if transport.Post(context.Background(), []byte("x"), transmission.ContentTypeJSONStream, transmission.EncodingGzip) {
		t.Error("Post returned true with the server down")
	}
}

func TestPostHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	transport, err := NewHTTP(HTTPConfig{
		Endpoint: server.URL,
		Client:   server.Client(),
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if transport.Post(context.Background(), []byte("x"), transmission.ContentTypeJSONStream, transmission.EncodingGzip) {
		t.Error("Post returned true after its timeout")
	}
}
