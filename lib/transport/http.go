// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bureau-foundation/telespool/lib/netutil"
	"github.com/bureau-foundation/telespool/lib/transmission"
	"github.com/bureau-foundation/telespool/lib/version"
)

// DefaultTimeout bounds one POST when HTTPConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// HTTPConfig configures an HTTP transport.
type HTTPConfig struct {
	// Endpoint is the absolute http or https URL receiving POSTs.
	Endpoint string

	// Timeout bounds each request, including reading the response.
	Timeout time.Duration

	// Client defaults to a client with no timeout of its own; Timeout
	// applies per request through the context.
	Client *http.Client

	// Headers are added to every request (for example an ingest key).
	// Content-Type and Content-Encoding are always taken from the
	// transmission.
	Headers map[string]string

	// UserAgent defaults to version.UserAgent().
	UserAgent string

	Logger *slog.Logger
}

// HTTP posts payloads to a fixed endpoint.
type HTTP struct {
	endpoint  string
	timeout   time.Duration
	client    *http.Client
	headers   http.Header
	userAgent string
	logger    *slog.Logger
}

// NewHTTP validates config and returns an HTTP transport.
func NewHTTP(config HTTPConfig) (*HTTP, error) {
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing endpoint: %v: %w", err, transmission.ErrInvalidArgument)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("transport: endpoint %q must be http or https: %w", config.Endpoint, transmission.ErrInvalidArgument)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("transport: endpoint %q has no host: %w", config.Endpoint, transmission.ErrInvalidArgument)
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("transport: timeout %s is negative: %w", config.Timeout, transmission.ErrInvalidArgument)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.UserAgent == "" {
		config.UserAgent = version.UserAgent()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	headers := make(http.Header, len(config.Headers))
	for name, value := range config.Headers {
		headers.Set(name, value)
	}
	return &HTTP{
		endpoint:  parsed.String(),
		timeout:   config.Timeout,
		client:    config.Client,
		headers:   headers,
		userAgent: config.UserAgent,
		logger:    config.Logger,
	}, nil
}

// Endpoint returns the normalized endpoint URL.
func (transport *HTTP) Endpoint() string { return transport.endpoint }

// Post sends one payload and reports whether the endpoint answered
// with a 2xx status.
func (transport *HTTP) Post(ctx context.Context, payload []byte, contentType, contentEncoding string) bool {
	ctx, cancel := context.WithTimeout(ctx, transport.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, transport.endpoint, bytes.NewReader(payload))
	if err != nil {
		transport.logger.Error("building telemetry request failed", "error", err)
		return false
	}
	for name, values := range transport.headers {
		request.Header[name] = values
	}
	request.Header.Set("Content-Type", contentType)
	if contentEncoding != "" {
		request.Header.Set("Content-Encoding", contentEncoding)
	}
	request.Header.Set("User-Agent", transport.userAgent)

	response, err := transport.client.Do(request)
	if err != nil {
		transport.logger.Warn("telemetry post failed",
			"endpoint", transport.endpoint,
			"bytes", len(payload),
			"error", err,
		)
		return false
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		netutil.DrainBody(response.Body)
		return true
	}

	body := netutil.ErrorBody(response.Body)
	transport.logger.Warn("telemetry endpoint rejected post",
		"endpoint", transport.endpoint,
		"status", response.StatusCode,
		"bytes", len(payload),
	)
	transport.logger.Debug("telemetry endpoint response body",
		"status", response.StatusCode,
		"body", body,
	)
	return false
}
