// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/transmission"
	"github.com/bureau-foundation/telespool/lib/workers"
)

// DefaultConcurrency is the configured number of simultaneous posts
// when the configuration file does not set one.
const DefaultConcurrency = 4

// NetworkConfig configures a NetworkOutput.
type NetworkConfig struct {
	// Concurrency bounds simultaneous posts, 1..workers.MaxWorkers.
	Concurrency int

	// Admission decides what Send does when every slot is busy.
	Admission workers.Admission

	// OnFailure receives transmissions whose post failed after
	// admission. Nil drops them with a warning.
	OnFailure Output

	// PostTimeout bounds each Transport.Post call. Zero means no
	// timeout beyond the transport's own.
	PostTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// NetworkStats is a snapshot of NetworkOutput counters.
type NetworkStats struct {
	Accepted  int64
	Rejected  int64
	Delivered int64
	Failed    int64
	InFlight  int
}

// NetworkOutput delivers transmissions through a Transport on a
// bounded worker pool.
type NetworkOutput struct {
	transport   Transport
	pool        *workers.Pool
	onFailure   Output
	postTimeout time.Duration
	logger      *slog.Logger

	accepted  atomic.Int64
	rejected  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewNetworkOutput validates config and returns a NetworkOutput ready
// to accept transmissions.
func NewNetworkOutput(transport Transport, config NetworkConfig) (*NetworkOutput, error) {
	if transport == nil {
		return nil, fmt.Errorf("network output: transport is nil: %w", transmission.ErrInvalidArgument)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	pool, err := workers.NewPool(workers.PoolConfig{
		Name:      "network",
		Size:      config.Concurrency,
		Admission: config.Admission,
		Clock:     config.Clock,
		Logger:    config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("network output: %w", err)
	}
	return &NetworkOutput{
		transport:   transport,
		pool:        pool,
		onFailure:   config.OnFailure,
		postTimeout: config.PostTimeout,
		logger:      config.Logger,
	}, nil
}

// Send admits t for delivery. With the reject policy it returns false
// immediately when Concurrency posts are already in flight. With the
// block policy it waits for a slot until ctx is done. True means a
// pool goroutine now owns t.
func (n *NetworkOutput) Send(ctx context.Context, t *transmission.Transmission) bool {
	if t == nil {
		return false
	}
	admitted := n.pool.Submit(ctx, func() { n.post(t) })
	if !admitted {
		n.rejected.Add(1)
		return false
	}
	n.accepted.Add(1)
	return true
}

// Stop refuses further sends and waits up to timeout for in-flight
// posts.
func (n *NetworkOutput) Stop(timeout time.Duration) {
	n.pool.Stop(timeout)
}

// InFlight returns the number of posts currently running.
func (n *NetworkOutput) InFlight() int { return n.pool.InFlight() }

// Stats returns a snapshot of the delivery counters.
func (n *NetworkOutput) Stats() NetworkStats {
	return NetworkStats{
		Accepted:  n.accepted.Load(),
		Rejected:  n.rejected.Load(),
		Delivered: n.delivered.Load(),
		Failed:    n.failed.Load(),
		InFlight:  n.pool.InFlight(),
	}
}

// post runs on a pool goroutine. The pool's context is not used for
// the post itself: an admitted transmission is delivered or handed to
// OnFailure even if the submitter's context is cancelled.
func (n *NetworkOutput) post(t *transmission.Transmission) {
	ctx := context.Background()
	if n.postTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.postTimeout)
		defer cancel()
	}

	if n.postSafely(ctx, t) {
		n.delivered.Add(1)
		return
	}
	n.failed.Add(1)

	if n.onFailure == nil {
		n.logger.Warn("network post failed, dropping transmission",
			"bytes", t.Size(),
			"created_at", t.CreatedAt(),
		)
		return
	}
	if !n.onFailure.Send(context.Background(), t) {
		n.logger.Warn("network post failed and fallback refused transmission",
			"bytes", t.Size(),
			"created_at", t.CreatedAt(),
		)
	}
}

func (n *NetworkOutput) postSafely(ctx context.Context, t *transmission.Transmission) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.logger.Error("transport panicked", "panic", recovered, "bytes", t.Size())
			ok = false
		}
	}()
	return n.transport.Post(ctx, t.Payload(), t.ContentType(), t.ContentEncoding())
}
