// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

// DefaultResendInterval is the delay between resend cycles.
const DefaultResendInterval = 30 * time.Second

// ResenderConfig configures a Resender.
type ResenderConfig struct {
	// Interval is the fixed delay between the end of one cycle and
	// the start of the next. Zero means DefaultResendInterval.
	Interval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Resender retries one spooled transmission per interval.
//
// FetchOldest deletes the record before the dispatch result is known.
// When the dispatcher chain ends with the Store, a refused retry is
// written back as a new record; only a dispatch that every output
// refuses loses the record.
type Resender struct {
	store      *Store
	dispatcher Dispatcher
	interval   time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

// NewResender validates its arguments and returns an idle Resender.
func NewResender(store *Store, dispatcher Dispatcher, config ResenderConfig) (*Resender, error) {
	if store == nil {
		return nil, fmt.Errorf("spool resender: store is nil: %w", transmission.ErrInvalidArgument)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("spool resender: dispatcher is nil: %w", transmission.ErrInvalidArgument)
	}
	if config.Interval < 0 {
		return nil, fmt.Errorf("spool resender: interval %s is negative: %w", config.Interval, transmission.ErrInvalidArgument)
	}
	if config.Interval == 0 {
		config.Interval = DefaultResendInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Resender{
		store:      store,
		dispatcher: dispatcher,
		interval:   config.Interval,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// Run performs a cycle after every interval until ctx is cancelled.
// A failing or panicking cycle is logged and does not end the loop.
func (r *Resender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.interval):
		}
		r.runSafely(ctx)
	}
}

// RunOnce fetches the oldest spooled transmission and dispatches it.
// Returns true when a transmission was fetched and accepted.
func (r *Resender) RunOnce(ctx context.Context) bool {
	t, ok := r.store.FetchOldest()
	if !ok {
		return false
	}
	accepted, err := r.dispatcher.Dispatch(ctx, t)
	if err != nil {
		r.logger.Error("resending spooled transmission failed", "error", err)
		return false
	}
	if !accepted {
		r.logger.Warn("resent transmission declined by every output, record lost",
			"bytes", t.Size(),
			"created_at", t.CreatedAt(),
		)
	}
	return accepted
}

func (r *Resender) runSafely(ctx context.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("resend cycle panicked", "panic", recovered)
		}
	}()
	r.RunOnce(ctx)
}
