// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/transmission"
	"github.com/bureau-foundation/telespool/lib/workers"
)

// Dispatcher routes a reloaded transmission back into the delivery
// chain. output.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *transmission.Transmission) (bool, error)
}

// DefaultLoaderWorkers is the configured loader pool size when the
// configuration file does not set one.
const DefaultLoaderWorkers = 2

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Workers is the number of records dispatched concurrently,
	// 1..workers.MaxWorkers.
	Workers int

	Clock  clock.Clock
	Logger *slog.Logger
}

// LoadResult summarizes one Load pass.
type LoadResult struct {
	// Found is the number of permanent records the scan saw.
	Found int
	// Dispatched counts records some output accepted.
	Dispatched int
	// Declined counts records every output refused. They are lost.
	Declined int
	// Unreadable counts records that could not be fetched.
	Unreadable int
}

// Loader drains records left by a previous process.
type Loader struct {
	store      *Store
	dispatcher Dispatcher
	pool       *workers.Pool
	logger     *slog.Logger
}

// NewLoader validates its arguments and returns an idle Loader.
func NewLoader(store *Store, dispatcher Dispatcher, config LoaderConfig) (*Loader, error) {
	if store == nil {
		return nil, fmt.Errorf("spool loader: store is nil: %w", transmission.ErrInvalidArgument)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("spool loader: dispatcher is nil: %w", transmission.ErrInvalidArgument)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	pool, err := workers.NewPool(workers.PoolConfig{
		Name:      "spool-loader",
		Size:      config.Workers,
		Admission: workers.AdmissionBlock,
		Clock:     config.Clock,
		Logger:    config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("spool loader: %w", err)
	}
	return &Loader{
		store:      store,
		dispatcher: dispatcher,
		pool:       pool,
		logger:     config.Logger,
	}, nil
}

// Load rescans the spool directory and dispatches as many records as
// the scan found, in parallel. Records respooled during the pass are
// left for the Resender. Load returns when every dispatched record
// has been handled or ctx is cancelled.
func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	found, err := l.store.Rescan()
	if err != nil {
		return LoadResult{}, fmt.Errorf("spool loader: %w", err)
	}
	result := LoadResult{Found: found}
	if found == 0 {
		return result, nil
	}
	l.logger.Info("loading spooled transmissions", "records", found, "used_bytes", l.store.UsedBytes())

	var dispatched, declined, unreadable atomic.Int64
	var pending sync.WaitGroup
	for range found {
		pending.Add(1)
		admitted := l.pool.Submit(ctx, func() {
			defer pending.Done()
			t, ok := l.store.FetchOldest()
			if !ok {
				unreadable.Add(1)
				return
			}
			accepted, err := l.dispatcher.Dispatch(ctx, t)
			if err != nil {
				l.logger.Error("dispatching spooled transmission failed", "error", err)
			}
			if accepted {
				dispatched.Add(1)
				return
			}
			declined.Add(1)
			l.logger.Warn("spooled transmission declined by every output, record lost",
				"bytes", t.Size(),
				"created_at", t.CreatedAt(),
			)
		})
		if !admitted {
			pending.Done()
			break
		}
	}
	pending.Wait()

	result.Dispatched = int(dispatched.Load())
	result.Declined = int(declined.Load())
	result.Unreadable = int(unreadable.Load())
	l.logger.Info("spool load finished",
		"found", result.Found,
		"dispatched", result.Dispatched,
		"declined", result.Declined,
		"unreadable", result.Unreadable,
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("spool loader: %w", err)
	}
	return result, nil
}

// Stop refuses further work and waits up to timeout for running
// dispatches.
func (l *Loader) Stop(timeout time.Duration) {
	l.pool.Stop(timeout)
}
