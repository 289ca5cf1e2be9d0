// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

// MaxWorkers is the hard upper bound on any pool size.
const MaxWorkers = 1000

// Admission is the policy applied when every slot is busy.
type Admission int

const (
	AdmissionReject Admission = iota
	AdmissionBlock
)

// String returns the configuration spelling of the policy.
func (a Admission) String() string {
	switch a {
	case AdmissionReject:
		return "reject"
	case AdmissionBlock:
		return "block"
	default:
		return fmt.Sprintf("admission(%d)", int(a))
	}
}

// ParseAdmission parses "reject" or "block". The empty string is
// reject.
func ParseAdmission(name string) (Admission, error) {
	switch name {
	case "", "reject":
		return AdmissionReject, nil
	case "block":
		return AdmissionBlock, nil
	default:
		return 0, fmt.Errorf("unknown admission policy %q (want reject or block)", name)
	}
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Name appears in log records.
	Name string

	// Size is the number of concurrent tasks, 1..MaxWorkers.
	Size int

	Admission Admission

	// Clock bounds Stop's wait. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Pool runs submitted tasks on at most Size goroutines.
type Pool struct {
	name      string
	size      int
	admission Admission
	clock     clock.Clock
	logger    *slog.Logger

	slots    *semaphore.Weighted
	inFlight atomic.Int64

	// mu orders Submit's wg.Add against Stop's wg.Wait.
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	// stopping is cancelled by Stop to release blocked submitters.
	stopping context.Context
	stop     context.CancelFunc
}

// NewPool validates config and returns an idle pool. No goroutines
// run until the first Submit.
func NewPool(config PoolConfig) (*Pool, error) {
	if config.Size <= 0 || config.Size > MaxWorkers {
		return nil, fmt.Errorf("workers: pool %q size %d out of range [1, %d]: %w",
			config.Name, config.Size, MaxWorkers, transmission.ErrInvalidArgument)
	}
	if config.Admission != AdmissionReject && config.Admission != AdmissionBlock {
		return nil, fmt.Errorf("workers: pool %q: %s: %w", config.Name, config.Admission, transmission.ErrInvalidArgument)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	stopping, stop := context.WithCancel(context.Background())
	return &Pool{
		name:      config.Name,
		size:      config.Size,
		admission: config.Admission,
		clock:     config.Clock,
		logger:    config.Logger,
		slots:     semaphore.NewWeighted(int64(config.Size)),
		stopping:  stopping,
		stop:      stop,
	}, nil
}

// Submit runs task on a pool goroutine and reports whether it was
// admitted. A panicking task is logged and does not kill the pool.
func (p *Pool) Submit(ctx context.Context, task func()) bool {
	if p.isStopped() {
		return false
	}

	switch p.admission {
	case AdmissionBlock:
		acquireContext, cancel := context.WithCancel(ctx)
		release := context.AfterFunc(p.stopping, cancel)
		err := p.slots.Acquire(acquireContext, 1)
		release()
		cancel()
		if err != nil {
			return false
		}
	default:
		if !p.slots.TryAcquire(1) {
			return false
		}
	}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		p.slots.Release(1)
		return false
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	p.inFlight.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.slots.Release(1)
		defer p.inFlight.Add(-1)
		defer func() {
			if recovered := recover(); recovered != nil {
				p.logger.Error("worker task panicked", "pool", p.name, "panic", recovered)
			}
		}()
		task()
	}()
	return true
}

// Stop refuses new tasks and waits up to timeout for running ones.
// Returns true if every task finished in time. Safe to call more than
// once.
func (p *Pool) Stop(timeout time.Duration) bool {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-p.clock.After(timeout):
		p.logger.Warn("worker pool stop timed out",
			"pool", p.name,
			"timeout", timeout,
			"in_flight", p.inFlight.Load(),
		)
		return false
	}
}

// InFlight returns the number of running tasks.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Size returns the configured concurrency bound.
func (p *Pool) Size() int { return p.size }

// Admission returns the configured policy.
func (p *Pool) Admission() Admission { return p.admission }

func (p *Pool) isStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}
