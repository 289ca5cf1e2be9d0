// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/config"
	"github.com/bureau-foundation/telespool/lib/output"
	"github.com/bureau-foundation/telespool/lib/serializer"
	"github.com/bureau-foundation/telespool/lib/spool"
	"github.com/bureau-foundation/telespool/lib/telemetry"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  clock.Clock
}

// WithLogger sets the logger shared by every component. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock shared by every component. Defaults to
// clock.Real().
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Submitted int64
	Lost      int64
	Spool     spool.StoreStats
	Network   output.NetworkStats
	Load      spool.LoadResult
}

// Pipeline is a running delivery pipeline.
type Pipeline struct {
	store      *spool.Store
	serializer *serializer.Serializer
	network    *output.NetworkOutput
	dispatcher *output.Dispatcher
	loader     *spool.Loader
	resender   *spool.Resender
	clock      clock.Clock
	logger     *slog.Logger

	submitted atomic.Int64
	lost      atomic.Int64

	mu           sync.Mutex
	started      bool
	stopped      bool
	loadResult   spool.LoadResult
	stopResender context.CancelFunc
	resenderDone chan struct{}
}

// New validates cfg, opens the spool, and builds every component. No
// goroutines run until Start.
func New(cfg *config.Config, transport output.Transport, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is nil: %w", transmission.ErrInvalidArgument)
	}
	if transport == nil {
		return nil, fmt.Errorf("pipeline: transport is nil: %w", transmission.ErrInvalidArgument)
	}
	if err := cfg.ValidateDelivery(); err != nil {
		return nil, fmt.Errorf("pipeline: invalid config: %w", errors.Join(transmission.ErrInvalidArgument, err))
	}

	o := options{logger: slog.Default(), clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}

	batches, err := serializer.New(
		serializer.WithEncoding(cfg.Serializer.Encoding),
		serializer.WithClock(o.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	store, err := spool.Open(spool.StoreConfig{
		Dir:        cfg.Spool.Dir,
		MaxBytes:   cfg.Spool.MaxBytes,
		ClaimGrace: cfg.Spool.ClaimGraceDuration(),
		Clock:      o.clock,
		Logger:     o.logger.With("component", "spool"),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	// Everything below only validates arguments; close the store if
	// any of it fails so the directory lock is released.
	p, err := assemble(cfg, transport, store, batches, o)
	if err != nil {
		store.Close()
		return nil, err
	}
	return p, nil
}

func assemble(cfg *config.Config, transport output.Transport, store *spool.Store, batches *serializer.Serializer, o options) (*Pipeline, error) {
	network, err := output.NewNetworkOutput(transport, output.NetworkConfig{
		Concurrency: cfg.Network.Concurrency,
		Admission:   cfg.Network.AdmissionPolicy(),
		OnFailure:   store,
		Clock:       o.clock,
		Logger:      o.logger.With("component", "network"),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	dispatcher, err := output.NewDispatcher([]output.Output{network, store}, o.logger.With("component", "dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	loader, err := spool.NewLoader(store, dispatcher, spool.LoaderConfig{
		Workers: cfg.Loader.Workers,
		Clock:   o.clock,
		Logger:  o.logger.With("component", "loader"),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	resender, err := spool.NewResender(store, dispatcher, spool.ResenderConfig{
		Interval: cfg.Resend.IntervalDuration(),
		Clock:    o.clock,
		Logger:   o.logger.With("component", "resender"),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Pipeline{
		store:      store,
		serializer: batches,
		network:    network,
		dispatcher: dispatcher,
		loader:     loader,
		resender:   resender,
		clock:      o.clock,
		logger:     o.logger,
	}, nil
}

// Start runs the startup scan of the spool, dispatching everything a
// previous process left behind, and then starts the resender. It
// returns after the scan; the resender runs until Stop. Start
// succeeds at most once; after a failed scan it may be called again.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: already started or stopped")
	}
	p.started = true
	p.mu.Unlock()

	result, err := p.loader.Load(ctx)
	if err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return fmt.Errorf("pipeline: startup load: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadResult = result
	if p.stopped {
		return nil
	}
	resenderContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.stopResender = cancel
	p.resenderDone = make(chan struct{})
	go func() {
		defer close(p.resenderDone)
		p.resender.Run(resenderContext)
	}()
	p.logger.Info("pipeline started",
		"spooled_records", result.Found,
		"spool_dir", p.store.Dir(),
	)
	return nil
}

// Submit serializes records into one transmission and dispatches it:
// to the network when a slot is free, otherwise to the spool. The
// boolean reports whether some output accepted it; false means the
// spool was full and the batch is lost. The only errors are
// validation failures from serialization.
func (p *Pipeline) Submit(ctx context.Context, records []telemetry.Record) (bool, error) {
	t, err := p.serializer.Serialize(records)
	if err != nil {
		return false, fmt.Errorf("pipeline: %w", err)
	}
	p.submitted.Add(1)

	accepted, err := p.dispatcher.Dispatch(ctx, t)
	if err != nil {
		return false, fmt.Errorf("pipeline: %w", err)
	}
	if !accepted {
		p.lost.Add(1)
		p.logger.Warn("batch lost: network busy and spool full",
			"records", len(records),
			"bytes", t.Size(),
		)
	}
	return accepted, nil
}

// Stop shuts the pipeline down in dependency order: resender, loader,
// network output (whose failed posts still reach the spool), then the
// spool. Each stage waits up to timeout. Safe to call more than once.
func (p *Pipeline) Stop(timeout time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	stopResender, resenderDone := p.stopResender, p.resenderDone
	p.mu.Unlock()

	if stopResender != nil {
		stopResender()
		select {
		case <-resenderDone:
		case <-p.clock.After(timeout):
			p.logger.Warn("resender did not stop in time", "timeout", timeout)
		}
	}
	p.loader.Stop(timeout)
	p.network.Stop(timeout)
	p.store.Stop(timeout)
	if err := p.store.Close(); err != nil {
		p.logger.Error("closing spool failed", "error", err)
	}

	stats := p.Stats()
	p.logger.Info("pipeline stopped",
		"submitted", stats.Submitted,
		"lost", stats.Lost,
		"delivered", stats.Network.Delivered,
		"spooled_records", stats.Spool.Records,
	)
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	load := p.loadResult
	p.mu.Unlock()
	return Stats{
		Submitted: p.submitted.Load(),
		Lost:      p.lost.Load(),
		Spool:     p.store.Stats(),
		Network:   p.network.Stats(),
		Load:      load,
	}
}

// ResendNow runs one resend cycle immediately.
func (p *Pipeline) ResendNow(ctx context.Context) bool {
	return p.resender.RunOnce(ctx)
}
