// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/telespool/lib/transmission"
)

// Dispatcher tries outputs in order and stops at the first that
// accepts. It holds no state beyond the list.
type Dispatcher struct {
	outputs []Output
	logger  *slog.Logger
}

// NewDispatcher returns a Dispatcher over outputs, which must be
// non-empty and contain no nil entries. A nil logger means
// slog.Default().
func NewDispatcher(outputs []Output, logger *slog.Logger) (*Dispatcher, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("dispatcher: no outputs: %w", transmission.ErrInvalidArgument)
	}
	for i, output := range outputs {
		if output == nil {
			return nil, fmt.Errorf("dispatcher: output %d is nil: %w", i, transmission.ErrInvalidArgument)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outputs: append([]Output(nil), outputs...),
		logger:  logger,
	}, nil
}

// Dispatch offers t to each output in order. It returns true at the
// first acceptance and false when every output declined. A panicking
// output counts as a decline. The only error is ErrInvalidArgument
// for a nil t.
func (d *Dispatcher) Dispatch(ctx context.Context, t *transmission.Transmission) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("dispatcher: transmission is nil: %w", transmission.ErrInvalidArgument)
	}
	for i, output := range d.outputs {
		if d.sendSafely(ctx, i, output, t) {
			return true, nil
		}
	}
	d.logger.Warn("transmission declined by every output",
		"outputs", len(d.outputs),
		"bytes", t.Size(),
	)
	return false, nil
}

// Send implements Output so dispatchers can nest.
func (d *Dispatcher) Send(ctx context.Context, t *transmission.Transmission) bool {
	accepted, _ := d.Dispatch(ctx, t)
	return accepted
}

// Stop stops each output in order, giving each up to timeout.
func (d *Dispatcher) Stop(timeout time.Duration) {
	for _, output := range d.outputs {
		output.Stop(timeout)
	}
}

func (d *Dispatcher) sendSafely(ctx context.Context, index int, output Output, t *transmission.Transmission) (accepted bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("output panicked, trying next",
				"output", index,
				"panic", recovered,
			)
			accepted = false
		}
	}()
	return output.Send(ctx, t)
}
