// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the delivery pipeline.
//
// Components that stamp transmissions or wait between resend cycles
// take a [Clock] instead of calling the time package. Production
// wiring passes [Real]; tests pass [Fake] and drive time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go resender.Run(ctx)
//	fake.WaitForTimers(1)           // resender is waiting for its delay
//	fake.Advance(30 * time.Second)  // fire exactly one cycle
//
// WaitForTimers closes the race between a goroutine registering its
// timer and the test advancing past it.
package clock
