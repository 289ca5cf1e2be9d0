// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package output holds the delivery side of the pipeline.
//
// An [Output] accepts a transmission or declines it. [NetworkOutput]
// hands accepted transmissions to a [Transport] on a bounded worker
// pool; past its concurrency limit it declines instantly instead of
// queueing, which is the pipeline's backpressure signal. The spool
// store also satisfies Output and serves as the last resort.
//
// A [Dispatcher] tries an ordered list of outputs until one accepts.
// It is itself an Output, so chains compose:
//
//	network, _ := output.NewNetworkOutput(transport, output.NetworkConfig{
//	    Concurrency: 4,
//	    OnFailure:   store, // posts that fail after admission are spooled
//	})
//	dispatcher, _ := output.NewDispatcher([]output.Output{network, store}, logger)
//	dispatcher.Dispatch(ctx, t)
package output
