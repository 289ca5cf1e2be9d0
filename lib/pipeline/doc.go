// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline wires the delivery components together and owns
// their lifecycle.
//
// A [Pipeline] holds one of each: spool store, serializer, network
// output, dispatcher, loader, and resender. The dispatcher tries the
// network first and the store second; the network output hands posts
// that fail after admission to the store as well. [Pipeline.Start]
// drains whatever a previous process spooled, exactly once, then
// starts the periodic resender. [Pipeline.Submit] is the only entry
// point for new records.
//
//	p, err := pipeline.New(cfg, transport, pipeline.WithLogger(logger))
//	if err != nil { ... }
//	if err := p.Start(ctx); err != nil { ... }
//	defer p.Stop(10 * time.Second)
//	p.Submit(ctx, records)
package pipeline
