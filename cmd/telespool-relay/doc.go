// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Telespool-relay is the per-host telemetry relay. Local producers
// connect to its Unix socket and write newline-delimited JSON
// telemetry records; the relay accumulates them into batches and
// hands each batch to the delivery pipeline, which posts it to the
// collector or spools it to disk when the collector is busy or down.
//
// Data flow:
//
//	producer → socket (JSONL) → accumulator → pipeline.Submit → network | spool
//
// Flush triggers:
//   - Timer: the flush loop drains the accumulator every relay.flush_interval (default 5s)
//   - Threshold: a connection handler flushes inline once the
//     accumulator holds relay.flush_threshold records (default 512)
//
// On SIGINT or SIGTERM the relay stops accepting connections, flushes
// what it holds, and stops the pipeline. Batches that could not be
// posted before shutdown remain in the spool and are sent by the next
// process's startup scan.
package main
