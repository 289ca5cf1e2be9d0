// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spool is the durable fallback for transmissions the network
// could not take.
//
// A [Store] keeps one file per transmission in a single directory,
// bounded by a byte budget. Files move through three suffixes:
//
//	<name>.part   being written; never counted, removed at Open
//	<name>.trn    permanent, counted against MaxBytes, indexed in the Cache
//	<name>.tmp    claimed by a reader; read, then deleted
//
// Names start with the transmission's creation time in nanoseconds,
// zero-padded, so a sorted directory listing is creation order. A
// [Cache] indexes permanent names in FIFO order; the directory is the
// source of truth and [Store.Rescan] rebuilds the index from it.
//
// The [Loader] drains whatever the previous process left behind, once
// per start, on a small worker pool. The [Resender] then retries one
// spooled transmission per interval for the life of the process. Both
// go through the same claim, read, delete sequence in
// [Store.FetchOldest] and hand the result to a [Dispatcher], which
// usually ends with the Store itself so a refused retry is spooled
// again.
//
// An exclusive flock on <dir>/.lock keeps two processes from sharing a
// spool directory.
package spool
