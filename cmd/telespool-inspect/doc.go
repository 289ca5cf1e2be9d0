// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Telespool-inspect examines a telemetry spool directory.
//
//	telespool-inspect [--config FILE | --dir DIR] list
//	telespool-inspect [--config FILE | --dir DIR] cat NAME
//	telespool-inspect [--config FILE | --dir DIR] [--diag] envelope NAME
//	telespool-inspect [--config FILE | --dir DIR] stats
//	telespool-inspect [--config FILE | --dir DIR] purge --yes
//
// list, cat, envelope, and stats read the directory without taking the spool
// lock, so they work while a relay is running and may observe files
// mid-transition. purge opens the spool and therefore fails while a
// relay holds it.
package main
