// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/telespool/lib/codec"
	"github.com/bureau-foundation/telespool/lib/serializer"
	"github.com/bureau-foundation/telespool/lib/spool"
)

func listCommand(out *printer, target target) error {
	entries, err := spool.List(target.dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		out.note("spool %s is empty", target.dir)
		return nil
	}

	out.header("%d files in %s", len(entries), target.dir)
	writer := tabwriter.NewWriter(out.w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "NAME\tSTATE\tSIZE\tCREATED\n")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			entry.Name,
			entry.State,
			formatBytes(entry.Size),
			formatTime(entry.Created),
		)
	}
	return writer.Flush()
}

// catCommand prints the decoded records of one batch, one JSON line
// each. name may carry the file suffix.
func catCommand(out *printer, target target, name string) error {
	name = recordName(name)
	batch, err := spool.ReadRecord(target.dir, name)
	if err != nil {
		return err
	}
	lines, err := serializer.Decode(batch)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}

	out.header("%s: %d records, %s, %s compressed, created %s",
		name,
		len(lines),
		batch.ContentEncoding(),
		formatBytes(int64(batch.Size())),
		formatTime(batch.CreatedAt()),
	)
	for _, line := range lines {
		if _, err := fmt.Fprintf(out.w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// envelopeCommand prints the stored envelope of one record with byte
// strings abbreviated, or its CBOR diagnostic notation.
func envelopeCommand(out *printer, target target, name string, diagnostic bool) error {
	name = recordName(name)
	data, err := spool.ReadRawRecord(target.dir, name)
	if err != nil {
		return err
	}

	if diagnostic {
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("diagnosing %s: %w", name, err)
		}
		_, err = fmt.Fprintln(out.w, notation)
		return err
	}

	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding %s envelope: %w", name, err)
	}
	for key, value := range fields {
		if raw, ok := value.([]byte); ok {
			fields[key] = abbreviateBytes(raw)
		}
	}
	encoded, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	out.header("%s envelope (%s on disk)", name, formatBytes(int64(len(data))))
	_, err = fmt.Fprintf(out.w, "%s\n", encoded)
	return err
}

// abbreviateBytes shows short byte strings (checksums) in hex and
// long ones (payloads) by length.
func abbreviateBytes(raw []byte) string {
	if len(raw) <= 32 {
		return hex.EncodeToString(raw)
	}
	return fmt.Sprintf("<%d bytes>", len(raw))
}

// recordName accepts a bare name, a file name, or a path.
func recordName(name string) string {
	name = filepath.Base(name)
	for _, suffix := range []string{".trn", ".tmp"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// spoolSummary tallies a directory listing by state.
type spoolSummary struct {
	counts map[string]int
	bytes  map[string]int64
	oldest time.Time
	newest time.Time
}

func summarize(entries []spool.Entry) spoolSummary {
	summary := spoolSummary{
		counts: make(map[string]int),
		bytes:  make(map[string]int64),
	}
	for _, entry := range entries {
		summary.counts[entry.State]++
		summary.bytes[entry.State] += entry.Size
		if entry.State != "permanent" || entry.Created.IsZero() {
			continue
		}
		if summary.oldest.IsZero() || entry.Created.Before(summary.oldest) {
			summary.oldest = entry.Created
		}
		if entry.Created.After(summary.newest) {
			summary.newest = entry.Created
		}
	}
	return summary
}

func statsCommand(out *printer, target target) error {
	entries, err := spool.List(target.dir)
	if err != nil {
		return err
	}
	summary := summarize(entries)

	out.header("spool %s", target.dir)
	writer := tabwriter.NewWriter(out.w, 2, 0, 3, ' ', 0)
	for _, state := range []string{"permanent", "claimed", "partial"} {
		fmt.Fprintf(writer, "%s\t%d\t%s\n", state, summary.counts[state], formatBytes(summary.bytes[state]))
	}
	if target.maxBytes > 0 {
		used := summary.bytes["permanent"]
		fmt.Fprintf(writer, "capacity\t%.1f%%\t%s of %s\n",
			100*float64(used)/float64(target.maxBytes),
			formatBytes(used),
			formatBytes(target.maxBytes),
		)
	}
	fmt.Fprintf(writer, "oldest\t%s\n", formatTime(summary.oldest))
	fmt.Fprintf(writer, "newest\t%s\n", formatTime(summary.newest))
	return writer.Flush()
}

// purgeCommand opens the spool, which takes its lock, and deletes
// every record file.
func purgeCommand(out *printer, target target) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := spool.Open(spool.StoreConfig{
		Dir:      target.dir,
		MaxBytes: target.maxBytes,
		Logger:   logger,
	})
	if errors.Is(err, spool.ErrLocked) {
		return fmt.Errorf("spool %s is in use by a running relay; stop it first", target.dir)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Purge()
	if err != nil {
		return err
	}
	out.note("removed %d files from %s", removed, target.dir)
	return nil
}
