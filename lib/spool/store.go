// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/telespool/lib/clock"
	"github.com/bureau-foundation/telespool/lib/transmission"
)

const (
	// DefaultMaxBytes is the spool budget when StoreConfig.MaxBytes is
	// zero.
	DefaultMaxBytes int64 = 50 << 20

	// DefaultClaimGrace is how old a claimed (.tmp) file must be before
	// a Rescan assumes its reader died and restores it. Open restores
	// every claim regardless of age.
	DefaultClaimGrace = 5 * time.Minute
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Dir is the spool directory. Created with mode 0700 if missing.
	Dir string

	// MaxBytes bounds the total size of permanent record files.
	MaxBytes int64

	ClaimGrace time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is the on-disk spool. It is safe for concurrent use and
// satisfies the output package's Output interface, so it can sit at
// the end of a dispatcher chain.
type Store struct {
	dir        string
	maxBytes   int64
	claimGrace time.Duration
	clock      clock.Clock
	logger     *slog.Logger
	cache      *Cache

	// mu guards the accounting below and serializes the renames that
	// move files between states, so a scan never observes a file
	// whose accounting is in flux.
	mu sync.Mutex
	// permanent is the byte total of indexed .trn files; reserved
	// covers writes between the capacity check and the rename.
	permanent int64
	reserved  int64
	sizes     map[string]int64
	// claimed holds names this process has renamed to .tmp and not
	// yet deleted. Scans never restore them.
	claimed map[string]struct{}
	lock    *os.File
	closed  bool
}

// StoreStats is a snapshot of spool occupancy.
type StoreStats struct {
	Records   int
	UsedBytes int64
	MaxBytes  int64
}

// Open prepares dir for use: creates it, takes the directory lock,
// removes partial writes left by a crash, restores claims a crashed
// reader left behind, and sizes the existing permanent files. It does
// not index them; the first Rescan does.
func Open(config StoreConfig) (*Store, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("spool: directory is empty: %w", transmission.ErrInvalidArgument)
	}
	if config.MaxBytes < 0 {
		return nil, fmt.Errorf("spool: max bytes %d is negative: %w", config.MaxBytes, transmission.ErrInvalidArgument)
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.ClaimGrace <= 0 {
		config.ClaimGrace = DefaultClaimGrace
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, fmt.Errorf("spool: creating %s: %w", config.Dir, err)
	}
	lock, err := lockDirectory(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("spool: %w", err)
	}

	store := &Store{
		dir:        config.Dir,
		maxBytes:   config.MaxBytes,
		claimGrace: config.ClaimGrace,
		clock:      config.Clock,
		logger:     config.Logger,
		cache:      NewCache(),
		sizes:      make(map[string]int64),
		claimed:    make(map[string]struct{}),
		lock:       lock,
	}

	entries, err := store.scan()
	if err != nil {
		unlockDirectory(lock)
		return nil, fmt.Errorf("spool: %w", err)
	}
	for _, entry := range entries {
		switch entry.suffix {
		case partialSuffix:
			if err := os.Remove(store.path(entry.base, partialSuffix)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				store.logger.Warn("removing partial spool file failed", "name", entry.base, "error", err)
			} else {
				store.logger.Info("removed partial spool file", "name", entry.base)
			}
		case claimedSuffix:
			// The lock is exclusive, so every claim on disk now belongs
			// to a process that died mid-fetch.
			if err := os.Rename(store.path(entry.base, claimedSuffix), store.path(entry.base, permanentSuffix)); err != nil {
				store.logger.Warn("restoring abandoned spool claim failed", "name", entry.base, "error", err)
				continue
			}
			store.logger.Info("restored abandoned spool claim", "name", entry.base)
			store.sizes[entry.base] = entry.size
			store.permanent += entry.size
		case permanentSuffix:
			store.sizes[entry.base] = entry.size
			store.permanent += entry.size
		}
	}
	if store.permanent > store.maxBytes {
		store.logger.Warn("spool holds more than its budget, refusing writes until it drains",
			"used_bytes", store.permanent,
			"max_bytes", store.maxBytes,
		)
	}
	return store, nil
}

// Write persists t as a new permanent record. It returns false when
// the record would push the spool past MaxBytes, when the store is
// closed, or on any I/O failure. Failures are logged and leave no
// trace on disk.
func (s *Store) Write(t *transmission.Transmission) bool {
	if t == nil {
		return false
	}
	data, err := encodeRecord(t)
	if err != nil {
		s.logger.Error("encoding spool record failed", "error", err)
		return false
	}
	size := int64(len(data))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.permanent+s.reserved+size > s.maxBytes {
		used := s.permanent + s.reserved
		s.mu.Unlock()
		s.logger.Warn("spool full, dropping transmission",
			"used_bytes", used,
			"max_bytes", s.maxBytes,
			"record_bytes", size,
		)
		return false
	}
	s.reserved += size
	s.mu.Unlock()

	createdAt := t.CreatedAt()
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	name := newRecordName(createdAt)
	partialPath := s.path(name, partialSuffix)

	if err := writeFileSynced(partialPath, data); err != nil {
		s.release(size)
		os.Remove(partialPath)
		s.logger.Error("writing spool record failed", "name", name, "error", err)
		return false
	}

	s.mu.Lock()
	err = os.Rename(partialPath, s.path(name, permanentSuffix))
	s.reserved -= size
	if err == nil {
		s.sizes[name] = size
		s.permanent += size
	}
	s.mu.Unlock()
	if err != nil {
		os.Remove(partialPath)
		s.logger.Error("committing spool record failed", "name", name, "error", err)
		return false
	}

	if err := syncDirectory(s.dir); err != nil {
		s.logger.Warn("syncing spool directory failed", "error", err)
	}
	s.cache.Push(name)
	return true
}

// Send writes t. It lets the Store terminate an output chain.
func (s *Store) Send(_ context.Context, t *transmission.Transmission) bool {
	return s.Write(t)
}

// Stop has nothing to drain: Write is synchronous.
func (s *Store) Stop(time.Duration) {
	s.logger.Debug("spool store stopped", "records", s.cache.Len(), "used_bytes", s.UsedBytes())
}

// FetchOldest claims, reads, and deletes the oldest indexed record.
// The second result is false when the index is empty or the record
// could not be read; unreadable records are deleted and logged.
// Records another reader claimed first are skipped.
func (s *Store) FetchOldest() (*transmission.Transmission, bool) {
	for {
		name, ok := s.cache.Pop()
		if !ok {
			return nil, false
		}
		claimedPath, claimed := s.claim(name)
		if !claimed {
			continue
		}
		return s.consume(name, claimedPath)
	}
}

// claim renames name from .trn to .tmp and releases its bytes. It
// reports false when the permanent file is already gone.
func (s *Store) claim(name string) (string, bool) {
	claimedPath := s.path(name, claimedSuffix)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false
	}
	err := os.Rename(s.path(name, permanentSuffix), claimedPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The record is still on disk and still counts against the
		// budget. The next Rescan queues it again.
		s.logger.Error("claiming spool record failed", "name", name, "error", err)
		return "", false
	}
	if size, known := s.sizes[name]; known {
		delete(s.sizes, name)
		s.permanent -= size
	}
	if err != nil {
		return "", false
	}
	s.claimed[name] = struct{}{}

	// Rename keeps the old mtime; the claim's age starts now.
	now := s.clock.Now()
	if err := os.Chtimes(claimedPath, now, now); err != nil {
		s.logger.Warn("stamping claimed spool record failed", "name", name, "error", err)
	}
	return claimedPath, true
}

func (s *Store) consume(name, claimedPath string) (*transmission.Transmission, bool) {
	defer func() {
		s.mu.Lock()
		delete(s.claimed, name)
		s.mu.Unlock()
	}()

	data, readErr := os.ReadFile(claimedPath)
	if err := os.Remove(claimedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("deleting claimed spool record failed", "name", name, "error", err)
	}
	if readErr != nil {
		s.logger.Error("reading spool record failed, record lost", "name", name, "error", readErr)
		return nil, false
	}

	t, err := decodeRecord(data)
	if err != nil {
		s.logger.Error("discarding unreadable spool record", "name", name, "bytes", len(data), "error", err)
		return nil, false
	}
	return t, true
}

// Rescan reads the directory and brings the index and byte accounting
// in line with it. Permanent files not yet indexed are queued in name
// order, and claims older than the grace period are restored first.
// Returns the number of permanent records on disk.
func (s *Store) Rescan() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("spool: rescan on closed store")
	}

	entries, err := s.scan()
	if err != nil {
		return 0, fmt.Errorf("spool: %w", err)
	}

	now := s.clock.Now()
	sizes := make(map[string]int64)
	var permanent int64
	var names []string
	for _, entry := range entries {
		switch entry.suffix {
		case claimedSuffix:
			if _, ours := s.claimed[entry.base]; ours {
				continue
			}
			if now.Sub(entry.modified) < s.claimGrace {
				continue
			}
			if err := os.Rename(s.path(entry.base, claimedSuffix), s.path(entry.base, permanentSuffix)); err != nil {
				s.logger.Warn("restoring stale spool claim failed", "name", entry.base, "error", err)
				continue
			}
			s.logger.Info("restored stale spool claim", "name", entry.base, "age", now.Sub(entry.modified))
		case permanentSuffix:
		default:
			continue
		}
		sizes[entry.base] = entry.size
		permanent += entry.size
		names = append(names, entry.base)
	}

	for _, name := range names {
		s.cache.Push(name)
	}

	if drift := permanent - s.permanent; drift != 0 {
		s.logger.Info("spool byte accounting corrected", "drift_bytes", drift, "used_bytes", permanent)
	}
	s.sizes = sizes
	s.permanent = permanent
	return len(names), nil
}

// Purge deletes every permanent record and every claim not held by
// this process, and empties the index. Returns the number of files
// removed.
func (s *Store) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("spool: purge on closed store")
	}

	entries, err := s.scan()
	if err != nil {
		return 0, fmt.Errorf("spool: %w", err)
	}
	removed := 0
	var firstErr error
	for _, entry := range entries {
		if _, ours := s.claimed[entry.base]; ours {
			continue
		}
		if err := os.Remove(s.path(entry.base, entry.suffix)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("spool: removing %s: %w", entry.base, err)
			}
			continue
		}
		removed++
	}
	s.cache.Reset()
	s.sizes = make(map[string]int64)
	s.permanent = 0
	if err := syncDirectory(s.dir); err != nil {
		s.logger.Warn("syncing spool directory failed", "error", err)
	}
	return removed, firstErr
}

// UsedBytes returns bytes held by permanent records plus writes in
// progress.
func (s *Store) UsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permanent + s.reserved
}

// MaxBytes returns the configured budget.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Len returns the number of indexed records awaiting fetch.
func (s *Store) Len() int { return s.cache.Len() }

// Dir returns the spool directory.
func (s *Store) Dir() string { return s.dir }

// Stats returns an occupancy snapshot.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Records:   s.cache.Len(),
		UsedBytes: s.UsedBytes(),
		MaxBytes:  s.maxBytes,
	}
}

// Close releases the directory lock. Writes and fetches after Close
// fail. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unlockDirectory(s.lock)
}

func (s *Store) release(size int64) {
	s.mu.Lock()
	s.reserved -= size
	s.mu.Unlock()
}

func (s *Store) path(name, suffix string) string {
	return filepath.Join(s.dir, name+suffix)
}

// Entry is one spool-owned file found by a directory scan.
type Entry struct {
	Name     string
	State    string
	Size     int64
	Modified time.Time

	// Created is the batch creation time encoded in Name; zero for
	// names this package did not generate.
	Created time.Time
}

type scanEntry struct {
	base     string
	suffix   string
	size     int64
	modified time.Time
}

// scan lists spool-owned files sorted by base name.
func (s *Store) scan() ([]scanEntry, error) {
	return scanDirectory(s.dir)
}

func scanDirectory(dir string) ([]scanEntry, error) {
	directoryEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	entries := make([]scanEntry, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.Type().IsRegular() {
			continue
		}
		base, suffix, ok := splitName(directoryEntry.Name())
		if !ok {
			continue
		}
		info, err := directoryEntry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		entries = append(entries, scanEntry{
			base:     base,
			suffix:   suffix,
			size:     info.Size(),
			modified: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].base < entries[j].base })
	return entries, nil
}

// List returns every spool-owned file in dir without locking it. State
// is "permanent", "claimed", or "partial". For inspection tools; a
// running Store may change the directory concurrently.
func List(dir string) ([]Entry, error) {
	scanned, err := scanDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("spool: %w", err)
	}
	entries := make([]Entry, len(scanned))
	for i, entry := range scanned {
		created, _ := nameTime(entry.base)
		entries[i] = Entry{
			Name:     entry.base,
			State:    stateName(entry.suffix),
			Size:     entry.size,
			Modified: entry.modified,
			Created:  created,
		}
	}
	return entries, nil
}

// ReadRecord decodes the record file for name in dir without claiming
// it. It looks for the permanent file first, then a claimed one.
func ReadRecord(dir, name string) (*transmission.Transmission, error) {
	data, err := ReadRawRecord(dir, name)
	if err != nil {
		return nil, err
	}
	t, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("spool: %s: %w", name, err)
	}
	return t, nil
}

// ReadRawRecord returns the undecoded file contents for name, looking
// in the same places as ReadRecord.
func ReadRawRecord(dir, name string) ([]byte, error) {
	for _, suffix := range []string{permanentSuffix, claimedSuffix} {
		data, err := os.ReadFile(filepath.Join(dir, name+suffix))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("spool: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("spool: record %s: %w", name, fs.ErrNotExist)
}

func stateName(suffix string) string {
	switch suffix {
	case permanentSuffix:
		return "permanent"
	case claimedSuffix:
		return "claimed"
	default:
		return "partial"
	}
}

// writeFileSynced creates path exclusively, writes data, and fsyncs.
func writeFileSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
