// Package catalog holds the reference table mapping vendor names to
// commitment identifiers and cost codes. The table is loaded wholesale into
// an immutable snapshot; catalog edits take effect only for sessions started
// after a reload.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Record is one row of the reference table.
type Record struct {
	CommitmentID string `json:"commitment_id"`
	Vendor       string `json:"vendor"`
	CostCode     string `json:"cost_code"`
}

// Snapshot is an immutable view of the catalog. Concurrent reads need no
// locking; a reload builds a fresh Snapshot.
type Snapshot struct {
	records  []Record
	loadedAt time.Time
	source   string
}

// NewSnapshot wraps already-loaded records in an immutable view. Used when
// the rows come from somewhere other than the reference-table file.
func NewSnapshot(records []Record) *Snapshot {
	return &Snapshot{records: records, loadedAt: time.Now()}
}

// Records returns the rows in load order.
func (s *Snapshot) Records() []Record { return s.records }

// Len returns the row count.
func (s *Snapshot) Len() int { return len(s.records) }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Vendors returns all canonical vendor names, skipping blanks.
func (s *Snapshot) Vendors() []string {
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		if r.Vendor != "" {
			out = append(out, r.Vendor)
		}
	}
	return out
}

// Store owns the current catalog snapshot and swaps it atomically on reload.
type Store struct {
	mu     sync.RWMutex
	snap   *Snapshot
	path   string
	logger *slog.Logger
}

// NewStore creates a Store bound to the reference-table file. Call Load
// before first use.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the reference table and swaps in a new snapshot. A malformed
// row fails the whole load and leaves the previous snapshot in place.
func (s *Store) Load(ctx context.Context) error {
	start := time.Now()
	records, err := LoadFile(s.path)
	if err != nil {
		s.logger.Error("catalog.load.failed", "path", s.path, "error", err)
		return fmt.Errorf("load catalog %s: %w", s.path, err)
	}

	snap := &Snapshot{
		records:  records,
		loadedAt: time.Now().UTC(),
		source:   s.path,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("catalog.load.ok",
		"path", s.path,
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Snapshot returns the current snapshot. Before the first successful Load
// it is empty, never nil, so callers can count and range without guarding.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return &Snapshot{}
	}
	return s.snap
}
