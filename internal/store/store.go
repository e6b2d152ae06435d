package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MariamHany01/key-valueDB/internal/metrics"
)

const walFile = "wal.log"

// Store is the in-memory key-value map plus its durability engine. It is
// safe for concurrent use: every mutator appends to the WAL and updates the
// map under the same exclusive lock, so WAL order and map-visible order
// always agree.
type Store struct {
	mu      sync.RWMutex
	data    map[string]Value
	wal     *wal
	dataDir string
}

// Open creates dataDir if needed, loads the checkpoint (if any), then
// replays the WAL on top of it, leaving the WAL open for further appends.
// This recovery sequence runs once at startup.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		data:    loadCheckpoint(dataDir),
		dataDir: dataDir,
	}

	w, err := openWAL(filepath.Join(dataDir, walFile))
	if err != nil {
		return nil, err
	}
	s.wal = w

	records, err := w.replay()
	if err != nil {
		return nil, fmt.Errorf("replay wal: %w", err)
	}
	for _, r := range records {
		s.applyLocked(r)
	}

	return s, nil
}

// applyLocked mutates the map for one record without touching the WAL.
// Used both by recovery (replaying past records) and by Set/Delete/BulkSet
// (after they've already appended the record being applied).
func (s *Store) applyLocked(r record) {
	switch r.Type {
	case opSet:
		s.data[r.Key] = r.Value
	case opDelete:
		delete(s.data, r.Key)
	case opBulkSet:
		for _, it := range r.Items {
			s.data[it.Key] = it.Value
		}
	}
}

// Set durably stores key=value: the record is appended and fsynced before
// the in-memory map is updated, and only then does this return nil.
func (s *Store) Set(key string, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := record{Type: opSet, Key: key, Value: value}
	if err := s.wal.append(r); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	s.applyLocked(r)
	return nil
}

// Get returns the current value for key, or (nil, false) if absent. Reads
// never touch the WAL.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Delete removes key if present. A missing key is a no-op that returns
// false and logs nothing to the WAL — there is nothing to make durable.
func (s *Store) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return false, nil
	}

	r := record{Type: opDelete, Key: key}
	if err := s.wal.append(r); err != nil {
		return false, fmt.Errorf("wal append: %w", err)
	}
	s.applyLocked(r)
	return true, nil
}

// BulkSetItem is one key/value pair passed to BulkSet.
type BulkSetItem struct {
	Key   string
	Value Value
}

// BulkSet appends a single WAL record covering every item, then applies all
// of them. That one record is the unit of atomicity: after any crash the
// recovered store contains either all of these bindings or none, because
// replay either sees the whole record or (if truncated) none of it.
func (s *Store) BulkSet(items []BulkSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recItems := make([]item, len(items))
	for i, it := range items {
		recItems[i] = item{Key: it.Key, Value: it.Value}
	}

	r := record{Type: opBulkSet, Items: recItems}
	if err := s.wal.append(r); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	s.applyLocked(r)
	return nil
}

// Snapshot returns a copy of the current map with every value cloned. It is
// never called while a mutator or Checkpoint already holds the lock — see
// DESIGN.md on why this store doesn't need a reentrant mutex.
func (s *Store) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Value, len(s.data))
	for k, v := range s.data {
		out[k] = Clone(v)
	}
	return out
}

// Checkpoint writes the store durably to dataDir/data.ckpt, then truncates
// the WAL. The write lock is held from serialization through truncation, so
// no mutation can be appended to the WAL after the checkpoint's view of the
// map was taken and then be discarded by the truncate; concurrent appends
// wait until the checkpoint file is written and synced.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := saveCheckpoint(s.dataDir, s.data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if err := s.wal.truncate(); err != nil {
		return err
	}
	metrics.CheckpointsTotal.Inc()
	return nil
}

// Close closes the WAL file. Call during graceful shutdown, after a final
// Checkpoint().
func (s *Store) Close() error {
	return s.wal.close()
}
