// Package store keeps the watermark records and the persisted reference
// images. Records live in process memory for the process lifetime: the
// registry is append-only, records are immutable once inserted, and there is
// no teardown.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yyyoichi/watermark_verify/adapter"
	"github.com/yyyoichi/watermark_verify/phash"
)

var ErrDuplicateID = errors.New("store: duplicate watermark id")

// Record binds a watermark identity to everything verification needs: the
// backend that embedded it, that backend's opaque metadata, the source
// geometry, and the persisted reference image's location and checksum.
type Record struct {
	ID          string
	Adapter     string
	Meta        adapter.Metadata
	Width       int
	Height      int
	RefPath     string
	RefChecksum string
	Fingerprint phash.Fingerprint
	CreatedAt   time.Time
}

// Store is the process-wide record registry. Inserts only ever add new keys;
// the mutex guards the map structure itself, not any read-modify-write
// sequence, because none exists.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

func New() *Store {
	return &Store{records: make(map[string]Record)}
}

// Put inserts a record. Inserting an existing identity is an error: records
// are write-once.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

// Get looks up a record by identity.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Len reports the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
