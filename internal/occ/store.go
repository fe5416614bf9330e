// Package occ provides optimistic concurrency control over shared
// mutable records. Writers supply the version they read; stale writes are
// rejected with a version conflict instead of silently overwriting.
package occ

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/domain"
)

// Resource is a snapshot of a versioned record as seen by a reader
type Resource struct {
	ID      string
	Version uint64
	Payload any
}

// entry is the stored record. Version starts at 1 on creation and only
// ever increases. The entry mutex covers the compare-and-swap section of a
// write; it is never held across caller think time.
type entry struct {
	mu      sync.Mutex
	version uint64
	payload any
}

// Store holds versioned resources keyed by identifier. Resources are
// independent: a conflict on one never blocks or fails an operation on
// another.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     zerolog.Logger
}

// NewStore creates an empty versioned resource store
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		log:     log.With().Str("component", "resource_store").Logger(),
	}
}

// Create registers a new resource at version 1. It fails if the identifier
// is already in use.
func (s *Store) Create(id string, payload any) (Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return Resource{}, fmt.Errorf("resource %s already exists", id)
	}

	s.entries[id] = &entry{version: 1, payload: payload}
	return Resource{ID: id, Version: 1, Payload: payload}, nil
}

// Read returns the current payload and version of a resource.
// Reading takes no lock beyond the lookup instant; the returned snapshot
// may be stale by the time the caller writes, which is the point of OCC.
func (s *Store) Read(id string) (Resource, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Resource{}, err
	}

	e.mu.Lock()
	res := Resource{ID: id, Version: e.version, Payload: e.payload}
	e.mu.Unlock()

	return res, nil
}

// Write replaces the payload of a resource iff the stored version still
// equals the version the caller read. On success the version increments and
// the new version is returned. A stale version yields
// *domain.VersionConflictError carrying expected vs actual.
func (s *Store) Write(id string, version uint64, payload any) (uint64, error) {
	e, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.version != version {
		s.log.Debug().
			Str("resource", id).
			Uint64("expected", version).
			Uint64("actual", e.version).
			Msg("Version conflict")
		return 0, &domain.VersionConflictError{
			ResourceID: id,
			Expected:   version,
			Actual:     e.version,
		}
	}

	e.payload = payload
	e.version++
	return e.version, nil
}

// Delete removes a resource. Missing resources are not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// IDs returns the identifiers of all stored resources
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resource %s not found", id)
	}
	return e, nil
}
