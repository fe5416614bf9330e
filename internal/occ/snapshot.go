package occ

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// resourceRecord is the wire form of a stored resource
type resourceRecord struct {
	Version uint64 `msgpack:"version"`
	Payload any    `msgpack:"payload"`
}

// Snapshot serializes the full resource table with msgpack. Used for
// warm-start persistence across restarts; versions survive the round trip
// so in-flight writers conflict correctly after a restore.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	records := make(map[string]resourceRecord, len(s.entries))
	for id, e := range s.entries {
		e.mu.Lock()
		records[id] = resourceRecord{Version: e.version, Payload: e.payload}
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	data, err := msgpack.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the resource table with a previously taken snapshot.
// Payloads decode to msgpack's generic representation (maps, strings,
// numbers); callers that stored concrete structs should re-register them.
func (s *Store) Restore(data []byte) error {
	var records map[string]resourceRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode resource snapshot: %w", err)
	}

	entries := make(map[string]*entry, len(records))
	for id, rec := range records {
		if rec.Version == 0 {
			return fmt.Errorf("snapshot contains resource %s with version 0", id)
		}
		entries[id] = &entry{version: rec.Version, payload: rec.Payload}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	return nil
}
