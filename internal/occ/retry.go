package occ

import (
	"errors"
	"time"

	"github.com/aretelabs/custodian/internal/domain"
)

// UpdateFunc computes a new payload from the current one. It runs outside
// any lock; it must not mutate the input payload in place.
type UpdateFunc func(current any) (any, error)

// WithRetry applies fn under read-recompute-write with bounded retries.
// On a version conflict it re-reads and tries again, sleeping briefly
// between attempts. Exhausting maxRetries surfaces the last conflict to the
// caller; retry policy beyond this helper (backoff shape, giving up sooner)
// stays with the caller.
func WithRetry(s *Store, id string, maxRetries int, fn UpdateFunc) (uint64, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := s.Read(id)
		if err != nil {
			return 0, err
		}

		next, err := fn(res.Payload)
		if err != nil {
			return 0, err
		}

		version, err := s.Write(id, res.Version, next)
		if err == nil {
			return version, nil
		}

		var conflict *domain.VersionConflictError
		if !errors.As(err, &conflict) {
			return 0, err
		}

		lastErr = err
		time.Sleep(time.Millisecond)
	}

	return 0, lastErr
}
