// Package dedupe remembers recently seen transaction signatures so the live
// channel does not fetch the same transaction twice.
package dedupe

import "context"

// Deduper reports whether id was already seen and marks it as seen.
type Deduper interface {
	// Seen returns true for a duplicate; the caller may skip it.
	Seen(ctx context.Context, id string) (bool, error)

	// Forget clears id so a later Seen reports it as new. Callers use it
	// when the work behind a first sighting failed.
	Forget(ctx context.Context, id string) error
}
