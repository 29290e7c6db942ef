// Package store persists short links as a whole-store snapshot.
//
// A Backend loads and saves the complete code -> link mapping; Repository
// serializes every load-mutate-save sequence so concurrent callers never
// lose an update.
package store

import (
	"context"
	"maps"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Snapshot is the full set of links keyed by code.
type Snapshot map[string]shortener.Link

// Clone returns a copy that shares no map with s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	maps.Copy(out, s)
	return out
}

// Backend is a durable home for a Snapshot.
type Backend interface {
	// Load returns the current snapshot. A store that does not exist yet
	// loads as an empty snapshot.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot with s. Readers observe either the
	// previous snapshot or s, never a mix.
	Save(ctx context.Context, s Snapshot) error
}
