package memory

import (
	"context"
	"time"
)

// Store is the contract shared by both memory tiers.
//
// Retrieval is not read-only: Retrieve and Query bump AccessCount and
// AccessedAt on every entry they return.
type Store interface {
	// Store inserts a new entry, assigning a fresh id and stamping
	// CreatedAt = AccessedAt = now with AccessCount 0.
	Store(ctx context.Context, t Type, content any, importance Importance, tags []string) (*Entry, error)

	// Retrieve returns the entry with the given id, bumping its access
	// metadata. Returns ErrNotFound on a miss.
	Retrieve(ctx context.Context, id int64) (*Entry, error)

	// Query returns entries matching the filter, sorted by AccessedAt
	// descending before the limit is applied. Every returned entry gets the
	// same access bump Retrieve applies.
	Query(ctx context.Context, filter Filter) ([]*Entry, error)

	// Delete removes the entry with the given id, reporting whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)

	// Clear removes entries of the given type, or all entries when t is empty,
	// returning the removed count.
	Clear(ctx context.Context, t Type) (int, error)

	// Stats aggregates the store contents.
	Stats(ctx context.Context) (*Stats, error)

	// Prune removes entries below minImportance. With maxAge > 0 an entry is
	// removed only when it is also older than maxAge; with maxAge 0 pruning is
	// importance-only and ignores age entirely.
	Prune(ctx context.Context, maxAge time.Duration, minImportance Importance) (int, error)

	// Consolidate is a no-op at the tier level; promotion lives in the Manager.
	Consolidate(ctx context.Context) (int, error)
}
