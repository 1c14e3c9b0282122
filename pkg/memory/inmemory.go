package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is the volatile tier: a mutex-guarded map with store-assigned
// monotonic ids.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
	nextID  int64
}

// NewInMemoryStore creates an empty volatile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[int64]*Entry)}
}

// Store inserts a new entry.
func (s *InMemoryStore) Store(_ context.Context, t Type, content any, importance Importance, tags []string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	entry := &Entry{
		ID:      s.nextID,
		Type:    t,
		Content: content,
		Metadata: Metadata{
			CreatedAt:  now,
			AccessedAt: now,
			Importance: importance,
			Tags:       append([]string(nil), tags...),
		},
	}
	s.entries[entry.ID] = entry
	return entry.Clone(), nil
}

// Retrieve returns the entry and bumps its access metadata.
func (s *InMemoryStore) Retrieve(_ context.Context, id int64) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	touch(entry)
	return entry.Clone(), nil
}

// Query returns matching entries sorted by AccessedAt descending, bumping
// access metadata on every returned entry.
func (s *InMemoryStore) Query(_ context.Context, filter Filter) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var matched []*Entry
	for _, entry := range s.entries {
		if filter.Matches(entry, now) {
			matched = append(matched, entry)
		}
	}
	sortByAccessedAtDesc(matched)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*Entry, len(matched))
	for i, entry := range matched {
		touch(entry)
		out[i] = entry.Clone()
	}
	return out, nil
}

// Delete removes an entry by id.
func (s *InMemoryStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

// Clear removes entries of the given type, or everything when t is empty.
func (s *InMemoryStore) Clear(_ context.Context, t Type) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, entry := range s.entries {
		if t == "" || entry.Type == t {
			delete(s.entries, id)
			count++
		}
	}
	return count, nil
}

// Stats aggregates the store contents.
func (s *InMemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ByType:       make(map[Type]int),
		ByImportance: make(map[Importance]int),
	}
	totalAccess := 0
	for _, entry := range s.entries {
		stats.TotalEntries++
		stats.ByType[entry.Type]++
		stats.ByImportance[entry.Metadata.Importance]++
		totalAccess += entry.Metadata.AccessCount

		created := entry.Metadata.CreatedAt
		if stats.OldestEntry == nil || created.Before(*stats.OldestEntry) {
			c := created
			stats.OldestEntry = &c
		}
		if stats.NewestEntry == nil || created.After(*stats.NewestEntry) {
			c := created
			stats.NewestEntry = &c
		}
	}
	if stats.TotalEntries > 0 {
		stats.AverageAccessCount = float64(totalAccess) / float64(stats.TotalEntries)
	}
	return stats, nil
}

// Prune removes entries below minImportance, age-gated only when maxAge > 0.
func (s *InMemoryStore) Prune(_ context.Context, maxAge time.Duration, minImportance Importance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for id, entry := range s.entries {
		if !prunable(entry, now, maxAge, minImportance) {
			continue
		}
		delete(s.entries, id)
		count++
	}
	return count, nil
}

// Consolidate is a no-op at the tier level.
func (s *InMemoryStore) Consolidate(_ context.Context) (int, error) {
	return 0, nil
}

func touch(entry *Entry) {
	entry.Metadata.AccessCount++
	now := time.Now().UTC()
	if now.After(entry.Metadata.AccessedAt) {
		entry.Metadata.AccessedAt = now
	}
}

func prunable(entry *Entry, now time.Time, maxAge time.Duration, minImportance Importance) bool {
	if entry.Metadata.Importance >= minImportance {
		return false
	}
	if maxAge > 0 {
		return now.Sub(entry.Metadata.CreatedAt) > maxAge
	}
	return true
}

func sortByAccessedAtDesc(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Metadata.AccessedAt, entries[j].Metadata.AccessedAt
		if a.Equal(b) {
			return entries[i].ID > entries[j].ID
		}
		return a.After(b)
	})
}

var _ Store = (*InMemoryStore)(nil)
