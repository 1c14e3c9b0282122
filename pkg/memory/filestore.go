package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexFileName = "index.json"

// indexRecord is the metadata kept in the shared index file so queries can
// filter without loading full entry content.
type indexRecord struct {
	ID          int64      `json:"id"`
	Type        Type       `json:"type"`
	Importance  Importance `json:"importance"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AccessedAt  time.Time  `json:"accessed_at"`
	AccessCount int        `json:"access_count"`
}

// FileStore is the durable tier. Every entry is one <id>.json file; a single
// shared index.json carries the metadata needed for queries. Full content is
// loaded lazily per matching id.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	index  map[int64]*indexRecord
	nextID int64
}

// NewFileStore opens (or creates) a file-backed store rooted at dir.
// A corrupt or missing index is treated as an empty store, not a fatal error.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create store dir: %w", err)
	}
	s := &FileStore{
		dir:   dir,
		index: make(map[int64]*indexRecord),
	}
	s.loadIndex()
	return s, nil
}

func (s *FileStore) loadIndex() {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if err != nil {
		return
	}
	var records []*indexRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	for _, record := range records {
		s.index[record.ID] = record
		if record.ID > s.nextID {
			s.nextID = record.ID
		}
	}
}

func (s *FileStore) saveIndex() error {
	records := make([]*indexRecord, 0, len(s.index))
	for _, record := range s.index {
		records = append(records, record)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("memory: marshal index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, indexFileName), data, 0o600); err != nil {
		return fmt.Errorf("memory: write index: %w", err)
	}
	return nil
}

func (s *FileStore) entryPath(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
}

func (s *FileStore) saveEntry(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("memory: marshal entry %d: %w", entry.ID, err)
	}
	if err := os.WriteFile(s.entryPath(entry.ID), data, 0o600); err != nil {
		return fmt.Errorf("memory: write entry %d: %w", entry.ID, err)
	}
	return nil
}

func (s *FileStore) loadEntry(id int64) (*Entry, error) {
	data, err := os.ReadFile(s.entryPath(id))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Store inserts a new entry, persisting the entry file and the index.
func (s *FileStore) Store(_ context.Context, t Type, content any, importance Importance, tags []string) (*Entry, error) {
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
	if err := s.saveEntry(entry); err != nil {
		s.nextID--
		return nil, err
	}
	s.index[entry.ID] = &indexRecord{
		ID:         entry.ID,
		Type:       t,
		Importance: importance,
		Tags:       append([]string(nil), tags...),
		CreatedAt:  now,
		AccessedAt: now,
	}
	if err := s.saveIndex(); err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// Retrieve loads the entry, bumps its access metadata and persists the bump.
func (s *FileStore) Retrieve(_ context.Context, id int64) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	entry, err := s.loadEntry(id)
	if err != nil {
		return nil, ErrNotFound
	}
	touch(entry)
	record.AccessCount = entry.Metadata.AccessCount
	record.AccessedAt = entry.Metadata.AccessedAt
	if err := s.saveEntry(entry); err != nil {
		return nil, err
	}
	if err := s.saveIndex(); err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// Query filters on index metadata first, loading content only for candidate
// ids. Returned entries get the same access bump Retrieve applies.
func (s *FileStore) Query(_ context.Context, filter Filter) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	metaFilter := filter
	metaFilter.SearchText = ""
	metaFilter.Limit = 0
	searchFilter := Filter{SearchText: filter.SearchText}

	var matched []*Entry
	for id, record := range s.index {
		probe := &Entry{
			ID:   record.ID,
			Type: record.Type,
			Metadata: Metadata{
				CreatedAt:  record.CreatedAt,
				AccessedAt: record.AccessedAt,
				Importance: record.Importance,
				Tags:       record.Tags,
			},
		}
		if !metaFilter.Matches(probe, now) {
			continue
		}
		entry, err := s.loadEntry(id)
		if err != nil {
			continue
		}
		if filter.SearchText != "" && !searchFilter.Matches(entry, now) {
			continue
		}
		matched = append(matched, entry)
	}
	sortByAccessedAtDesc(matched)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*Entry, len(matched))
	for i, entry := range matched {
		touch(entry)
		if record, ok := s.index[entry.ID]; ok {
			record.AccessCount = entry.Metadata.AccessCount
			record.AccessedAt = entry.Metadata.AccessedAt
		}
		if err := s.saveEntry(entry); err != nil {
			return nil, err
		}
		out[i] = entry.Clone()
	}
	if len(matched) > 0 {
		if err := s.saveIndex(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes the entry file and its index record.
func (s *FileStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false, nil
	}
	delete(s.index, id)
	if err := os.Remove(s.entryPath(id)); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if err := s.saveIndex(); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes entries of the given type, or everything when t is empty.
func (s *FileStore) Clear(_ context.Context, t Type) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, record := range s.index {
		if t != "" && record.Type != t {
			continue
		}
		delete(s.index, id)
		if err := os.Remove(s.entryPath(id)); err != nil && !os.IsNotExist(err) {
			return count, err
		}
		count++
	}
	if err := s.saveIndex(); err != nil {
		return count, err
	}
	return count, nil
}

// Stats aggregates from the index without loading entry content.
func (s *FileStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{
		ByType:       make(map[Type]int),
		ByImportance: make(map[Importance]int),
	}
	totalAccess := 0
	for _, record := range s.index {
		stats.TotalEntries++
		stats.ByType[record.Type]++
		stats.ByImportance[record.Importance]++
		totalAccess += record.AccessCount

		created := record.CreatedAt
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
func (s *FileStore) Prune(_ context.Context, maxAge time.Duration, minImportance Importance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for id, record := range s.index {
		probe := &Entry{Metadata: Metadata{
			CreatedAt:  record.CreatedAt,
			Importance: record.Importance,
		}}
		if !prunable(probe, now, maxAge, minImportance) {
			continue
		}
		delete(s.index, id)
		if err := os.Remove(s.entryPath(id)); err != nil && !os.IsNotExist(err) {
			return count, err
		}
		count++
	}
	if count > 0 {
		if err := s.saveIndex(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Consolidate is a no-op at the tier level.
func (s *FileStore) Consolidate(_ context.Context) (int, error) {
	return 0, nil
}

var _ Store = (*FileStore)(nil)
