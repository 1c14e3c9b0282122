// Package memory provides the two-tier memory subsystem: tier stores
// (volatile and durable) and the manager that composes them.
package memory

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound indicates no matching entry was found.
var ErrNotFound = errors.New("memory: not found")

// Type classifies a memory entry.
type Type string

const (
	TypeShortTerm Type = "short_term"
	TypeLongTerm  Type = "long_term"
	TypeEpisodic  Type = "episodic"
	TypeSemantic  Type = "semantic"
)

// Importance orders entries from Low to Critical.
type Importance int

const (
	ImportanceLow Importance = iota + 1
	ImportanceMedium
	ImportanceHigh
	ImportanceCritical
)

func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	case ImportanceCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseImportance maps a configuration string to an Importance level.
func ParseImportance(s string) (Importance, bool) {
	switch s {
	case "low":
		return ImportanceLow, true
	case "medium":
		return ImportanceMedium, true
	case "high":
		return ImportanceHigh, true
	case "critical":
		return ImportanceCritical, true
	default:
		return 0, false
	}
}

// Metadata carries the access bookkeeping for an entry.
// Invariants: AccessedAt >= CreatedAt, AccessCount only increases.
type Metadata struct {
	CreatedAt   time.Time  `json:"created_at"`
	AccessedAt  time.Time  `json:"accessed_at"`
	AccessCount int        `json:"access_count"`
	Importance  Importance `json:"importance"`
	Tags        []string   `json:"tags,omitempty"`
}

// Entry is one stored memory record. IDs are store-assigned and monotonic
// per store.
type Entry struct {
	ID       int64    `json:"id"`
	Type     Type     `json:"type"`
	Content  any      `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Clone returns a copy safe to hand to callers.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	return &clone
}

// HasAnyTag reports whether the entry carries at least one of the given tags.
func (e *Entry) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Metadata.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ContentText returns the serialized form of the content used for substring
// search.
func (e *Entry) ContentText() string {
	if s, ok := e.Content.(string); ok {
		return s
	}
	data, err := json.Marshal(e.Content)
	if err != nil {
		return ""
	}
	return string(data)
}

// Filter selects entries in Query. All supplied predicates are AND-combined.
// Zero values mean "not set".
type Filter struct {
	Type          Type
	Tags          []string
	MinImportance Importance
	MaxAge        time.Duration
	SearchText    string
	Limit         int
}

// Matches applies the filter's predicates to one entry at the given instant.
func (f Filter) Matches(e *Entry, now time.Time) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if len(f.Tags) > 0 && !e.HasAnyTag(f.Tags) {
		return false
	}
	if f.MinImportance != 0 && e.Metadata.Importance < f.MinImportance {
		return false
	}
	if f.MaxAge > 0 && now.Sub(e.Metadata.CreatedAt) > f.MaxAge {
		return false
	}
	if f.SearchText != "" && !strings.Contains(e.ContentText(), f.SearchText) {
		return false
	}
	return true
}

// Stats aggregates a store's contents.
type Stats struct {
	TotalEntries       int                `json:"total_entries"`
	ByType             map[Type]int       `json:"by_type"`
	ByImportance       map[Importance]int `json:"by_importance"`
	OldestEntry        *time.Time         `json:"oldest_entry,omitempty"`
	NewestEntry        *time.Time         `json:"newest_entry,omitempty"`
	AverageAccessCount float64            `json:"average_access_count"`
}
