package workflow

import (
	"context"
	"sync"
	"time"
)

// AuditEvent records one step run for later inspection.
type AuditEvent struct {
	WorkflowID string
	RunID      string
	StepName   string
	StepKind   string
	Status     string
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	WorkflowID string
	RunID      string
	Status     string
	Limit      int
}

// AuditStore persists workflow audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in insertion order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f AuditFilter) matches(ev AuditEvent) bool {
	if f.WorkflowID != "" && ev.WorkflowID != f.WorkflowID {
		return false
	}
	if f.RunID != "" && ev.RunID != f.RunID {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}
