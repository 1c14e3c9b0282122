package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrManagerStopped is returned by operations on a closed Manager. A new
// Manager must be constructed to resume; there is no restart.
var ErrManagerStopped = errors.New("memory: manager stopped")

// Tier names one of the two composed stores.
type Tier string

const (
	TierVolatile Tier = "short_term"
	TierDurable  Tier = "long_term"
)

// Router maps an entry type to the tier that stores it. It is a pure
// function injected at construction so routing policy is swappable and
// independently testable from storage mechanics.
type Router func(Type) Tier

// DefaultRouter routes long-term and semantic entries to the durable tier,
// everything else to the volatile tier.
func DefaultRouter(t Type) Tier {
	switch t {
	case TypeLongTerm, TypeSemantic:
		return TierDurable
	default:
		return TierVolatile
	}
}

const (
	DefaultConsolidationThreshold = 100
	DefaultConsolidationFloor     = ImportanceHigh
	DefaultPruneMaxAge            = 24 * time.Hour
)

// Manager composes one volatile and one durable tier store. It owns routing,
// consolidation (promotion volatile -> durable), pruning and combined stats,
// and is the only component with a background timer.
//
// Lifecycle: Active on construction (the prune timer starts if configured),
// Stopped after Close. The mutex serializes the store/check-then-consolidate
// sequence so threshold consolidation cannot race with other writers.
type Manager struct {
	mu       sync.Mutex
	volatile Store
	durable  Store
	router   Router
	logger   *slog.Logger

	consolidationThreshold int
	consolidationFloor     Importance
	pruneInterval          time.Duration
	pruneMaxAge            time.Duration

	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup

	entriesStored metric.Int64Counter
	consolidated  metric.Int64Counter
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRouter replaces the default routing policy.
func WithRouter(router Router) ManagerOption {
	return func(m *Manager) { m.router = router }
}

// WithConsolidationThreshold sets the volatile entry count that triggers
// synchronous consolidation from within Store.
func WithConsolidationThreshold(threshold int) ManagerOption {
	return func(m *Manager) { m.consolidationThreshold = threshold }
}

// WithConsolidationFloor sets the minimum importance an entry needs to be
// promoted during consolidation.
func WithConsolidationFloor(floor Importance) ManagerOption {
	return func(m *Manager) { m.consolidationFloor = floor }
}

// WithAutoPrune enables the background prune timer. Interval must be positive;
// maxAge 0 keeps the 24h default.
func WithAutoPrune(interval, maxAge time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pruneInterval = interval
		if maxAge > 0 {
			m.pruneMaxAge = maxAge
		}
	}
}

// WithLogger sets the structured logger used by background work.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates an Active manager over the two tiers, starting the prune
// timer when configured.
func NewManager(volatile, durable Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		volatile:               volatile,
		durable:                durable,
		router:                 DefaultRouter,
		logger:                 slog.Default(),
		consolidationThreshold: DefaultConsolidationThreshold,
		consolidationFloor:     DefaultConsolidationFloor,
		pruneMaxAge:            DefaultPruneMaxAge,
		stopCh:                 make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	meter := otel.Meter("loom/memory")
	m.entriesStored, _ = meter.Int64Counter("loom.memory.entries",
		metric.WithDescription("Entries stored through the manager, by type and tier."))
	m.consolidated, _ = meter.Int64Counter("loom.memory.consolidations",
		metric.WithDescription("Entries promoted from the volatile to the durable tier."))
	if m.pruneInterval > 0 {
		m.wg.Add(1)
		go m.autoPruneLoop()
	}
	return m
}

func (m *Manager) tierStore(tier Tier) Store {
	if tier == TierDurable {
		return m.durable
	}
	return m.volatile
}

// Store routes the entry to its tier. A write into the volatile tier that
// brings its total to the consolidation threshold triggers consolidation
// synchronously before Store returns, so writes are occasionally much slower
// than average.
func (m *Manager) Store(ctx context.Context, t Type, content any, importance Importance, tags []string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}

	tier := m.router(t)
	entry, err := m.tierStore(tier).Store(ctx, t, content, importance, tags)
	if err != nil {
		return nil, err
	}
	m.entriesStored.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(t)),
		attribute.String("tier", string(tier)),
	))
	if tier != TierVolatile {
		return entry, nil
	}

	stats, err := m.volatile.Stats(ctx)
	if err != nil {
		m.logger.Warn("memory.consolidation.stats_failed", slog.String("error", err.Error()))
		return entry, nil
	}
	if stats.TotalEntries >= m.consolidationThreshold {
		moved, err := m.consolidateLocked(ctx)
		if err != nil {
			m.logger.Warn("memory.consolidation.failed", slog.String("error", err.Error()))
		} else if moved > 0 {
			m.logger.Info("memory.consolidation.triggered",
				slog.Int("moved", moved),
				slog.Int("threshold", m.consolidationThreshold),
			)
		}
	}
	return entry, nil
}

// Query fans out to the tier matching the requested type, or both tiers when
// the type is unspecified, then merges, re-sorts by AccessedAt descending and
// applies the limit across the combined set.
func (m *Manager) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}

	var stores []Store
	if filter.Type == "" {
		stores = []Store{m.volatile, m.durable}
	} else {
		stores = []Store{m.tierStore(m.router(filter.Type))}
	}

	subFilter := filter
	subFilter.Limit = 0 // limit applies across the combined set

	var combined []*Entry
	for _, store := range stores {
		entries, err := store.Query(ctx, subFilter)
		if err != nil {
			return nil, err
		}
		combined = append(combined, entries...)
	}
	sortByAccessedAtDesc(combined)
	if filter.Limit > 0 && len(combined) > filter.Limit {
		combined = combined[:filter.Limit]
	}
	return combined, nil
}

// Consolidate promotes volatile entries at or above the consolidation floor
// into the durable tier, deleting the volatile originals. Returns the number
// of entries actually moved.
func (m *Manager) Consolidate(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return 0, ErrManagerStopped
	}
	return m.consolidateLocked(ctx)
}

func (m *Manager) consolidateLocked(ctx context.Context) (int, error) {
	candidates, err := m.volatile.Query(ctx, Filter{MinImportance: m.consolidationFloor})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, entry := range candidates {
		// A failed durable write skips the entry: it stays in the volatile
		// tier for a future consolidation pass, never lost.
		if _, err := m.durable.Store(ctx, TypeLongTerm, entry.Content, entry.Metadata.Importance, entry.Metadata.Tags); err != nil {
			m.logger.Warn("memory.consolidation.entry_skipped",
				slog.Int64("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, err := m.volatile.Delete(ctx, entry.ID); err != nil {
			m.logger.Warn("memory.consolidation.delete_failed",
				slog.Int64("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		moved++
	}
	if moved > 0 {
		m.consolidated.Add(ctx, int64(moved))
	}
	return moved, nil
}

// Prune prunes the volatile tier.
func (m *Manager) Prune(ctx context.Context, maxAge time.Duration, minImportance Importance) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return 0, ErrManagerStopped
	}
	return m.volatile.Prune(ctx, maxAge, minImportance)
}

// Stats merges both tiers: counts add, the average access count is weighted
// across the combined entry population.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}

	volatileStats, err := m.volatile.Stats(ctx)
	if err != nil {
		return nil, err
	}
	durableStats, err := m.durable.Stats(ctx)
	if err != nil {
		return nil, err
	}

	merged := &Stats{
		TotalEntries: volatileStats.TotalEntries + durableStats.TotalEntries,
		ByType:       make(map[Type]int),
		ByImportance: make(map[Importance]int),
	}
	for _, stats := range []*Stats{volatileStats, durableStats} {
		for t, n := range stats.ByType {
			merged.ByType[t] += n
		}
		for imp, n := range stats.ByImportance {
			merged.ByImportance[imp] += n
		}
		if stats.OldestEntry != nil && (merged.OldestEntry == nil || stats.OldestEntry.Before(*merged.OldestEntry)) {
			merged.OldestEntry = stats.OldestEntry
		}
		if stats.NewestEntry != nil && (merged.NewestEntry == nil || stats.NewestEntry.After(*merged.NewestEntry)) {
			merged.NewestEntry = stats.NewestEntry
		}
	}
	if merged.TotalEntries > 0 {
		weighted := volatileStats.AverageAccessCount*float64(volatileStats.TotalEntries) +
			durableStats.AverageAccessCount*float64(durableStats.TotalEntries)
		merged.AverageAccessCount = weighted / float64(merged.TotalEntries)
	}
	return merged, nil
}

// Close stops the background timer and marks the manager Stopped. There is no
// transition back to Active.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Manager) autoPruneLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.stopped {
				m.mu.Unlock()
				return
			}
			count, err := m.volatile.Prune(context.Background(), m.pruneMaxAge, ImportanceMedium)
			m.mu.Unlock()
			if err != nil {
				// Tick errors are logged only: the timer must outlive them.
				m.logger.Error("memory.autoprune.failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				m.logger.Info("memory.autoprune.done", slog.Int("pruned", count))
			}
		}
	}
}
