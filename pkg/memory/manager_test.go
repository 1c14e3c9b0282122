package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *InMemoryStore, *FileStore) {
	t.Helper()
	volatile := NewInMemoryStore()
	durable, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store failed: %v", err)
	}
	opts = append([]ManagerOption{WithLogger(quietLogger())}, opts...)
	manager := NewManager(volatile, durable, opts...)
	t.Cleanup(func() { manager.Close() })
	return manager, volatile, durable
}

func TestDefaultRouting(t *testing.T) {
	manager, volatile, durable := newTestManager(t)
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "volatile", ImportanceMedium, nil)
	manager.Store(ctx, TypeEpisodic, "volatile too", ImportanceMedium, nil)
	manager.Store(ctx, TypeLongTerm, "durable", ImportanceMedium, nil)
	manager.Store(ctx, TypeSemantic, "durable too", ImportanceMedium, nil)

	volatileStats, _ := volatile.Stats(ctx)
	durableStats, _ := durable.Stats(ctx)
	if volatileStats.TotalEntries != 2 {
		t.Errorf("expected 2 volatile entries, got %d", volatileStats.TotalEntries)
	}
	if durableStats.TotalEntries != 2 {
		t.Errorf("expected 2 durable entries, got %d", durableStats.TotalEntries)
	}
}

func TestCustomRouter(t *testing.T) {
	everythingDurable := func(Type) Tier { return TierDurable }
	manager, volatile, durable := newTestManager(t, WithRouter(everythingDurable))
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "rerouted", ImportanceMedium, nil)

	volatileStats, _ := volatile.Stats(ctx)
	durableStats, _ := durable.Stats(ctx)
	if volatileStats.TotalEntries != 0 || durableStats.TotalEntries != 1 {
		t.Errorf("expected routing override to win: volatile=%d durable=%d",
			volatileStats.TotalEntries, durableStats.TotalEntries)
	}
}

func TestThresholdConsolidation(t *testing.T) {
	manager, _, _ := newTestManager(t, WithConsolidationThreshold(5))
	ctx := context.Background()

	// The 5th store call itself triggers consolidation before returning.
	for i := 0; i < 5; i++ {
		if _, err := manager.Store(ctx, TypeShortTerm, i, ImportanceHigh, nil); err != nil {
			t.Fatalf("store %d failed: %v", i, err)
		}
	}

	stats, err := manager.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ByType[TypeShortTerm] != 0 {
		t.Errorf("expected 0 short-term entries after consolidation, got %d", stats.ByType[TypeShortTerm])
	}
	if stats.ByType[TypeLongTerm] != 5 {
		t.Errorf("expected 5 long-term entries after consolidation, got %d", stats.ByType[TypeLongTerm])
	}
}

func TestConsolidationFloor(t *testing.T) {
	manager, volatile, durable := newTestManager(t)
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "important", ImportanceHigh, []string{"keep"})
	manager.Store(ctx, TypeShortTerm, "critical", ImportanceCritical, nil)
	manager.Store(ctx, TypeShortTerm, "routine", ImportanceMedium, nil)

	moved, err := manager.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}
	if moved != 2 {
		t.Errorf("expected 2 moved, got %d", moved)
	}

	volatileStats, _ := volatile.Stats(ctx)
	if volatileStats.TotalEntries != 1 {
		t.Errorf("expected the Medium entry left behind, got %d entries", volatileStats.TotalEntries)
	}

	// Tags and importance survive promotion.
	promoted, _ := durable.Query(ctx, Filter{Tags: []string{"keep"}})
	if len(promoted) != 1 {
		t.Fatalf("expected promoted tagged entry, got %d", len(promoted))
	}
	if promoted[0].Metadata.Importance != ImportanceHigh {
		t.Errorf("expected importance preserved, got %v", promoted[0].Metadata.Importance)
	}
	if promoted[0].Type != TypeLongTerm {
		t.Errorf("expected promoted entry re-typed long-term, got %s", promoted[0].Type)
	}
}

// failingStore wraps a store and fails writes on demand.
type failingStore struct {
	*InMemoryStore
	failWrites bool
}

func (f *failingStore) Store(ctx context.Context, t Type, content any, importance Importance, tags []string) (*Entry, error) {
	if f.failWrites {
		return nil, errors.New("disk full")
	}
	return f.InMemoryStore.Store(ctx, t, content, importance, tags)
}

func TestConsolidationPartialFailureKeepsEntries(t *testing.T) {
	volatile := NewInMemoryStore()
	durable := &failingStore{InMemoryStore: NewInMemoryStore(), failWrites: true}
	manager := NewManager(volatile, durable, WithLogger(quietLogger()))
	defer manager.Close()
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "must not be lost", ImportanceCritical, nil)

	moved, err := manager.Consolidate(ctx)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}
	if moved != 0 {
		t.Errorf("expected 0 moved on durable write failure, got %d", moved)
	}
	volatileStats, _ := volatile.Stats(ctx)
	if volatileStats.TotalEntries != 1 {
		t.Fatalf("entry must remain in volatile tier after failed promotion")
	}

	// A later pass succeeds and moves it.
	durable.failWrites = false
	moved, _ = manager.Consolidate(ctx)
	if moved != 1 {
		t.Errorf("expected 1 moved on retry pass, got %d", moved)
	}
}

func TestManagerQueryFanOut(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "volatile note", ImportanceMedium, nil)
	manager.Store(ctx, TypeLongTerm, "durable note", ImportanceMedium, nil)

	// Unspecified type queries both tiers.
	all, err := manager.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 combined results, got %d", len(all))
	}

	// Typed queries hit only the routed tier.
	longOnly, _ := manager.Query(ctx, Filter{Type: TypeLongTerm})
	if len(longOnly) != 1 || longOnly[0].Type != TypeLongTerm {
		t.Errorf("expected only the durable entry, got %v", longOnly)
	}
}

func TestManagerQueryLimitAcrossCombinedSet(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		manager.Store(ctx, TypeShortTerm, i, ImportanceMedium, nil)
		manager.Store(ctx, TypeLongTerm, i, ImportanceMedium, nil)
	}

	results, err := manager.Query(ctx, Filter{Limit: 4})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("limit must apply across the combined set, got %d", len(results))
	}
}

func TestManagerPruneScenario(t *testing.T) {
	manager, volatile, _ := newTestManager(t)
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "low", ImportanceLow, nil)
	manager.Store(ctx, TypeShortTerm, "medium", ImportanceMedium, nil)
	manager.Store(ctx, TypeShortTerm, "high", ImportanceHigh, nil)

	// No age bound: everything below Medium goes, everything at or above
	// Medium stays, regardless of age.
	count, err := manager.Prune(ctx, 0, ImportanceMedium)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 pruned, got %d", count)
	}
	stats, _ := volatile.Stats(ctx)
	if stats.TotalEntries != 2 {
		t.Errorf("expected 2 survivors, got %d", stats.TotalEntries)
	}
}

func TestManagerCombinedStats(t *testing.T) {
	manager, volatile, durable := newTestManager(t)
	ctx := context.Background()

	short, _ := manager.Store(ctx, TypeShortTerm, "a", ImportanceLow, nil)
	manager.Store(ctx, TypeLongTerm, "b", ImportanceHigh, nil)

	volatile.Retrieve(ctx, short.ID)
	volatile.Retrieve(ctx, short.ID)

	stats, err := manager.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEntries != 2 {
		t.Errorf("expected 2 total entries, got %d", stats.TotalEntries)
	}
	if stats.ByImportance[ImportanceLow] != 1 || stats.ByImportance[ImportanceHigh] != 1 {
		t.Errorf("unexpected importance counts: %v", stats.ByImportance)
	}
	// 2 accesses over 2 entries.
	if stats.AverageAccessCount != 1.0 {
		t.Errorf("expected weighted average 1.0, got %v", stats.AverageAccessCount)
	}
	_ = durable
}

func TestManagerAutoPrune(t *testing.T) {
	volatile := NewInMemoryStore()
	durable := NewInMemoryStore()
	manager := NewManager(volatile, durable,
		WithLogger(quietLogger()),
		WithAutoPrune(10*time.Millisecond, time.Nanosecond),
	)
	defer manager.Close()
	ctx := context.Background()

	manager.Store(ctx, TypeShortTerm, "ephemeral", ImportanceLow, nil)

	deadline := time.After(2 * time.Second)
	for {
		stats, _ := volatile.Stats(ctx)
		if stats.TotalEntries == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected auto-prune to remove the low-importance entry")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerStoppedIsTerminal(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	if err := manager.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// Close is idempotent.
	if err := manager.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if _, err := manager.Store(ctx, TypeShortTerm, "late", ImportanceMedium, nil); !errors.Is(err, ErrManagerStopped) {
		t.Errorf("expected ErrManagerStopped, got %v", err)
	}
	if _, err := manager.Query(ctx, Filter{}); !errors.Is(err, ErrManagerStopped) {
		t.Errorf("expected ErrManagerStopped, got %v", err)
	}
	if _, err := manager.Consolidate(ctx); !errors.Is(err, ErrManagerStopped) {
		t.Errorf("expected ErrManagerStopped, got %v", err)
	}
}
