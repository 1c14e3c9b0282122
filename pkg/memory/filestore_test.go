package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()

	stored, err := store.Store(ctx, TypeSemantic, map[string]any{"fact": "water boils at 100C"}, ImportanceHigh, []string{"physics"})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err := store.Retrieve(ctx, stored.ID)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if got.Type != TypeSemantic {
		t.Errorf("expected semantic, got %s", got.Type)
	}
	content := got.Content.(map[string]any)
	if content["fact"] != "water boils at 100C" {
		t.Errorf("unexpected content: %v", got.Content)
	}
	if got.Metadata.AccessCount != 1 {
		t.Errorf("expected access count 1 after retrieve, got %d", got.Metadata.AccessCount)
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	entry, _ := store.Store(ctx, TypeLongTerm, "remember this", ImportanceMedium, nil)

	if _, err := os.Stat(filepath.Join(dir, "index.json")); err != nil {
		t.Errorf("expected shared index file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1.json")); err != nil {
		t.Errorf("expected per-entry file: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "index.json"))
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("index is not valid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 index record, got %d", len(records))
	}
	if _, hasContent := records[0]["content"]; hasContent {
		t.Error("index must hold metadata only, not content")
	}
	_ = entry
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, _ := NewFileStore(dir)
	first, _ := store.Store(ctx, TypeLongTerm, "persisted", ImportanceMedium, []string{"keep"})

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.Retrieve(ctx, first.ID)
	if err != nil {
		t.Fatalf("retrieve after reopen failed: %v", err)
	}
	if got.Content != "persisted" {
		t.Errorf("unexpected content: %v", got.Content)
	}

	// IDs keep climbing from where the index left off.
	second, _ := reopened.Store(ctx, TypeLongTerm, "more", ImportanceMedium, nil)
	if second.ID <= first.ID {
		t.Errorf("expected monotonic id after reopen, got %d", second.ID)
	}
}

func TestFileStoreCorruptIndexIsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("corrupt index must not be fatal: %v", err)
	}
	stats, _ := store.Stats(context.Background())
	if stats.TotalEntries != 0 {
		t.Errorf("expected empty store, got %d entries", stats.TotalEntries)
	}
}

func TestFileStoreQuery(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	store.Store(ctx, TypeLongTerm, "the capital of France is Paris", ImportanceHigh, []string{"geo"})
	store.Store(ctx, TypeSemantic, "gravity pulls things down", ImportanceMedium, []string{"physics"})

	results, err := store.Query(ctx, Filter{SearchText: "Paris"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	if results[0].Metadata.AccessCount != 1 {
		t.Errorf("expected query access bump, got %d", results[0].Metadata.AccessCount)
	}

	// The bump survives a reopen.
	reopened, _ := NewFileStore(dir)
	got, _ := reopened.Retrieve(ctx, results[0].ID)
	if got.Metadata.AccessCount != 2 {
		t.Errorf("expected persisted access count 2, got %d", got.Metadata.AccessCount)
	}
}

func TestFileStoreDeleteClearPrune(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	low, _ := store.Store(ctx, TypeLongTerm, "low", ImportanceLow, nil)
	store.Store(ctx, TypeLongTerm, "high", ImportanceHigh, nil)
	store.Store(ctx, TypeSemantic, "fact", ImportanceCritical, nil)

	pruned, err := store.Prune(ctx, 0, ImportanceMedium)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", pruned)
	}
	if _, err := os.Stat(filepath.Join(dir, "1.json")); !os.IsNotExist(err) {
		t.Error("expected pruned entry file removed")
	}
	_ = low

	cleared, _ := store.Clear(ctx, TypeSemantic)
	if cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalEntries != 1 {
		t.Errorf("expected 1 survivor, got %d", stats.TotalEntries)
	}
}
