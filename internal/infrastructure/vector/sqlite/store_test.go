package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

func entry(text string, vec ...float32) domain.VectorEntry {
	return domain.VectorEntry{
		Passage: domain.NewPassage(domain.Document{Title: "T-" + text, Link: "https://wiki/" + text}, text),
		Vector:  vec,
	}
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	err := store.Replace(ctx, "wiki", 2, []domain.VectorEntry{
		entry("east", 1, 0),
		entry("north", 0, 1),
		entry("north-east", 1, 1),
		entry("east-again", 2, 0),
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	collection, err := store.Open(ctx, "wiki")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if collection.Dimension() != 2 || collection.Name() != "wiki" {
		t.Fatalf("unexpected collection: %s/%d", collection.Name(), collection.Dimension())
	}
	if n, _ := collection.Count(ctx); n != 4 {
		t.Fatalf("expected 4 passages, got %d", n)
	}

	got, err := collection.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].Passage.Text != "east" || got[1].Passage.Text != "east-again" || got[2].Passage.Text != "north-east" {
		t.Fatalf("unexpected order: %q %q %q", got[0].Passage.Text, got[1].Passage.Text, got[2].Passage.Text)
	}
	if got[0].Passage.Metadata.Title != "T-east" || got[0].Passage.Metadata.Link != "https://wiki/east" {
		t.Fatalf("metadata not persisted: %+v", got[0].Passage.Metadata)
	}
	if len(got[0].Vector) != 2 || got[0].Vector[0] != 1 {
		t.Fatalf("vector not round-tripped: %v", got[0].Vector)
	}
}

func TestReplaceOverwritesAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := openStore(t, dir)

	if err := store.Replace(ctx, "wiki", 2, []domain.VectorEntry{entry("old", 1, 0), entry("old2", 0, 1)}); err != nil {
		t.Fatalf("first Replace() error = %v", err)
	}
	if err := store.Replace(ctx, "wiki", 3, []domain.VectorEntry{entry("new", 1, 0, 0)}); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}
	_ = store.Close()

	reopened := openStore(t, dir)
	collection, err := reopened.Open(ctx, "wiki")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if collection.Dimension() != 3 {
		t.Fatalf("expected dimension 3, got %d", collection.Dimension())
	}
	if n, _ := collection.Count(ctx); n != 1 {
		t.Fatalf("expected 1 passage after overwrite, got %d", n)
	}
}

func TestReplaceRejectsWrongDimension(t *testing.T) {
	store := openStore(t, t.TempDir())
	err := store.Replace(context.Background(), "wiki", 3, []domain.VectorEntry{entry("bad", 1, 0)})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOpenMissingCollection(t *testing.T) {
	store := openStore(t, t.TempDir())
	if _, err := store.Open(context.Background(), "missing"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	if err := store.Replace(ctx, "empty", 2, nil); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	collection, _ := store.Open(ctx, "empty")
	got, err := collection.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("Search() = %v, %v", got, err)
	}
	if _, err := collection.Search(ctx, []float32{1}, 5); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOpenRequiresDirectory(t *testing.T) {
	if _, err := Open(context.Background(), " "); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSearchHugeLimitReturnsEveryRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	if err := store.Replace(ctx, "wiki", 2, []domain.VectorEntry{entry("east", 1, 0), entry("north", 0, 1)}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	collection, err := store.Open(ctx, "wiki")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := collection.Search(ctx, []float32{1, 0}, 1<<50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].Passage.Text != "east" {
		t.Fatalf("unexpected results: %+v", got)
	}
}
