package snapshot

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/infrastructure/storage/localfs"
)

func TestSaveWritesIndentedUnescapedJSON(t *testing.T) {
	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	store := New(storage, "corpus.json")
	docs := []domain.Document{{Title: "Sleep & Rest", Content: "<b>zzz</b> ünïcode", Link: "https://wiki/Sleep"}}

	if err := store.Save(context.Background(), docs); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	r, err := storage.Open(context.Background(), "corpus.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	raw, _ := io.ReadAll(r)
	text := string(raw)
	if !strings.Contains(text, "\n    {\n        \"title\": \"Sleep & Rest\"") {
		t.Fatalf("expected 4-space indentation, got:\n%s", text)
	}
	if !strings.Contains(text, "<b>zzz</b> ünïcode") {
		t.Fatalf("expected raw html and utf-8, got:\n%s", text)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0] != docs[0] {
		t.Fatalf("unexpected documents: %+v", loaded)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	storage, _ := localfs.New(t.TempDir())
	_, err := New(storage, "").Load(context.Background())
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
