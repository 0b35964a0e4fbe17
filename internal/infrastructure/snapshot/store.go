package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

// Store keeps the raw crawled corpus as a JSON array of {title, content, link}.
type Store struct {
	storage ports.ObjectStorage
	key     string
}

func New(storage ports.ObjectStorage, key string) *Store {
	if key == "" {
		key = "corpus.json"
	}
	return &Store{storage: storage, key: key}
}

func (s *Store) Save(ctx context.Context, docs []domain.Document) error {
	if docs == nil {
		docs = []domain.Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, &buf); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]domain.Document, error) {
	r, err := s.storage.Open(ctx, s.key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrSnapshotNotFound, "load snapshot", err)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer r.Close()

	var docs []domain.Document
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return docs, nil
}
