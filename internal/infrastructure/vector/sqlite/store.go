package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

const databaseFile = "vectors.db"

// Store persists collections in a single SQLite database inside a storage
// directory. Writes are serialized; searches are brute-force cosine scans.
type Store struct {
	db *sql.DB

	writeMu sync.Mutex
}

func Open(ctx context.Context, dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "open vector store", errors.New("storage directory is not set"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	path := filepath.Join(dir, databaseFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
	collection TEXT NOT NULL,
	seq INTEGER NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (collection, seq)
);
`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

// Replace drops any existing collection with the same name and writes entries
// in one transaction, so a failed rebuild leaves the previous state intact.
func (s *Store) Replace(ctx context.Context, collection string, dimension int, entries []domain.VectorEntry) error {
	if strings.TrimSpace(collection) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "replace collection", errors.New("collection name is empty"))
	}
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "replace collection", fmt.Errorf("invalid dimension %d", dimension))
	}
	for i, entry := range entries {
		if len(entry.Vector) != dimension {
			return domain.WrapError(
				domain.ErrDimensionMismatch,
				"replace collection",
				fmt.Errorf("entry %d has dimension %d, collection expects %d", i, len(entry.Vector), dimension),
			)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)`,
		collection, dimension, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (collection, seq, title, link, text, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare passage insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		meta := entry.Passage.Metadata
		if meta.Title == "" {
			meta.Title = domain.DefaultTitle
		}
		if _, err := stmt.ExecContext(ctx, collection, i, meta.Title, meta.Link, entry.Passage.Text, encodeVector(entry.Vector)); err != nil {
			return fmt.Errorf("insert passage %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, collection string) (ports.Collection, error) {
	var dimension int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&dimension)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCollectionNotFound, "open collection", fmt.Errorf("collection %q", collection))
		}
		return nil, fmt.Errorf("query collection: %w", err)
	}
	return &Collection{db: s.db, name: collection, dimension: dimension}, nil
}

// Collection is a read-only handle on one persisted collection.
type Collection struct {
	db        *sql.DB
	name      string
	dimension int
}

func (c *Collection) Name() string   { return c.name }
func (c *Collection) Dimension() int { return c.dimension }

func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages WHERE collection = ?`, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Search returns the limit entries most cosine-similar to queryVector. Equal
// scores keep insertion order.
func (c *Collection) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredEntry, error) {
	if len(queryVector) != c.dimension {
		return nil, domain.WrapError(
			domain.ErrDimensionMismatch,
			"search collection",
			fmt.Errorf("query has dimension %d, collection %q expects %d", len(queryVector), c.name, c.dimension),
		)
	}
	if limit <= 0 {
		return []domain.ScoredEntry{}, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT title, link, text, embedding FROM passages WHERE collection = ? ORDER BY seq`,
		c.name,
	)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	out := []domain.ScoredEntry{}
	for rows.Next() {
		var (
			entry domain.ScoredEntry
			blob  []byte
		)
		if err := rows.Scan(&entry.Passage.Metadata.Title, &entry.Passage.Metadata.Link, &entry.Passage.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		entry.Vector = vec
		entry.Score = domain.CosineSimilarity(queryVector, vec)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
