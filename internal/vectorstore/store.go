// Package vectorstore persists embedding vectors in SQLite and answers
// similarity queries over them.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/griptape/internal/driver"
	"github.com/aristath/griptape/internal/tokenizer"
)

// Option configures a Store.
type Option func(*Store)

// WithTokenizer makes text embedding chunk inputs that exceed the
// tokenizer's budget.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(s *Store) { s.tokenizer = tok }
}

// Store is a SQLite-backed vector store.
type Store struct {
	db        *sql.DB
	embedder  driver.EmbeddingDriver
	tokenizer tokenizer.Tokenizer
}

// NewSQLiteStore opens (or creates) a store at dbPath. Parent directories
// are created as needed.
func NewSQLiteStore(ctx context.Context, dbPath string, emb driver.EmbeddingDriver, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr, emb, opts)
}

// NewMemoryStore creates a private in-memory store.
func NewMemoryStore(ctx context.Context, emb driver.EmbeddingDriver, opts ...Option) (*Store, error) {
	// Each store gets its own named database; the shared cache lets the
	// pool's connections see the same data.
	connStr := fmt.Sprintf("file:vs-%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr, emb, opts)
}

func open(ctx context.Context, connStr string, emb driver.EmbeddingDriver, opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db, embedder: emb}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL DEFAULT '',
		vector TEXT NOT NULL,
		meta TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_vectors_namespace ON vectors(namespace);
	`)
	return err
}

// EmbeddingDriver returns the driver used to embed text.
func (s *Store) EmbeddingDriver() driver.EmbeddingDriver { return s.embedder }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
