package vectorstore

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/griptape/internal/artifact"
	"github.com/aristath/griptape/internal/driver"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("vectorstore: entry not found")

const (
	defaultQueryCount = 5
	embedConcurrency  = 4

	metaArtifactKey = "artifact"
)

// Entry is one stored vector.
type Entry struct {
	ID        string
	Vector    []float64
	Score     float64
	Namespace string
	Meta      map[string]any
}

// Artifact returns the text artifact stored alongside the vector, if any.
func (e Entry) Artifact() (*artifact.TextArtifact, bool) {
	v, ok := e.Meta[metaArtifactKey].(string)
	if !ok {
		return nil, false
	}
	a := artifact.NewText(v)
	a.Embedding = e.Vector
	return a, true
}

// UpsertOptions controls how a vector is stored.
type UpsertOptions struct {
	// ID overrides the default id, the sha256 of the encoded vector.
	ID        string
	Namespace string
	Meta      map[string]any
}

// QueryOptions controls a similarity query.
type QueryOptions struct {
	// Count limits the number of results. Zero means 5.
	Count int
	// Namespace restricts the search. Empty searches every namespace.
	Namespace      string
	IncludeVectors bool
}

// UpsertVector stores vec and returns its id.
func (s *Store) UpsertVector(ctx context.Context, vec []float64, opts UpsertOptions) (string, error) {
	encodedVec, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("failed to encode vector: %w", err)
	}

	id := opts.ID
	if id == "" {
		sum := sha256.Sum256(encodedVec)
		id = hex.EncodeToString(sum[:])
	}

	var encodedMeta []byte
	if opts.Meta != nil {
		if encodedMeta, err = json.Marshal(opts.Meta); err != nil {
			return "", fmt.Errorf("failed to encode meta: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (id, namespace, vector, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			namespace = excluded.namespace,
			vector = excluded.vector,
			meta = excluded.meta,
			updated_at = CURRENT_TIMESTAMP
	`, id, opts.Namespace, string(encodedVec), nullableString(encodedMeta))
	if err != nil {
		return "", fmt.Errorf("failed to upsert vector %s: %w", id, err)
	}
	return id, nil
}

// UpsertText embeds text and stores the vector.
func (s *Store) UpsertText(ctx context.Context, text string, opts UpsertOptions) (string, error) {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return "", err
	}
	return s.UpsertVector(ctx, vec, opts)
}

// UpsertTextArtifact stores a and keeps its text in the entry metadata so it
// can be read back with LoadArtifacts. An existing embedding on a is reused.
func (s *Store) UpsertTextArtifact(ctx context.Context, a *artifact.TextArtifact, opts UpsertOptions) (string, error) {
	if a.Embedding == nil {
		vec, err := s.embed(ctx, a.Value)
		if err != nil {
			return "", err
		}
		a.Embedding = vec
	}
	return s.UpsertVector(ctx, a.Embedding, withArtifactMeta(opts, a))
}

// UpsertTextArtifacts embeds the artifacts concurrently and stores them in a
// single transaction. Ids are returned in input order.
func (s *Store) UpsertTextArtifacts(ctx context.Context, arts []*artifact.TextArtifact, namespace string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, a := range arts {
		if a.Embedding != nil {
			continue
		}
		g.Go(func() error {
			vec, err := s.embed(gctx, a.Value)
			if err != nil {
				return err
			}
			a.Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(arts))
	for _, a := range arts {
		opts := withArtifactMeta(UpsertOptions{Namespace: namespace}, a)
		encodedVec, _ := json.Marshal(a.Embedding)
		encodedMeta, _ := json.Marshal(opts.Meta)
		sum := sha256.Sum256(encodedVec)
		id := hex.EncodeToString(sum[:])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (id, namespace, vector, meta, created_at, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				namespace = excluded.namespace,
				vector = excluded.vector,
				meta = excluded.meta,
				updated_at = CURRENT_TIMESTAMP
		`, id, namespace, string(encodedVec), string(encodedMeta))
		if err != nil {
			return nil, fmt.Errorf("failed to upsert vector %s: %w", id, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

// LoadEntry returns the entry with the given id.
func (s *Store) LoadEntry(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, namespace, vector, meta FROM vectors WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// LoadEntries returns every entry in namespace, or all entries when
// namespace is empty, ordered by id.
func (s *Store) LoadEntries(ctx context.Context, namespace string) ([]*Entry, error) {
	query := `SELECT id, namespace, vector, meta FROM vectors`
	var args []any
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vectors: %w", err)
	}
	return entries, nil
}

// LoadArtifacts returns the text artifacts stored in namespace.
func (s *Store) LoadArtifacts(ctx context.Context, namespace string) ([]*artifact.TextArtifact, error) {
	entries, err := s.LoadEntries(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var arts []*artifact.TextArtifact
	for _, e := range entries {
		if a, ok := e.Artifact(); ok {
			arts = append(arts, a)
		}
	}
	return arts, nil
}

// Query embeds query and returns the most similar entries by cosine
// similarity, best first.
func (s *Store) Query(ctx context.Context, query string, opts QueryOptions) ([]*Entry, error) {
	qvec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	entries, err := s.LoadEntries(ctx, opts.Namespace)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		e.Score = cosineSimilarity(qvec, e.Vector)
	}
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	count := opts.Count
	if count <= 0 {
		count = defaultQueryCount
	}
	if len(entries) > count {
		entries = entries[:count]
	}

	if !opts.IncludeVectors {
		for _, e := range entries {
			e.Vector = nil
		}
	}
	return entries, nil
}

// DeleteVector removes the entry with the given id.
func (s *Store) DeleteVector(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vector %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete vector %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float64, error) {
	if s.embedder == nil {
		return nil, errors.New("vectorstore: no embedding driver configured")
	}
	vec, err := driver.EmbedString(ctx, s.embedder, s.tokenizer, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return vec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e        Entry
		vecJSON  string
		metaJSON sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.Namespace, &vecJSON, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan vector: %w", err)
	}
	if err := json.Unmarshal([]byte(vecJSON), &e.Vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector %s: %w", e.ID, err)
	}
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &e.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func withArtifactMeta(opts UpsertOptions, a *artifact.TextArtifact) UpsertOptions {
	meta := make(map[string]any, len(opts.Meta)+1)
	for k, v := range opts.Meta {
		meta[k] = v
	}
	meta[metaArtifactKey] = a.Value
	opts.Meta = meta
	return opts
}

func nullableString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// cosineSimilarity returns 0 when either vector is zero or the dimensions
// differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
