package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore keeps every published snapshot as a generation row plus its
// vectors. Publishing inserts a new generation and prunes older ones in the
// same transaction, so Load observes either the old or the new set.
type EmbeddingStore struct {
	pool *Pool

	mu     sync.Mutex
	cached *database.EmbeddingSnapshot
}

var _ database.EmbeddingStoreWriter = (*EmbeddingStore)(nil)

// NewEmbeddingStore creates a new PostgreSQL embedding store.
func NewEmbeddingStore(pool *Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// Load returns the latest published snapshot, nil if none. Vectors are only
// re-read when the head generation changed since the previous call.
func (s *EmbeddingStore) Load(ctx context.Context) (*database.EmbeddingSnapshot, error) {
	var (
		head    database.EmbeddingSnapshot
		builtAt time.Time
	)
	err := s.pool.db.QueryRowContext(ctx,
		"SELECT generation, model, dim, built_at FROM embedding_generations ORDER BY generation DESC LIMIT 1").
		Scan(&head.Generation, &head.Model, &head.Dim, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding generation: %w", err)
	}
	head.BuiltAt = builtAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached.Generation == head.Generation {
		return s.cached, nil
	}

	rows, err := s.pool.db.QueryContext(ctx,
		"SELECT name, embedding FROM reference_embeddings WHERE generation = $1", head.Generation)
	if err != nil {
		return nil, fmt.Errorf("query reference embeddings: %w", err)
	}
	defer rows.Close()

	head.Vectors = make(map[string][]float32)
	for rows.Next() {
		var (
			name string
			vec  pgvector.Vector
		)
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scan reference embedding: %w", err)
		}
		head.Vectors[name] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference embeddings: %w", err)
	}

	s.cached = &head
	return s.cached, nil
}

// Publish stores snap as a new generation and removes older generations.
func (s *EmbeddingStore) Publish(ctx context.Context, snap *database.EmbeddingSnapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	builtAt := snap.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var generation int64
	if err := tx.QueryRowContext(ctx,
		"INSERT INTO embedding_generations (model, dim, built_at) VALUES ($1, $2, $3) RETURNING generation",
		snap.Model, snap.Dim, builtAt).Scan(&generation); err != nil {
		return fmt.Errorf("insert embedding generation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO reference_embeddings (generation, name, embedding) VALUES ($1, $2, $3)")
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for name, vec := range snap.Vectors {
		if len(vec) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, generation, name, pgvector.NewVector(vec)); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embedding_generations WHERE generation < $1", generation); err != nil {
		return fmt.Errorf("prune embedding generations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embedding snapshot: %w", err)
	}

	snap.Generation = generation
	snap.BuiltAt = builtAt
	return nil
}
