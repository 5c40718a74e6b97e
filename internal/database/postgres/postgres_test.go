//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg, logging.NewNop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestEmbeddingStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewEmbeddingStore(pool)

	t.Run("LoadEmpty", func(t *testing.T) {
		snap, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if snap != nil {
			t.Errorf("expected nil snapshot, got %+v", snap)
		}
	})

	t.Run("PublishAndLoad", func(t *testing.T) {
		first := &database.EmbeddingSnapshot{
			Model:   "facenet",
			Dim:     3,
			Vectors: map[string][]float32{"Alice": {1, 0, 0}, "Bob": {0, 1, 0}},
		}
		if err := store.Publish(ctx, first); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Generation != first.Generation || got.Len() != 2 || got.Model != "facenet" {
			t.Errorf("loaded %+v", got)
		}
		if v := got.Vectors["Bob"]; len(v) != 3 || v[1] != 1 {
			t.Errorf("Bob vector = %v", v)
		}

		second := &database.EmbeddingSnapshot{Dim: 3, Vectors: map[string][]float32{"Carol": {0, 0, 1}}}
		if err := store.Publish(ctx, second); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if second.Generation <= first.Generation {
			t.Errorf("generation did not advance: %d -> %d", first.Generation, second.Generation)
		}

		got, err = NewEmbeddingStore(pool).Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Len() != 1 || got.Vectors["Carol"] == nil {
			t.Errorf("second snapshot = %+v", got)
		}

		var leftover int
		if err := pool.DB().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reference_embeddings WHERE generation = $1", first.Generation).Scan(&leftover); err != nil {
			t.Fatal(err)
		}
		if leftover != 0 {
			t.Errorf("old generation not pruned: %d rows", leftover)
		}
	})

	t.Run("MigrateIdempotent", func(t *testing.T) {
		if err := pool.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		versions, err := pool.MigrationsApplied(ctx)
		if err != nil || len(versions) != 1 {
			t.Errorf("MigrationsApplied = %v, %v", versions, err)
		}
	})
}
