// Package embeddings rebuilds the reference embedding snapshot from the
// photos of open cases.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/embedder"
	"github.com/kozaktomas/sightmatch/internal/facematch"
	"github.com/kozaktomas/sightmatch/internal/logging"
)

// ProgressFunc is called after each photo with the number processed so far.
type ProgressFunc func(done, total int)

// Result summarises a rebuild.
type Result struct {
	Generation int64
	Identities int
	Photos     int
	Skipped    int // photos without a detectable face
	Failed     int // photos the embedding service could not process
	Duration   time.Duration
}

// Builder computes one mean face embedding per identity and publishes them
// as a new snapshot.
type Builder struct {
	photos   database.PhotoReader
	embedder embedder.FaceEmbedder
	store    database.EmbeddingStoreWriter
	model    string
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	pending bool
}

// NewBuilder creates a builder. model is recorded on published snapshots.
func NewBuilder(photos database.PhotoReader, emb embedder.FaceEmbedder, store database.EmbeddingStoreWriter, model string, logger *slog.Logger) (*Builder, error) {
	if photos == nil || emb == nil || store == nil {
		return nil, errors.New("photo reader, embedder and store are required")
	}
	return &Builder{
		photos:   photos,
		embedder: emb,
		store:    store,
		model:    model,
		logger:   logging.NewComponentLogger(logger, "embeddings"),
	}, nil
}

// Rebuild embeds every open-case photo and publishes the per-identity means.
// Photos without a face are skipped. If every photo failed in the embedding
// service nothing is published, so an outage cannot wipe the store.
func (b *Builder) Rebuild(ctx context.Context, progress ProgressFunc) (*Result, error) {
	start := time.Now()

	total, err := b.photos.CountOpenCasePhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("count photos: %w", err)
	}

	res := &Result{}
	perIdentity := make(map[string][][]float32)
	var lastErr error

	err = b.photos.OpenCasePhotos(ctx, func(p database.CasePhoto) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Photos++
		defer func() {
			if progress != nil {
				progress(res.Photos, total)
			}
		}()

		vec, err := b.embedder.FaceEmbedding(ctx, p.Data)
		switch {
		case errors.Is(err, embedder.ErrNoFace):
			res.Skipped++
			b.logger.Debug("no face in reference photo", logging.FieldIdentity, p.Name, "file", p.Filename)
			return nil
		case err != nil:
			res.Failed++
			lastErr = err
			b.logger.Warn("embedding reference photo failed", logging.FieldIdentity, p.Name, "file", p.Filename, "error", err)
			return nil
		}
		perIdentity[p.Name] = append(perIdentity[p.Name], vec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read photos: %w", err)
	}
	if res.Failed > 0 && res.Failed == res.Photos {
		return nil, fmt.Errorf("embedding service failed for all %d photos: %w", res.Failed, lastErr)
	}

	snap := &database.EmbeddingSnapshot{
		Model:   b.model,
		Vectors: make(map[string][]float32, len(perIdentity)),
	}
	for name, vecs := range perIdentity {
		mean := facematch.MeanVector(vecs)
		if len(mean) == 0 {
			continue
		}
		snap.Vectors[name] = mean
		snap.Dim = len(mean)
	}

	if err := b.store.Publish(ctx, snap); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	res.Generation = snap.Generation
	res.Identities = snap.Len()
	res.Duration = time.Since(start)
	b.logger.Info("embedding snapshot published",
		"generation", res.Generation,
		"identities", res.Identities,
		"photos", res.Photos,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration", res.Duration)
	return res, nil
}

// Schedule starts a rebuild in the background. Calls made while a rebuild is
// running are coalesced into one follow-up rebuild.
func (b *Builder) Schedule(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.pending = true
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go func() {
		for {
			if _, err := b.Rebuild(ctx, nil); err != nil {
				b.logger.Error("background rebuild failed", "error", err)
			}

			b.mu.Lock()
			if !b.pending || ctx.Err() != nil {
				b.running = false
				b.pending = false
				b.mu.Unlock()
				return
			}
			b.pending = false
			b.mu.Unlock()
		}
	}()
}

// Wait blocks until no background rebuild is running or ctx is done.
func (b *Builder) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		b.mu.Lock()
		running := b.running
		b.mu.Unlock()
		if !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
