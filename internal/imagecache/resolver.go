// Package imagecache decides, per scene request, whether to reuse a
// previously generated image or pay for a new one. Reuse is semantic: the
// request text is embedded and compared against every cached entry, so
// differently-worded descriptions of the same scene still share one image.
package imagecache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/weirwood/scry/internal/ai"
	"github.com/weirwood/scry/internal/assetstore"
	"github.com/weirwood/scry/internal/cacheindex"
	"github.com/weirwood/scry/internal/metrics"
	"github.com/weirwood/scry/internal/pkg/vecmath"
)

// DefaultSimilarityThreshold is the cosine score at or above which a cached
// image is considered the same scene. Tuned against short scene blurbs;
// raise it if visually distinct scenes start sharing images.
const DefaultSimilarityThreshold = 0.85

type Result struct {
	ImageURL string
	Cached   bool
}

type Status struct {
	Entries    int
	AssetFiles int
	AssetBytes int64
}

type Resolver struct {
	index     *cacheindex.Index
	store     assetstore.Store
	ai        *ai.Manager
	metrics   *metrics.CacheMetrics
	threshold float32
}

func NewResolver(index *cacheindex.Index, store assetstore.Store, manager *ai.Manager, m *metrics.CacheMetrics, threshold float32) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{
		index:     index,
		store:     store,
		ai:        manager,
		metrics:   m,
		threshold: threshold,
	}
}

// Resolve returns an image for the scene description, reusing a cached one
// when a semantically close entry exists and its file is still on disk.
//
// The index is re-read on every call and appended to without cross-process
// coordination: two concurrent misses may both generate, and one of the two
// appends can be lost. That costs a duplicate generation, never a corrupt
// index, and is accepted to keep resolves lock-free across provider calls.
//
// Nothing evicts entries. The index grows with every distinct scene; the
// only pruning is the removal of entries whose asset file has gone missing.
func (r *Resolver) Resolve(ctx context.Context, description string, styleHints string) (*Result, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveResolveSeconds(time.Since(start).Seconds())
	}()

	queryText := buildQueryText(description, styleHints)
	logger := logutil.GetLogger(ctx).With(zap.String("query", preview(queryText)))

	queryEmbedding, err := r.ai.Embed(ctx, queryText)
	if err != nil {
		// No embedding means no cache lookup and nothing to index; the
		// request still deserves an image.
		logger.Warn("embedding failed, generating without cache", zap.Error(err))
		r.metrics.IncEmbedFallback()
		data, genErr := r.ai.GenerateImage(ctx, description, styleHints)
		if genErr != nil {
			r.metrics.IncGenerationFailure()
			return nil, fmt.Errorf("generate image: %w", genErr)
		}
		return &Result{ImageURL: assetstore.EncodeDataURI(data), Cached: false}, nil
	}

	entries := r.index.Load(ctx)
	best, bestScore := r.search(ctx, queryEmbedding, entries)
	logger.Debug("cache scan finished",
		zap.Int("entries", len(entries)),
		zap.Float32("best_score", bestScore),
		zap.Float32("threshold", r.threshold),
	)

	if best != nil && bestScore >= r.threshold {
		exists, statErr := r.store.Stat(ctx, best.ImagePath)
		switch {
		case statErr != nil:
			logger.Warn("asset verification failed, generating new image", zap.String("path", best.ImagePath), zap.Error(statErr))
		case exists:
			data, openErr := r.store.Open(ctx, best.ImagePath)
			if openErr == nil {
				r.metrics.IncHit()
				logger.Info("cache hit",
					zap.Float32("score", bestScore),
					zap.String("path", best.ImagePath),
					zap.String("matched", preview(best.Text)),
				)
				return &Result{ImageURL: assetstore.EncodeDataURI(data), Cached: true}, nil
			}
			logger.Warn("cached asset unreadable, generating new image", zap.String("path", best.ImagePath), zap.Error(openErr))
		default:
			// The index promised a file the store no longer has. Drop the
			// entry now so later lookups stop matching it, then treat this
			// request as a plain miss.
			r.metrics.IncDriftRepair()
			logger.Warn("cached asset missing, pruning entry",
				zap.String("id", best.ID),
				zap.String("path", best.ImagePath),
			)
			entries = cacheindex.Remove(entries, best.ID)
			if saveErr := r.index.Save(ctx, entries); saveErr != nil {
				logger.Warn("failed to persist pruned index", zap.Error(saveErr))
			}
		}
	}

	r.metrics.IncMiss()
	logger.Info("cache miss, generating image", zap.Float32("best_score", bestScore))

	data, err := r.ai.GenerateImage(ctx, description, styleHints)
	if err != nil {
		r.metrics.IncGenerationFailure()
		return nil, fmt.Errorf("generate image: %w", err)
	}

	id := uuid.NewString()
	relPath, err := r.store.Save(ctx, id, data)
	if err != nil {
		return nil, err
	}
	entries = append(entries, cacheindex.Entry{
		ID:        id,
		Text:      queryText,
		Embedding: queryEmbedding,
		ImagePath: relPath,
		Timestamp: time.Now(),
	})
	if err := r.index.Save(ctx, entries); err != nil {
		// The image is generated and stored; losing the index entry only
		// costs a future cache hit.
		logger.Warn("failed to persist cache index", zap.Error(err))
	} else {
		logger.Info("new image cached", zap.String("id", id), zap.String("path", relPath), zap.Int("entries", len(entries)))
	}
	return &Result{ImageURL: assetstore.EncodeDataURI(data), Cached: false}, nil
}

// search scans every entry and keeps the first maximum. Entries whose
// embeddings cannot be compared (stale model dimensions, missing vector)
// are skipped rather than failing the scan.
func (r *Resolver) search(ctx context.Context, query []float32, entries []cacheindex.Entry) (*cacheindex.Entry, float32) {
	bestIdx := -1
	var bestScore float32
	for i := range entries {
		if len(entries[i].Embedding) == 0 {
			logutil.GetLogger(ctx).Warn("cache entry has no embedding", zap.String("id", entries[i].ID))
			continue
		}
		score, err := vecmath.CosineSimilarity(query, entries[i].Embedding)
		if err != nil {
			logutil.GetLogger(ctx).Warn("cache entry not comparable", zap.String("id", entries[i].ID), zap.Error(err))
			continue
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	if bestIdx == -1 {
		return nil, 0
	}
	return &entries[bestIdx], bestScore
}

// Status reports the index size against what is actually on disk. Read-only.
func (r *Resolver) Status(ctx context.Context) (*Status, error) {
	entries := r.index.Load(ctx)
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Entries:    len(entries),
		AssetFiles: stats.Files,
		AssetBytes: stats.Bytes,
	}, nil
}

func buildQueryText(description string, styleHints string) string {
	if styleHints == "" {
		return description
	}
	return description + " " + styleHints
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
