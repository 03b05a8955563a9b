// Package cacheindex persists the semantic cache metadata: one JSON document
// holding every entry's query text, embedding and asset path. The document is
// the source of truth for what the cache believes it has; whether the asset
// bytes are really on disk is the asset store's call.
package cacheindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	ImagePath string    `json:"image_path"`
	Timestamp time.Time `json:"timestamp"`
}

type Index struct {
	path string
}

func New(path string) *Index {
	return &Index{path: path}
}

func (i *Index) Path() string {
	return i.path
}

// Load reads the whole document. An absent file is an empty cache; an
// unreadable or malformed one degrades to an empty cache with a warning,
// because a broken index must never take image generation down with it.
func (i *Index) Load(ctx context.Context) []Entry {
	data, err := os.ReadFile(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logutil.GetLogger(ctx).Warn("failed to read cache index, starting empty", zap.String("path", i.path), zap.Error(err))
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logutil.GetLogger(ctx).Warn("cache index is malformed, starting empty", zap.String("path", i.path), zap.Error(err))
		return nil
	}
	return entries
}

// Save writes the whole document atomically: marshal to a temp file in the
// same directory, then rename over the target. Readers see either the old
// or the new document, never a torn one.
func (i *Index) Save(ctx context.Context, entries []Entry) error {
	_ = ctx
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode cache index: %v", appErr.ErrPersistence, err)
	}
	dir := filepath.Dir(i.path)
	tmp, err := os.CreateTemp(dir, ".cache_metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp index: %v", appErr.ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp index: %v", appErr.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp index: %v", appErr.ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, i.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replace cache index: %v", appErr.ErrPersistence, err)
	}
	return nil
}

// Remove filters out the entry with the given id. Pure; persisting the
// result is the caller's decision.
func Remove(entries []Entry, id string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID == id {
			continue
		}
		out = append(out, e)
	}
	return out
}
