package assetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/weirwood/scry/internal/config"
)

// Store keeps the generated image binaries. The index document records what
// should exist; the store is the authority on what does exist, so reads and
// existence checks are never skipped in favor of trusting the index.
type Store interface {
	// Save writes the image bytes for a cache entry id and returns the
	// relative path to record in the index. Saving the same id twice
	// overwrites the same file.
	Save(ctx context.Context, id string, data []byte) (string, error)
	// Open returns the stored bytes for a relative path recorded in the
	// index. A missing file yields errors.ErrNotFound.
	Open(ctx context.Context, relPath string) ([]byte, error)
	// Stat reports whether the file behind a relative path exists.
	Stat(ctx context.Context, relPath string) (bool, error)
	// Stats walks the content directory and totals the stored assets.
	Stats(ctx context.Context) (StoreStats, error)
}

type StoreStats struct {
	Files int
	Bytes int64
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.AssetStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("asset_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported asset store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
