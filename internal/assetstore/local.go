package assetstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

// contentDirName is the directory under the base dir holding the binaries.
// The index document lives next to it, not inside it.
const contentDirName = "image_cache"

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	baseDir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{baseDir: config.Dir}, nil
}

func (s *localStore) Save(ctx context.Context, id string, data []byte) (string, error) {
	_ = ctx
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: asset id is required", appErr.ErrInvalid)
	}
	if err := os.MkdirAll(filepath.Join(s.baseDir, contentDirName), 0o755); err != nil {
		return "", fmt.Errorf("%w: create content dir: %v", appErr.ErrStorage, err)
	}
	rel := path.Join(contentDirName, "img_"+id+".png")
	if err := os.WriteFile(s.abs(rel), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write asset: %v", appErr.ErrStorage, err)
	}
	return rel, nil
}

func (s *localStore) Open(ctx context.Context, relPath string) ([]byte, error) {
	_ = ctx
	if err := validateRelPath(relPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.abs(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", appErr.ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("%w: read asset: %v", appErr.ErrStorage, err)
	}
	return data, nil
}

func (s *localStore) Stat(ctx context.Context, relPath string) (bool, error) {
	_ = ctx
	if err := validateRelPath(relPath); err != nil {
		return false, err
	}
	info, err := os.Stat(s.abs(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat asset: %v", appErr.ErrStorage, err)
	}
	return !info.IsDir(), nil
}

func (s *localStore) Stats(ctx context.Context) (StoreStats, error) {
	_ = ctx
	var stats StoreStats
	entries, err := os.ReadDir(filepath.Join(s.baseDir, contentDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("%w: scan content dir: %v", appErr.ErrStorage, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

func (s *localStore) abs(relPath string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(relPath))
}

// Index entries carry slash-separated paths relative to the base dir.
// Anything absolute or escaping the base dir is rejected.
func validateRelPath(relPath string) error {
	if relPath == "" {
		return fmt.Errorf("%w: asset path is required", appErr.ErrInvalid)
	}
	clean := path.Clean(relPath)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: invalid asset path: %s", appErr.ErrInvalid, relPath)
	}
	return nil
}
