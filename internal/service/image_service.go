package service

import (
	"context"
	"strings"

	"github.com/weirwood/scry/internal/ai"
	"github.com/weirwood/scry/internal/imagecache"
	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

var ErrImageUnavailable = ai.ErrUnavailable

// ImageService fronts the semantic image cache for the transport layer.
// It owns input hygiene; cache semantics live in the resolver.
type ImageService struct {
	resolver *imagecache.Resolver
	manager  *ai.Manager
}

func NewImageService(resolver *imagecache.Resolver, manager *ai.Manager) *ImageService {
	return &ImageService{
		resolver: resolver,
		manager:  manager,
	}
}

func (s *ImageService) ResolveImage(ctx context.Context, description string, styleHints string) (*imagecache.Result, error) {
	desc, err := s.cleanInput(description)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, desc, strings.TrimSpace(styleHints))
}

func (s *ImageService) CacheStatus(ctx context.Context) (*imagecache.Status, error) {
	return s.resolver.Status(ctx)
}

func (s *ImageService) cleanInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", appErr.ErrInvalid
	}
	max := s.manager.MaxInputChars()
	if max > 0 && len(trimmed) > max {
		return "", appErr.ErrInvalid
	}
	return trimmed, nil
}
