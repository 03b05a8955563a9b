package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a provider that was constructed without credentials.
var ErrUnavailable = errors.New("ai provider unavailable")

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

type IImageProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string, negativePrompt string) ([]byte, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type IImageGenerator interface {
	Generate(ctx context.Context, prompt string, negativePrompt string) ([]byte, error)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text)
}

func (e *embedder) ModelName() string {
	return e.provider.Name() + "/" + e.model
}

type imageGenerator struct {
	provider IImageProvider
	model    string
}

func NewImageGenerator(p IImageProvider, model string) IImageGenerator {
	return &imageGenerator{provider: p, model: model}
}

func (g *imageGenerator) Generate(ctx context.Context, prompt string, negativePrompt string) ([]byte, error) {
	return g.provider.Generate(ctx, g.model, prompt, negativePrompt)
}

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

type ImageProviderFactory func(args interface{}) (IImageProvider, error)

var (
	embedRegistry = map[string]EmbedProviderFactory{}
	imageRegistry = map[string]ImageProviderFactory{}
)

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterImage(name string, factory ImageProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	imageRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding provider name is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func NewImageProvider(name string, args interface{}) (IImageProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("image provider name is required")
	}
	factory := imageRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported image provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode provider config: %w", err)
	}
	return nil
}
