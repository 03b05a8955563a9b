package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Prompt decoration applied to every generation request. The suffix keeps
// renders inside the campaign's visual language; the negative prompt keeps
// out styles that break it.
const (
	DefaultStyleSuffix    = "Game of Thrones style, medieval fantasy, cinematic, detailed, atmospheric"
	DefaultNegativePrompt = "cartoon, anime, modern, colorful, bright, cheerful, b&w, black and white, earth, ugly, low quality"
)

type ManagerConfig struct {
	EmbedTimeout   int
	ImageTimeout   int
	StyleSuffix    string
	NegativePrompt string
	MaxInputChars  int
}

type Manager struct {
	embedder  IEmbedder
	generator IImageGenerator
	cfg       ManagerConfig
}

func NewManager(embedder IEmbedder, generator IImageGenerator, cfg ManagerConfig) *Manager {
	if cfg.StyleSuffix == "" {
		cfg.StyleSuffix = DefaultStyleSuffix
	}
	if cfg.NegativePrompt == "" {
		cfg.NegativePrompt = DefaultNegativePrompt
	}
	return &Manager{
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if m.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.EmbedTimeout)*time.Second)
		defer cancel()
	}
	return m.embedder.Embed(ctx, text)
}

// GenerateImage renders the decorated prompt and returns the raw image bytes.
func (m *Manager) GenerateImage(ctx context.Context, description string, styleHints string) ([]byte, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("image generator not configured")
	}
	if m.cfg.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.ImageTimeout)*time.Second)
		defer cancel()
	}
	prompt := m.buildPrompt(description, styleHints)
	data, err := m.generator.Generate(ctx, prompt, m.cfg.NegativePrompt)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return data, nil
}

func (m *Manager) buildPrompt(description string, styleHints string) string {
	prompt := description
	if styleHints != "" {
		prompt += ", " + styleHints
	}
	if m.cfg.StyleSuffix != "" {
		prompt += ", " + m.cfg.StyleSuffix
	}
	return strings.TrimSpace(prompt)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}
