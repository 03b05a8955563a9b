package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/weirwood/scry/internal/ai"
	"github.com/weirwood/scry/internal/assetstore"
	"github.com/weirwood/scry/internal/cacheindex"
	"github.com/weirwood/scry/internal/config"
	"github.com/weirwood/scry/internal/embedcache"
	"github.com/weirwood/scry/internal/handler"
	"github.com/weirwood/scry/internal/imagecache"
	"github.com/weirwood/scry/internal/metrics"
	"github.com/weirwood/scry/internal/middleware"
	"github.com/weirwood/scry/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "scry",
		Short: "semantic image cache for scene art",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the scry server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "print cache index and asset store counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			resolver, _, err := buildResolver(cfg, nil)
			if err != nil {
				return err
			}
			status, err := resolver.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("entries: %d\nasset files: %d\nasset bytes: %d\n",
				status.Entries, status.AssetFiles, status.AssetBytes)
			return nil
		},
	}

	var description string
	var styleNotes string
	var outPath string
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "resolve a single scene description against the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if description == "" {
				return fmt.Errorf("--description is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			resolver, _, err := buildResolver(cfg, nil)
			if err != nil {
				return err
			}
			result, err := resolver.Resolve(cmd.Context(), description, styleNotes)
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Println(result.ImageURL)
				return nil
			}
			data, err := assetstore.DecodeDataURI(result.ImageURL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Printf("wrote %s (cached=%v)\n", outPath, result.Cached)
			return nil
		},
	}
	resolveCmd.Flags().StringVar(&description, "description", "", "scene description")
	resolveCmd.Flags().StringVar(&styleNotes, "style", "", "optional style notes")
	resolveCmd.Flags().StringVar(&outPath, "out", "", "write the image to this path instead of printing a data uri")

	rootCmd.AddCommand(runCmd, statusCmd, resolveCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	// Provider keys may come from a .env file; missing files are fine.
	_ = godotenv.Load()
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(path)
}

func buildResolver(cfg *config.Config, cacheMetrics *metrics.CacheMetrics) (*imagecache.Resolver, *ai.Manager, error) {
	log := logutil.GetLogger(context.Background())

	embedders := make([]ai.EmbedderEntry, 0, len(cfg.Embedding.Providers))
	for _, pc := range cfg.Embedding.Providers {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("init embedding provider %s: %w", pc.Provider, err)
		}
		embedders = append(embedders, ai.EmbedderEntry{Name: pc.Provider, Embedder: ai.NewEmbedder(provider, pc.Model)})
	}
	embedder := ai.NewGroupEmbedder(embedders)
	if embedder == nil {
		log.Warn("no embedding provider configured, every request will render uncached")
	} else if cfg.Cache.EmbedLRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Cache.EmbedLRUSize,
			time.Duration(cfg.Cache.EmbedLRUTTLMinutes)*time.Minute)
	}

	generators := make([]ai.GeneratorEntry, 0, len(cfg.Image.Providers))
	for _, pc := range cfg.Image.Providers {
		provider, err := ai.NewImageProvider(pc.Provider, pc.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("init image provider %s: %w", pc.Provider, err)
		}
		generators = append(generators, ai.GeneratorEntry{Name: pc.Provider, Generator: ai.NewImageGenerator(provider, pc.Model)})
	}
	generator := ai.NewGroupGenerator(generators)
	if generator == nil {
		log.Warn("no image provider configured, generation requests will fail")
	}

	manager := ai.NewManager(embedder, generator, ai.ManagerConfig{
		EmbedTimeout:   cfg.Embedding.TimeoutSeconds,
		ImageTimeout:   cfg.Image.TimeoutSeconds,
		StyleSuffix:    cfg.Image.StyleSuffix,
		NegativePrompt: cfg.Image.NegativePrompt,
		MaxInputChars:  cfg.Image.MaxInputChars,
	})

	store, err := assetstore.New(cfg.Cache.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("init asset store: %w", err)
	}
	index := cacheindex.New(filepath.Join(cfg.Cache.BaseDir, "cache_metadata.json"))
	resolver := imagecache.NewResolver(index, store, manager, cacheMetrics, cfg.Cache.SimilarityThreshold)
	return resolver, manager, nil
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("base_dir", cfg.Cache.BaseDir),
		zap.Float32("similarity_threshold", cfg.Cache.SimilarityThreshold),
	)

	cacheMetrics := metrics.NewCacheMetrics()
	resolver, manager, err := buildResolver(cfg, cacheMetrics)
	if err != nil {
		return err
	}
	images := handler.NewImageHandler(service.NewImageService(resolver, manager))

	deps := handler.RouterDeps{
		Images:    images,
		Metrics:   cacheMetrics.Handler(),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
