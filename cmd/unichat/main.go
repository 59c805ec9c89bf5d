package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/chunk"
	"github.com/unichat-ai/unichat/internal/config"
	"github.com/unichat-ai/unichat/internal/db"
	"github.com/unichat-ai/unichat/internal/embedcache"
	"github.com/unichat-ai/unichat/internal/handler"
	"github.com/unichat-ai/unichat/internal/job"
	"github.com/unichat-ai/unichat/internal/middleware"
	"github.com/unichat-ai/unichat/internal/repo"
	"github.com/unichat-ai/unichat/internal/schedule"
	"github.com/unichat-ai/unichat/internal/service"
	"github.com/unichat-ai/unichat/internal/sourcestore"
	"github.com/unichat-ai/unichat/internal/vectorindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "unichat",
		Short: "unichat rag backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run unichat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
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

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildChat(cfg config.AIConfig) (ai.IChat, error) {
	entries := make([]ai.ChatEntry, 0, len(cfg.Chat))
	for _, item := range cfg.Chat {
		provider, err := ai.NewChatProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init chat provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.ChatEntry{
			Name: item.Provider + "/" + item.Model,
			Chat: ai.NewChat(provider, item.Model),
		})
	}
	return ai.NewGroupChat(entries), nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Embedding))
	for _, item := range cfg.Embedding {
		provider, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name: item.Provider + "/" + item.Model,
			Embedder: ai.NewEmbedder(provider, item.Model, cfg.Dimension,
				ai.WithBatchSize(cfg.EmbedBatchSize),
				ai.WithRateLimit(cfg.EmbedRPS, cfg.EmbedBurst),
			),
		})
	}
	return ai.NewGroupEmbedder(entries), nil
}

func buildIndex(ctx context.Context, cfg config.IndexConfig, dims int, records *repo.VectorRecordRepo) (vectorindex.Index, error) {
	switch cfg.Backend {
	case "qdrant":
		index, err := vectorindex.NewQdrantIndex(cfg.Addr, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("init qdrant index: %w", err)
		}
		if err := index.EnsureCollection(ctx, dims); err != nil {
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		return index, nil
	default:
		return vectorindex.NewNaiveIndex(records), nil
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	ctx := context.Background()
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("index_backend", cfg.Index.Backend),
	)

	docRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	vectorRepo := repo.NewVectorRecordRepo(database)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)

	chat, err := buildChat(cfg.AI)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return err
	}
	if cfg.Cache.EmbedDBEnabled {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Cache.EmbedLRUSize,
		time.Duration(cfg.Cache.EmbedLRUTTLMin)*time.Minute)
	manager := ai.NewManager(chat, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.TimeoutSeconds,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	index, err := buildIndex(ctx, cfg.Index, cfg.AI.Dimension, vectorRepo)
	if err != nil {
		return err
	}

	var source sourcestore.Store
	if cfg.SourceStore.Type != "" {
		source, err = sourcestore.New(cfg.SourceStore)
		if err != nil {
			return fmt.Errorf("init source store: %w", err)
		}
	}

	routerService := service.NewRouterService()
	retrieverService := service.NewRetrieverService(index, manager, chunkRepo, docRepo)
	generatorService := service.NewGeneratorService(manager)
	answerService := service.NewAnswerService(routerService, retrieverService, generatorService,
		cfg.Cache.AnswerSize, time.Duration(cfg.Cache.AnswerTTLMin)*time.Minute)
	ingestService := service.NewIngestService(docRepo, chunkRepo, index, manager, source)
	vectorService := service.NewVectorService(index)
	statsService := service.NewStatsService(docRepo, chunkRepo, cacheRepo, index, routerService)

	defaultChunk := chunk.Config{
		Size:     cfg.Chunking.Size,
		Overlap:  cfg.Chunking.Overlap,
		Strategy: chunk.Strategy(cfg.Chunking.Strategy),
	}
	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(ingestService, docRepo, chunkRepo, defaultChunk),
		Answers: handler.NewAnswerHandler(answerService, routerService, handler.AnswerDefaults{
			TopK:           cfg.Retrieval.TopK,
			ScoreThreshold: cfg.Retrieval.ScoreThreshold,
			TokenBudget:    cfg.Generation.TokenBudget,
		}),
		Vectors: handler.NewVectorHandler(vectorService),
		Stats:   handler.NewStatsHandler(statsService, manager),
	}
	if cfg.Generation.RateLimitSec > 0 {
		deps.AnswerLimit = middleware.RateLimit(time.Duration(cfg.Generation.RateLimitSec) * time.Second)
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Cache.EmbedDBRetainDays), cfg.Schedule.CacheCleanupCron); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewVectorAuditJob(vectorRepo, index), cfg.Schedule.VectorAuditCron); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(runCtx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
