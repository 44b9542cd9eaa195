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

	"github.com/leafmind/studypal/internal/ai"
	"github.com/leafmind/studypal/internal/config"
	"github.com/leafmind/studypal/internal/db"
	"github.com/leafmind/studypal/internal/embedcache"
	"github.com/leafmind/studypal/internal/handler"
	"github.com/leafmind/studypal/internal/job"
	"github.com/leafmind/studypal/internal/middleware"
	"github.com/leafmind/studypal/internal/repo"
	"github.com/leafmind/studypal/internal/schedule"
	"github.com/leafmind/studypal/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studypal",
		Short: "studypal backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run studypal server",
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

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildDispatcher(cfg config.AIConfig) (*ai.Dispatcher, error) {
	dispatcher := ai.NewDispatcher()
	for prefix, providerCfg := range cfg.Providers {
		provider, err := ai.NewProvider(providerCfg.Kind, providerCfg.Args)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", prefix, err)
		}
		dispatcher.Add(prefix, provider)
	}
	return dispatcher, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_model", cfg.AI.EmbeddingModel),
	)

	chatRepo := repo.NewChatRepo(conn)
	messageRepo := repo.NewMessageRepo(conn)
	citationRepo := repo.NewCitationRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	dispatcher, err := buildDispatcher(cfg.AI)
	if err != nil {
		return err
	}

	embedder := ai.WrapTruncation(ai.NewEmbedder(dispatcher, cfg.AI.EmbeddingModel), cfg.AI.EmbeddingDim)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLMinutes)*time.Minute)

	retrievalService := service.NewRetrievalService(embedder, chunkRepo, cfg.Answering.TopK)
	routerService := service.NewRouterService(ai.NewGenerator(dispatcher, cfg.Router.ClassifyModel), cfg.Router)
	answerService := service.NewAnswerService(
		dispatcher,
		cfg.Answering.FallbackModels,
		cfg.Answering.HistoryTurns,
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second,
	)
	chatService := service.NewChatService(
		chatRepo,
		messageRepo,
		citationRepo,
		routerService,
		retrievalService,
		answerService,
		cfg.Answering.HistoryTurns,
		cfg.Answering.TopK,
		cfg.Answering.MaxInputChars,
	)
	exportService := service.NewExportService(chatService)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.EmbedCache.DBKeepDays), cfg.EmbedCache.CleanupCronSpec); err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Chat:              handler.NewChatHandler(chatService, exportService),
		JWTSecret:         []byte(cfg.JWTSecret),
		MessageRateWindow: time.Duration(cfg.MessageRateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
