package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/api"
	"github.com/lukajuskovic/sitebot/internal/config"
	"github.com/lukajuskovic/sitebot/internal/crawler"
	"github.com/lukajuskovic/sitebot/internal/embedding"
	"github.com/lukajuskovic/sitebot/internal/extract"
	"github.com/lukajuskovic/sitebot/internal/fetch"
	"github.com/lukajuskovic/sitebot/internal/llm"
	"github.com/lukajuskovic/sitebot/internal/repository"
	"github.com/lukajuskovic/sitebot/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	siteRepo := repository.NewSiteRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize model providers
	embedder := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})
	generator := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	// Initialize the crawling pipeline
	fetcher := fetch.NewFetcher(cfg.Crawler.FetchTimeout, cfg.Crawler.UserAgent)
	renderer := fetch.NewHTTPRenderer(fetcher)
	extractor := extract.NewExtractor(logger)

	siteCrawler := crawler.New(
		fetcher,
		renderer,
		extractor,
		embedder,
		siteRepo,
		chunkRepo,
		crawler.Config{
			MaxPages:    cfg.Crawler.MaxPages,
			Delay:       cfg.Crawler.Delay,
			PageTimeout: cfg.Crawler.PageTimeout,
			Dimension:   cfg.Embedding.Dimension,
		},
		logger,
	)

	pool := crawler.NewPool(siteCrawler, cfg.Crawler.Workers, cfg.Crawler.QueueSize, logger)
	crawlCtx, cancelCrawls := context.WithCancel(context.Background())
	pool.Start(crawlCtx)

	// Initialize services
	siteService := service.NewSiteService(siteRepo, pool, logger)
	retriever := service.NewRetriever(embedder, generator, chunkRepo, cfg.Retrieval.TopK, logger)
	chatService := service.NewChatService(siteRepo, sessionRepo, retriever, generator, logger)

	// Setup router
	router := api.SetupRouter(siteService, chatService, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting sitebot server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Stop accepting crawl jobs and wait for running crawls
	cancelCrawls()
	pool.Stop()

	logger.Info("Server exited")
}
