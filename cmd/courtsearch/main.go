package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/analytics"
	aggstore "github.com/elchin-rustamov/courtsearch/internal/analytics/aggregator"
	"github.com/elchin-rustamov/courtsearch/internal/dialogue"
	"github.com/elchin-rustamov/courtsearch/internal/embedding"
	"github.com/elchin-rustamov/courtsearch/internal/indexer"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	ingesthandler "github.com/elchin-rustamov/courtsearch/internal/ingestion/handler"
	"github.com/elchin-rustamov/courtsearch/internal/searcher"
	"github.com/elchin-rustamov/courtsearch/internal/searcher/cache"
	searchhandler "github.com/elchin-rustamov/courtsearch/internal/searcher/handler"
	"github.com/elchin-rustamov/courtsearch/internal/store"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	"github.com/elchin-rustamov/courtsearch/pkg/health"
	"github.com/elchin-rustamov/courtsearch/pkg/kafka"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
	"github.com/elchin-rustamov/courtsearch/pkg/metrics"
	"github.com/elchin-rustamov/courtsearch/pkg/middleware"
	"github.com/elchin-rustamov/courtsearch/pkg/postgres"
	pkgredis "github.com/elchin-rustamov/courtsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting court search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	embedder := buildEmbedder(cfg.Embedding)
	vectorIndex := index.NewVectorIndex()
	facetCache := facets.NewCache()

	// Postgres, Redis and Kafka are all optional: the service degrades to a
	// purely in-memory, single-node mode when a dependency is missing.
	var docStore indexer.DocumentStore
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, documents will not survive restarts", "error", err)
	} else {
		defer pgClient.Close()
		docStore = store.NewDocuments(pgClient)
		slog.Info("document store enabled", "host", cfg.Postgres.Host)
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var collector *analytics.Collector
	var aggregator *analytics.Aggregator
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()

		aggregator = analytics.NewAggregator(nil)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents, analytics.HandleEvent(aggregator))
		aggregator.AttachConsumer(consumer)
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("usage analytics enabled", "topic", cfg.Kafka.Topics.UsageEvents)
	} else {
		slog.Warn("kafka brokers not configured, usage analytics disabled")
	}

	var tracker indexer.EventTracker
	if collector != nil {
		tracker = collector
	}
	pipeline := indexer.NewPipeline(cfg.Indexer, embedder, vectorIndex, facetCache, docStore, tracker, m)
	engine := searcher.NewEngine(cfg.Search, embedder, vectorIndex, m)

	// Rebuild the in-memory index from the durable copy in the background;
	// the service answers with a growing index meanwhile.
	if docStore != nil {
		go func() {
			count, err := pipeline.Reindex(ctx)
			if err != nil {
				slog.Error("startup index rebuild failed", "error", err)
				return
			}
			slog.Info("startup index rebuild complete", "documents", count)
		}()
	}

	var dialogueTracker dialogue.EventTracker
	if collector != nil {
		dialogueTracker = collector
	}
	controller := dialogue.NewController(cfg.Dialogue, facetCache, dialogueTracker, m)

	var searchTracker searchhandler.EventTracker
	if collector != nil {
		searchTracker = collector
	}
	searchH := searchhandler.New(engine, queryCache, facetCache, searchTracker, m)
	var invalidator ingesthandler.CacheInvalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	ingestH := ingesthandler.New(pipeline, vectorIndex, invalidator)
	chatH := dialogue.NewHandler(controller, engine, queryCache)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d chunks", vectorIndex.DocCount(), vectorIndex.ChunkCount()),
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", ingestH.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", ingestH.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", ingestH.Delete)
	mux.HandleFunc("POST /api/v1/reindex", ingestH.Reindex)
	mux.HandleFunc("GET /api/v1/stats", ingestH.Stats)
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/facets", searchH.Facets)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("POST /api/v1/chat", chatH.Chat)
	if aggregator != nil {
		var history analytics.HistoryProvider
		if pgClient != nil {
			snapshots := aggstore.NewStore(pgClient)
			snapshots.StartPeriodicSave(ctx, aggregator, 5*time.Minute)
			if last, err := snapshots.LatestSnapshot(ctx); err != nil {
				slog.Warn("failed to load previous analytics snapshot", "error", err)
			} else if last != nil {
				slog.Info("previous analytics snapshot found",
					"total_searches", last.TotalSearches,
					"total_docs_ingested", last.TotalDocsIngested,
				)
			}
			history = snapshots
		}
		analyticsH := analytics.NewHandler(aggregator, history)
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("court search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("court search service stopped")
}

// buildEmbedder picks the configured provider, falling back to the local
// deterministic embedder when no API credentials are present.
func buildEmbedder(cfg config.EmbeddingConfig) embedding.Embedder {
	if cfg.BaseURL != "" && cfg.APIKey != "" {
		slog.Info("embedding provider configured", "base_url", cfg.BaseURL, "model", cfg.Model)
		return embedding.NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimension, cfg.Timeout)
	}
	slog.Warn("no embedding provider configured, using local hashed embeddings")
	return embedding.NewLocal(cfg.Dimension)
}
