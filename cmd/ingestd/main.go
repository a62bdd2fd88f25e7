// Command ingestd is the ingestion daemon. It consumes document ingest
// and delete events from Kafka, maintains the in-memory bit-sliced index,
// rotates ingestion groups, invalidates the query cache, and records
// membership in the Postgres catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/praveenmunagapati/BitFunnel/internal/catalog"
	"github.com/praveenmunagapati/BitFunnel/internal/feed"
	"github.com/praveenmunagapati/BitFunnel/internal/ingest"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	"github.com/praveenmunagapati/BitFunnel/pkg/health"
	"github.com/praveenmunagapati/BitFunnel/pkg/kafka"
	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
	"github.com/praveenmunagapati/BitFunnel/pkg/metrics"
	"github.com/praveenmunagapati/BitFunnel/pkg/postgres"
	pkgredis "github.com/praveenmunagapati/BitFunnel/pkg/redis"
	"github.com/praveenmunagapati/BitFunnel/pkg/resilience"
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
	slog.Info("starting ingestion daemon",
		"shards", cfg.Index.ShardCount,
		"shard_capacity", cfg.Index.ShardCapacity,
		"max_gram_size", cfg.Index.MaxGramSize,
	)

	m := metrics.New()

	ingestor, err := ingest.New(cfg.Index)
	if err != nil {
		slog.Error("failed to build index", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cat *catalog.Catalog
	var pg *postgres.Client
	if cfg.Ingest.CatalogEnabled {
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var cerr error
			pg, cerr = postgres.New(cfg.Postgres)
			return cerr
		})
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		cat = catalog.New(pg)
		slog.Info("document catalog enabled", "host", cfg.Postgres.Host)
	}

	var cache *pkgredis.Client
	if cfg.Ingest.InvalidateEnabled {
		cache, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, cache invalidation disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			slog.Info("cache invalidation enabled", "addr", cfg.Redis.Addr)
		}
	}

	pipeline := feed.NewPipeline(ingestor, m, cache, cat, cfg.Index.MaxGramSize)
	rotator := feed.NewGroupRotator(ingestor, pipeline, cat, m,
		cfg.Ingest.GroupRotation, cfg.Ingest.GroupRetention)
	pipeline.SetGroupProvider(rotator.Current)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents", ingestor.GetDocumentCount()),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if cache == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := cache.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pg == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var shutdownAdmin func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownAdmin = metrics.StartServer(cfg.Metrics.Port, checker)
	}

	ingestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, pipeline.IngestHandler())
	deleteConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentDelete, pipeline.DeleteHandler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestConsumer.Run(gctx) })
	g.Go(func() error { return deleteConsumer.Run(gctx) })
	g.Go(func() error { return rotator.Run(gctx) })
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		lastEpoch := ingestor.TokenManager().Current()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				m.PendingReclamations.Set(float64(ingestor.Recycler().PendingCount()))
				epoch := ingestor.TokenManager().Current()
				if epoch > lastEpoch {
					m.EpochAdvancesTotal.Add(float64(epoch - lastEpoch))
					lastEpoch = epoch
				}
			}
		}
	})

	slog.Info("ingestion daemon ready",
		"ingest_topic", cfg.Kafka.Topics.DocumentIngest,
		"delete_topic", cfg.Kafka.Topics.DocumentDelete,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := g.Wait(); err != nil {
		slog.Error("daemon error", "error", err)
	}

	if cfg.Ingest.StatisticsDir != "" {
		fm, err := ingest.NewLocalFileManager(cfg.Ingest.StatisticsDir)
		if err != nil {
			slog.Error("statistics directory unavailable", "error", err)
		} else if err := ingestor.WriteStatistics(fm, nil); err != nil {
			slog.Error("writing statistics failed", "error", err)
		} else {
			slog.Info("statistics written", "dir", cfg.Ingest.StatisticsDir)
		}
	}

	if shutdownAdmin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownAdmin(shutdownCtx); err != nil {
			slog.Error("admin server shutdown error", "error", err)
		}
	}

	ingestor.Shutdown()
	slog.Info("ingestion daemon stopped")
}
