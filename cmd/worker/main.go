// File: cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/domain/ports/repository"
	"photo-enhance-pipeline/internal/infra/adapters/provider"
	"photo-enhance-pipeline/internal/infra/blob"
	"photo-enhance-pipeline/internal/infra/db/memory"
	pg "photo-enhance-pipeline/internal/infra/db/postgres"
	"photo-enhance-pipeline/internal/infra/fetch"
	"photo-enhance-pipeline/internal/infra/logging"
	"photo-enhance-pipeline/internal/infra/metrics"
	"photo-enhance-pipeline/internal/infra/notify"
	"photo-enhance-pipeline/internal/infra/ops"
	"photo-enhance-pipeline/internal/infra/queue"
	"photo-enhance-pipeline/internal/infra/sched"
	"photo-enhance-pipeline/internal/infra/worker"
	"photo-enhance-pipeline/internal/usecase"
)

// Overridden at build time via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, relaxed defaults)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Store ----
	var repo repository.JobRepository
	var expired repository.ExpiredDeleter
	var dbPing ops.Pinger
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if err := pg.RunMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		store := pg.NewJobStore(pool)
		repo, expired, dbPing = store, store, pool
		go func() {
			t := time.NewTicker(30 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					st := pool.Stat()
					metrics.SetDBPoolConns(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
				}
			}
		}()
	case "memory":
		store := memory.NewStore()
		repo, expired = store, store
		logger.Warn().Msg("using in-memory store, jobs will not survive a restart")
	}

	// ---- Queue ----
	q, err := queue.NewRedisQueue(ctx, queue.RedisOptions{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Queue:    cfg.Redis.Queue,
	}, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer q.Close()

	// ---- Providers ----
	fetcher := fetch.NewHTTPFetcher(0, cfg.Blob.MaxFetchBytes)
	registry, err := provider.NewRegistry(ctx, cfg.Providers, fetcher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("providers")
	}
	analysis, err := registry.Analysis()
	if err != nil {
		logger.Fatal().Err(err).Msg("analysis provider")
	}
	editing, err := registry.Editing()
	if err != nil {
		logger.Fatal().Err(err).Msg("editing provider")
	}

	// ---- Blob storage ----
	var store adapter.BlobStore
	switch cfg.Blob.Backend {
	case "s3":
		store, err = blob.NewS3Store(ctx, blob.S3Config{
			Region:       cfg.Blob.Region,
			Endpoint:     cfg.Blob.Endpoint,
			PathStyle:    cfg.Blob.PathStyle,
			MaxDimension: cfg.Blob.MaxDimension,
			PresignTTL:   cfg.Blob.PresignTTL,
		}, *logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("s3")
		}
	case "local":
		store = blob.NewLocalStore(cfg.Blob.LocalDir, cfg.Blob.MaxDimension)
	}

	// ---- Notifications ----
	var sink adapter.NotificationSink
	switch cfg.Notify.Kind {
	case "webhook":
		sink, err = notify.NewWebhookSink(cfg.Notify.URL, cfg.Notify.Token, cfg.Notify.Timeout, *logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook sink")
		}
	case "noop":
		sink = notify.NewNoopSink()
	default:
		sink = notify.NewLogSink(*logger)
	}

	// ---- Services ----
	jobs := usecase.NewJobService(repo, logger)
	orch := usecase.NewOrchestrator(
		jobs, analysis, editing, store, blob.NewKeys(), fetcher, sink,
		cfg.Blob.TempBucket, cfg.Blob.FinalBucket, logger,
	)

	// ---- Workers ----
	pool := worker.NewPool(cfg.Worker.Workers, *logger)
	pool.Start(ctx)
	consumer := worker.NewConsumer(q, jobs, orch, pool, cfg.Worker.PollTimeout, *logger)
	go consumer.Run(ctx)

	// ---- Retention sweeper ----
	sweeper := sched.NewExpirySweeper(cfg.Jobs.SweepInterval, expired, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Ops server ----
	opsSrv := ops.NewServer(cfg.Ops.Port, dbPing, q, registry, logger)
	go func() {
		if err := opsSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("ops server shutdown")
	}
	pool.Stop()
	logger.Info().Msg("worker stopped")
}
