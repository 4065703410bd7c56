package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/clearline-systems/clearline-engine/common/audit"
	"github.com/clearline-systems/clearline-engine/common/config"
	"github.com/clearline-systems/clearline-engine/common/logging"
	"github.com/clearline-systems/clearline-engine/common/messaging"
	natsclient "github.com/clearline-systems/clearline-engine/common/messaging/nats"
	"github.com/clearline-systems/clearline-engine/engine/internal/handlers"
	"github.com/clearline-systems/clearline-engine/engine/internal/idempotency"
	"github.com/clearline-systems/clearline-engine/engine/internal/pipeline"
	"github.com/clearline-systems/clearline-engine/engine/internal/ratelimit"
	"github.com/clearline-systems/clearline-engine/engine/internal/repository"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
	"github.com/clearline-systems/clearline-engine/engine/internal/server"
	"github.com/clearline-systems/clearline-engine/engine/internal/service"
	"github.com/clearline-systems/clearline-engine/engine/internal/sink"
)

func main() {
	schemaDir := flag.String("schemas", "", "override schema directory")
	migrationsPath := flag.String("migrations", "file://engine/migrations", "migrations source")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)
	logger = logger.With(logging.Service("engine"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Schemas are mandatory: without them every batch would be rejected.
	registry := schema.NewRegistry()
	dir := cfg.Engine.SchemaDir
	if *schemaDir != "" {
		dir = *schemaDir
	}
	loaded, err := schema.LoadDir(registry, dir)
	if err != nil {
		log.Fatalf("Failed to load schemas from %s: %v", dir, err)
	}
	logger.InfoContext(ctx, "schemas loaded", "dir", dir, "definitions", loaded)

	// SIGHUP publishes any new schema versions without a restart. Batches in
	// flight keep the definitions they resolved at submit time.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			n, err := schema.ReloadDir(registry, dir)
			if err != nil {
				logger.WarnContext(ctx, "schema reload failed", "dir", dir, logging.Error(err))
				continue
			}
			logger.InfoContext(ctx, "schemas reloaded", "dir", dir, "new_definitions", n)
		}
	}()

	opts := service.Options{}

	var repo repository.Repository
	if cfg.Database.Enabled {
		connString := cfg.Database.Postgres.ConnString()

		m, err := migrate.New(*migrationsPath, connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		pgRepo, err := repository.NewPostgresRepository(ctx, connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
		opts.Repository = repo

		for _, kind := range registry.Kinds() {
			for _, version := range registry.Versions(kind) {
				def, err := registry.Resolve(kind, version)
				if err != nil {
					continue
				}
				if err := pgRepo.RecordSchemaVersion(ctx, def); err != nil &&
					!errors.Is(err, repository.ErrSchemaVersionExists) {
					logger.WarnContext(ctx, "failed to record schema version",
						logging.Kind(kind), logging.SchemaVersion(version), logging.Error(err))
				}
			}
		}
	}

	if cfg.Redis.Enabled {
		guard, err := idempotency.NewGuard(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer guard.Close()
		opts.Guard = guard
	}

	var js *natsclient.JetStreamClient
	if cfg.NATS.Enabled {
		js, err = natsclient.NewJetStreamClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "clearline-engine",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer js.Close()

		for _, stream := range []natsclient.StreamConfig{
			natsclient.CleanRecordsStream,
			natsclient.QuarantineStream,
			natsclient.BatchResultsStream,
		} {
			if _, err := js.CreateOrUpdateStream(ctx, stream); err != nil {
				log.Fatalf("Failed to create stream %s: %v", stream.Name, err)
			}
		}
		opts.Publisher = service.NewJetStreamPublisher(js)
	}

	if cfg.Sinks.Parquet.Enabled {
		ps, err := sink.NewParquetSink(sink.ParquetConfig{
			EndpointURL:     cfg.Sinks.Parquet.EndpointURL,
			AccessKeyID:     cfg.Sinks.Parquet.AccessKeyID,
			SecretAccessKey: cfg.Sinks.Parquet.SecretAccessKey,
			Region:          cfg.Sinks.Parquet.Region,
			UseSSL:          cfg.Sinks.Parquet.UseSSL,
			Bucket:          cfg.Sinks.Parquet.Bucket,
			BasePrefix:      cfg.Sinks.Parquet.BasePrefix,
		})
		if err != nil {
			log.Fatalf("Failed to create parquet sink: %v", err)
		}
		opts.Sinks = append(opts.Sinks, ps)
	}

	if cfg.Sinks.OpenSearch.Enabled {
		os, err := sink.NewOpenSearchSink(sink.OpenSearchConfig{
			URL:           cfg.Sinks.OpenSearch.URL,
			Username:      cfg.Sinks.OpenSearch.Username,
			Password:      cfg.Sinks.OpenSearch.Password,
			TLSSkipVerify: cfg.Sinks.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.Sinks.OpenSearch.IndexPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to create opensearch sink: %v", err)
		}
		if err := os.Initialize(ctx); err != nil {
			log.Fatalf("Failed to initialize opensearch sink: %v", err)
		}
		opts.Sinks = append(opts.Sinks, os)
	}

	signer := audit.NewResultSigner(cfg.Engine.ResultSecret)
	p := pipeline.New(registry, cfg.Engine.Workers)
	svc := service.New(registry, p, signer, logger, opts)

	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewPerSourceLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	handler := handlers.New(svc, registry, repo, limiter, logger)
	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		TokenSecret:  cfg.Auth.TokenSecret,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, handler)

	// Batches arrive over HTTP or, when NATS is enabled, on the submit
	// subject. The queue group spreads load across engine replicas.
	if js != nil {
		_, err := js.QueueSubscribe(messaging.SubjectBatchSubmit, messaging.QueueEngine,
			func(ctx context.Context, msg *messaging.Message) error {
				svc.HandleMessage(ctx, msg)
				return nil
			})
		if err != nil {
			log.Fatalf("Failed to subscribe to %s: %v", messaging.SubjectBatchSubmit, err)
		}
		logger.InfoContext(ctx, "subscribed to batch submit subject",
			"subject", messaging.SubjectBatchSubmit, "queue", messaging.QueueEngine)
	}

	go func() {
		logger.InfoContext(ctx, "engine listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.InfoContext(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if js != nil {
		if err := js.Drain(); err != nil {
			logger.WarnContext(context.Background(), "failed to drain NATS connection", logging.Error(err))
		}
	}
	logger.InfoContext(context.Background(), "engine stopped")
}
