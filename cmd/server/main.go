package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"dtro/internal/dtro/filtering"
	"dtro/internal/dtro/handler"
	"dtro/internal/dtro/service"
	"dtro/internal/dtro/store"
	"dtro/internal/events"
	"dtro/internal/platform/config"
	"dtro/internal/platform/httpserver"
	"dtro/internal/platform/logger"
	"dtro/internal/platform/metrics"
	platformredis "dtro/internal/platform/redis"
	"dtro/internal/platform/token"
	"dtro/internal/spatial"
	"dtro/internal/validation"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(os.Getenv("DTRO_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projection := spatial.NewProjection()

	storage, cleanup, err := buildStorage(ctx, cfg, projection, log)
	if err != nil {
		log.Error("storage setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	schemas, err := validation.NewSchemaValidator(cfg.SchemaDir)
	if err != nil {
		log.Error("schema validator setup failed", "error", err)
		os.Exit(1)
	}

	var ruleSource validation.RuleSource = validation.StaticRuleSource{}
	if cfg.RulesDir != "" {
		ruleSource, err = validation.NewFileRuleSource(cfg.RulesDir)
		if err != nil {
			log.Error("rule source setup failed", "error", err)
			os.Exit(1)
		}
	}
	logic, err := validation.NewLogicValidator(ruleSource)
	if err != nil {
		log.Error("logic validator setup failed", "error", err)
		os.Exit(1)
	}

	filteringService, err := filtering.New(cfg.SearchServiceURL, projection)
	if err != nil {
		log.Error("filtering setup failed", "error", err)
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	serviceOpts := []service.Option{service.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		publisher, err := events.NewPublisher(producer, log)
		if err != nil {
			log.Error("change publisher setup failed", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			if err := publisher.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		serviceOpts = append(serviceOpts, service.WithPublisher(publisher))
	}

	svc, err := service.New(storage, schemas, logic, validation.NewSemanticValidator(),
		filteringService, projection, serviceOpts...)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	tokens := token.NewService(cfg.JWTSigningKey, "dtro-service", "dtro-api")

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(svc, log, m, cfg.Features, tokens).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting dtro service", "addr", cfg.Addr,
		"read", cfg.Features.DtroRead, "write", cfg.Features.DtroWrite)

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}

// buildStorage composes the configured backends: Postgres (optionally behind
// the Redis cache) or in-memory, always paired with the file archive.
func buildStorage(ctx context.Context, cfg config.Config, projection *spatial.Projection, log *slog.Logger) (store.Storage, func(), error) {
	var backends []store.Storage
	var closers []func()
	cleanup := func() {
		for _, closer := range closers {
			closer()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return nil, cleanup, err
		}

		postgres, err := store.NewPostgres(db, projection)
		if err != nil {
			return nil, cleanup, err
		}
		if err := postgres.EnsureSchema(ctx); err != nil {
			return nil, cleanup, err
		}

		var backend store.Storage = postgres
		redisClient, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, running without the record cache", "error", err)
		} else if redisClient != nil {
			closers = append(closers, func() { _ = redisClient.Close() })
			backend, err = store.NewCached(postgres, redisClient.Client, log,
				store.WithCacheTTL(cfg.Redis.CacheTTL))
			if err != nil {
				return nil, cleanup, err
			}
		}
		backends = append(backends, backend)
		log.Info("using postgres storage", "cached", len(closers) > 1)
	} else {
		memory, err := store.NewMemory(projection)
		if err != nil {
			return nil, cleanup, err
		}
		backends = append(backends, memory)
		log.Info("using in-memory storage")
	}

	fileStore, err := store.NewFile(cfg.StorageDir)
	if err != nil {
		return nil, cleanup, err
	}
	backends = append(backends, fileStore)

	var opts []store.MultiOption
	if cfg.WriteToFileOnly {
		opts = append(opts, store.WithFileOnlyWrites())
	}
	multi, err := store.NewMulti(backends, opts...)
	if err != nil {
		return nil, cleanup, err
	}
	return multi, cleanup, nil
}
