package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/cityhunt/internal/catalog"
	"github.com/playperu/cityhunt/internal/config"
	"github.com/playperu/cityhunt/internal/database"
	"github.com/playperu/cityhunt/internal/engine"
	"github.com/playperu/cityhunt/internal/events"
	"github.com/playperu/cityhunt/internal/generator"
	"github.com/playperu/cityhunt/internal/grader"
	"github.com/playperu/cityhunt/internal/handler/health"
	"github.com/playperu/cityhunt/internal/handler/scorefeed"
	"github.com/playperu/cityhunt/internal/leaderboard"
	"github.com/playperu/cityhunt/internal/migrations"
	"github.com/playperu/cityhunt/internal/server"
	"github.com/playperu/cityhunt/internal/store"
	"github.com/playperu/cityhunt/internal/validate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)

	st := store.NewSQLite(db)

	// --- Catalog ---
	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	logger.Info("loaded challenge catalog", "templates", cat.Len(), "path", cfg.CatalogPath)

	// --- Grader ---
	var g validate.Grader
	switch cfg.GraderMode {
	case "remote":
		g = grader.NewRemote(grader.RemoteConfig{BaseURL: cfg.GraderURL, APIKey: cfg.GraderAPIKey})
		logger.Info("using remote grader", "url", cfg.GraderURL)
	default:
		g = grader.NewMock(0.9, 0.9)
		logger.Warn("using mock grader; photo and ai-prompt answers are not really checked")
	}

	// --- Score events ---
	broker := events.NewBroker()
	publisher := events.NewMulti(logger)
	publisher.Add("broker", broker)

	checks := map[string]health.Checker{
		"sqlite": dbChecker{db},
	}

	var lb *leaderboard.Redis
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		lb = leaderboard.NewRedis(rdb)
		publisher.Add("leaderboard", lb)
		checks["redis"] = lb
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer kafka.Close()
		logger.Info("connected to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)

		publisher.Add("kafka", kafka)
		checks["kafka"] = kafka
	}

	deps := server.Deps{
		Store:       st,
		Generator:   generator.New(cat),
		Dispatcher:  engine.New(st, validate.NewSet(g, cfg.Thresholds, cfg.GraderTimeout), publisher, logger),
		Broker:      broker,
		HostKeyHash: cfg.HostKeyHash,
	}
	if lb != nil {
		deps.Leaderboard = lb
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, deps, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
		r.Mount("/ws", scorefeed.NewHandler(logger, broker).Routes())
	})

	// --- Run ---
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	eg.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return eg.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
