package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-autopilot/internal/api"
	"github.com/ignite/campaign-autopilot/internal/config"
	"github.com/ignite/campaign-autopilot/internal/delivery"
	"github.com/ignite/campaign-autopilot/internal/generator"
	"github.com/ignite/campaign-autopilot/internal/pkg/logger"
	"github.com/ignite/campaign-autopilot/internal/repository/postgres"
	"github.com/ignite/campaign-autopilot/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	healthAddr := flag.String("health-addr", "", "optional address for a standalone health endpoint")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("load config", "error", err.Error())
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedact(*cfg.Logging.RedactPII)
	}
	log := logger.Component("worker")

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Error("connect database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, falling back to advisory locks", "error", err.Error())
			redisClient = nil
		}
		cancel()
	}

	gen, err := newGenerator(cfg.Generator)
	if err != nil {
		log.Error("init generator", "error", err.Error())
		os.Exit(1)
	}

	sink, err := delivery.NewSESSink(context.Background(), cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
	if err != nil {
		log.Error("init delivery sink", "error", err.Error())
		os.Exit(1)
	}

	repo := postgres.NewCampaignRepo(db)
	dispatcher := worker.NewDispatcher(repo, gen, sink, redisClient, db, worker.DispatcherConfig{
		PollInterval:   cfg.Dispatch.PollInterval(),
		Workers:        cfg.Dispatch.Workers,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		BackoffBase:    cfg.Dispatch.BackoffBase(),
		LockTTL:        cfg.Dispatch.LockTTL(),
		GenTimeout:     cfg.Generator.Timeout(),
		DeliverTimeout: cfg.SES.Timeout(),
		FromEmail:      cfg.SES.FromEmail,
		FromName:       cfg.SES.FromName,
	})

	if err := dispatcher.Start(); err != nil {
		log.Error("start dispatcher", "error", err.Error())
		os.Exit(1)
	}

	if *healthAddr != "" {
		go serveHealth(*healthAddr, dispatcher, log)
	}

	log.Info("worker running")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	dispatcher.Stop()
	log.Info("stopped")
}

func newGenerator(cfg config.GeneratorConfig) (generator.Generator, error) {
	switch cfg.Backend {
	case "bedrock":
		return generator.NewBedrockClient(context.Background(), cfg.AWSRegion, cfg.BedrockModelID)
	case "openrouter", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter backend requires an API key")
		}
		return generator.NewOpenRouterClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout(), cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}

func serveHealth(addr string, stats api.StatsProvider, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","dispatched":%d}`, stats.Stats()["total_dispatched"])
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("health endpoint", "error", err.Error())
	}
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
