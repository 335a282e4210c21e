// cmd/search-server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-search/internal/common/camunda"
	"webhook-search/internal/common/config"
	"webhook-search/internal/common/database"
	"webhook-search/internal/common/logger"
	"webhook-search/internal/common/observability"
	"webhook-search/internal/common/validation"
	"webhook-search/internal/render"
	"webhook-search/internal/search"
	"webhook-search/internal/server"
	"webhook-search/internal/webhook"
	webhooksearch "webhook-search/internal/workers/search/webhook-search"
	"webhook-search/pkg/registry"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting search server",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability setup failed, metrics via otel disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	// --- Query validation from the activity registry ---
	reg, err := registry.Resolve(cfg.RegistryPath)
	if err != nil {
		zapLog.Fatal("registry load failed", zap.Error(err))
	}
	activity, err := reg.Find(registry.SearchActivityID)
	if err != nil {
		zapLog.Fatal("search activity missing", zap.Error(err))
	}
	validator, err := validation.NewValidator(activity.InputSchema)
	if err != nil {
		zapLog.Fatal("invalid search input schema", zap.Error(err))
	}

	// --- Webhook client ---
	client, err := webhook.NewClient(
		webhook.WithBaseURL(cfg.Webhook.URL),
		webhook.WithTimeout(config.GetDuration(cfg.Webhook.Timeout)),
		webhook.WithUserAgent(cfg.Webhook.UserAgent),
		webhook.WithMaxBodyBytes(cfg.Webhook.MaxBodyBytes),
	)
	if err != nil {
		zapLog.Fatal("webhook client setup failed", zap.Error(err))
	}

	opts := []search.Option{search.WithValidator(validator), search.WithObservability(obs)}
	var serverOpts []server.Option

	// --- Optional Redis cache ---
	if cfg.Cache.Enabled {
		redis := database.NewRedis(cfg.Database.Redis)
		defer redis.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redis.Ping(pingCtx); err != nil {
			zapLog.Warn("redis not reachable at start-up, cache will degrade", zap.Error(err))
		}
		cancel()

		opts = append(opts, search.WithCache(search.NewRedisCache(redis, config.GetDuration(cfg.Cache.TTL), cfg.Cache.Prefix)))
		serverOpts = append(serverOpts, server.WithReadinessCheck("redis", redis.Ping))
		zapLog.Info("search cache enabled", zap.Int("ttl_ms", cfg.Cache.TTL))
	}

	svc := search.NewService(client, log, opts...)

	renderer, err := render.New(cfg.Server.PageTitle)
	if err != nil {
		zapLog.Fatal("template parse failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Optional workflow worker ---
	var jobWorker *camunda.CamundaWorker
	if cfg.WorkersEnabled() {
		zeebe, err := camunda.NewClient(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.ConnectTimeout),
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		serverOpts = append(serverOpts, server.WithReadinessCheck("zeebe", zeebe.HealthCheck))

		wcfg := config.GetWorkerConfig(cfg, webhooksearch.TaskType)
		handler := webhooksearch.NewHandler(webhooksearch.LoadConfig(wcfg, cfg.Server.PageTitle), svc, renderer, log)
		jobWorker = camunda.StartWorker(zeebe.GetClient(), webhooksearch.TaskType, wcfg, handler.Handle, log)
	}

	// --- HTTP server ---
	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
	}, svc, renderer, log, serverOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		zapLog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			zapLog.Error("http server stopped", zap.Error(err))
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	jobWorker.Stop()

	zapLog.Info("search server stopped gracefully")
}
