package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lendee-scoring/internal/api"
	"lendee-scoring/internal/bootstrap"
	"lendee-scoring/internal/common/camunda"
	"lendee-scoring/internal/common/config"
	"lendee-scoring/internal/common/database"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/common/observability"
	"lendee-scoring/internal/relay"
	"lendee-scoring/internal/scoring"
	cas "lendee-scoring/internal/workers/scoring/compute-and-send"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting lendee scoring service", map[string]interface{}{
		"env":     cfg.App.Environment,
		"version": cfg.App.Version,
		"sources": cfg.Sources.Driver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, prometheus.DefaultRegisterer, log)
	defer obs.Shutdown()

	deps, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("dependency connection failed", zap.Error(err))
	}
	defer deps.Close()

	pipeline, err := bootstrap.Pipeline(cfg, deps, log)
	if err != nil {
		zapLog.Fatal("pipeline setup failed", zap.Error(err))
	}

	publisher := relay.NewPublisher(
		cfg.Relay.SharedSecret,
		cfg.Relay.Password,
		config.GetDuration(cfg.Relay.Timeout),
		log,
	)
	service := scoring.NewService(pipeline, publisher, cfg.Relay.URL, log)

	pingers := deps.Pingers()

	// --- Zeebe worker (optional) ---
	var jobWorker *camunda.Worker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(ctx, cfg.Camunda)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer func() { _ = zeebe.Close() }()
		pingers["zeebe"] = zeebe

		wcfg := config.GetWorkerConfig(cfg, cas.TaskType)
		workerCfg := cas.FromWorkerConfig(wcfg)
		if err := workerCfg.Validate(); err != nil {
			zapLog.Fatal("invalid compute-and-send worker config", zap.Error(err))
		}
		handler := cas.NewHandler(workerCfg, service, obs, log)
		jobWorker = camunda.StartWorker(zeebe.GetClient(), cas.TaskType, wcfg, handler.Handle, log)
	}

	// --- HTTP front end ---
	h := api.NewHandler(service, cfg.App.Environment, database.Ready(pingers), log)
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(h, promhttp.Handler(), config.GetDuration(cfg.Server.WriteTimeout), log),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout) + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful shutdown ---
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", map[string]interface{}{"error": err})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	jobWorker.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err})
	}

	log.Info("lendee scoring service stopped", nil)
}
