// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tourism-compliance/internal/app"
	"tourism-compliance/internal/common/camunda"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/logger"

	// Enforcement Workers (1)
	pe "tourism-compliance/internal/workers/enforcement/prioritize-enforcement"

	// Reconciliation Workers (3)
	fc "tourism-compliance/internal/workers/reconciliation/find-candidates"
	il "tourism-compliance/internal/workers/reconciliation/ingest-listing"
	ml "tourism-compliance/internal/workers/reconciliation/match-listing"

	// Review Workers (1)
	dm "tourism-compliance/internal/workers/review/decide-match"
)

// timeoutFor prefers the configured worker timeout over the handler default.
func timeoutFor(cfg *config.Config, taskType string, def time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return def
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	ctx := context.Background()

	a, err := app.New(ctx, cfg, zapLog, app.Options{ServiceName: "worker-manager", Zeebe: true})
	if err != nil {
		zapLog.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()
	log := a.Logger

	// --- Register Workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.HandlerFunc) {
		if w := camunda.StartWorker(a.Zeebe, taskType, config.GetWorkerConfig(cfg, taskType), handler, a.Obs, log); w != nil {
			workers = append(workers, w)
		}
	}

	// --- 1. Reconciliation Workers (3) ---
	{
		c := il.LoadConfig()
		c.Timeout = timeoutFor(cfg, il.TaskType, c.Timeout)
		start(il.TaskType, il.NewHandler(c, a.Ingestion, log).Handle)
	}
	{
		c := fc.LoadConfig()
		c.Timeout = timeoutFor(cfg, fc.TaskType, c.Timeout)
		start(fc.TaskType, fc.NewHandler(c, a.Reconciliation, log).Handle)
	}
	{
		c := ml.LoadConfig()
		c.Timeout = timeoutFor(cfg, ml.TaskType, c.Timeout)
		start(ml.TaskType, ml.NewHandler(c, a.Reconciliation, log).Handle)
	}

	// --- 2. Review Workers (1) ---
	{
		c := dm.LoadConfig()
		c.Timeout = timeoutFor(cfg, dm.TaskType, c.Timeout)
		start(dm.TaskType, dm.NewHandler(c, a.Review, log).Handle)
	}

	// --- 3. Enforcement Workers (1) ---
	{
		c := pe.LoadConfig()
		c.Timeout = timeoutFor(cfg, pe.TaskType, c.Timeout)
		start(pe.TaskType, pe.NewHandler(c, a.Enforcement, log).Handle)
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := a.Postgres.Ping(r.Context()); err != nil {
			status, code = "postgres unavailable", http.StatusServiceUnavailable
		} else if err := a.Redis.Ping(r.Context()); err != nil {
			status, code = "redis unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
