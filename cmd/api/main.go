// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourism-compliance/internal/api"
	"tourism-compliance/internal/app"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/scheduler"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, zapLog, app.Options{ServiceName: "compliance-api"})
	if err != nil {
		zapLog.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	checks := map[string]api.Pinger{
		"postgres": a.Postgres,
		"redis":    a.Redis,
	}
	if a.Elasticsearch != nil {
		checks["elasticsearch"] = api.PingFunc(func(context.Context) error { return a.Elasticsearch.Ping() })
	}
	if a.Camunda != nil {
		checks["zeebe"] = api.PingFunc(a.Camunda.HealthCheck)
	}

	router := api.NewRouter(api.Deps{
		Review:         a.Review,
		Enforcement:    a.Enforcement,
		Ingestion:      a.Ingestion,
		Reconciliation: a.Reconciliation,
		Operators:      a.Operators,
		Checks:         checks,
	}, cfg.HTTP, a.Logger)

	sched := scheduler.New(a.Reconciliation, cfg.Scheduler, a.Logger)
	if err := sched.Start(); err != nil {
		zapLog.Fatal("scheduler failed to start", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping API server", zap.Error(err))
	}
	zapLog.Info("API server stopped gracefully")
}
