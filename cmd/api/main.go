package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/anvesana/internal/adapters/http"
	"github.com/kirillkom/anvesana/internal/bootstrap"
	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/observability/logging"
	"github.com/kirillkom/anvesana/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("anvesana-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.LoadIndex(ctx); err != nil {
		log.Fatalf("load index error: %v", err)
	}

	services := httpadapter.Services{
		Retriever: app.RetrieveUC,
		Queries:   app.QueryUC,
		Binder:    app.IndexUC,
		Metrics:   metrics.NewHTTPServerMetrics("anvesana-api"),
	}
	if cfg.RunLedgerEnabled {
		ledger, err := app.OpenRunLedger(ctx)
		if err != nil {
			log.Fatalf("run ledger error: %v", err)
		}
		services.Ingest = ledger.Scheduler
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpadapter.NewRouter(cfg, services).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "collection", cfg.CollectionName, "run_ledger", cfg.RunLedgerEnabled)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
