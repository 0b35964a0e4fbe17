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

	"github.com/kirillkom/anvesana/internal/bootstrap"
	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/observability/logging"
	"github.com/kirillkom/anvesana/internal/observability/metrics"
)

const (
	serviceName = "anvesana-worker"
	runTimeout  = 2 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

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
	ledger, err := app.OpenRunLedger(ctx)
	if err != nil {
		log.Fatalf("run ledger error: %v", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "collection", cfg.CollectionName)
	err = ledger.Queue.SubscribeIngestRequested(ctx, func(handlerCtx context.Context, req domain.IngestRequest) error {
		if !req.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(req.RequestedAt))
		}
		runCtx, cancel := context.WithTimeout(handlerCtx, runTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartRun()
		report, err := ledger.Processor.ProcessRun(runCtx, req)
		workerMetrics.FinishRun(serviceName, time.Since(start), err)
		if report != nil {
			workerMetrics.RecordIndexed(serviceName, report.Collection, report.Passages, report.FailedDocuments)
		}
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
