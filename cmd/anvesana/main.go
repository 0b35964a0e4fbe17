package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/anvesana/internal/adapters/cli"
	"github.com/kirillkom/anvesana/internal/bootstrap"
	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "anvesana-cli", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context, withIndex bool) (*cli.Services, func(), error) {
		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		if withIndex {
			if err := app.LoadIndex(ctx); err != nil {
				app.Close()
				return nil, nil, err
			}
		}
		return &cli.Services{
			Corpus:    app.IngestUC,
			Retriever: app.RetrieveUC,
			Queries:   app.QueryUC,
		}, app.Close, nil
	}

	if err := cli.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
