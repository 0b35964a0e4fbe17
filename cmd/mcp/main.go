package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/anvesana/internal/adapters/mcp"
	"github.com/kirillkom/anvesana/internal/bootstrap"
	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the protocol
	log.SetOutput(os.Stderr)
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "anvesana-mcp", cfg.LogLevel))

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

	s := mcpadapter.NewServer(version, mcpadapter.NewTools(app.RetrieveUC))
	slog.Info("mcp_serving_stdio", "collection", cfg.CollectionName)
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_stopped", "error", err)
	}
}
