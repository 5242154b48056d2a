package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Varamadon/auto-refactor/internal/agent"
	"github.com/Varamadon/auto-refactor/internal/brain"
	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/logger"
	"github.com/Varamadon/auto-refactor/internal/server"
	"github.com/Varamadon/auto-refactor/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP entry point and the dispatch loop",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	config.WatchLogLevel()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if c, ok := log.(io.Closer); ok {
		defer c.Close()
	}

	b, err := brain.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	executor, err := newExecutor(cfg.Executor, registry)
	if err != nil {
		return err
	}

	orch := agent.New(b, executor, log, agent.NewReplyQueue())
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           server.New(orch, registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	g.Go(func() error {
		logger.L.Info("starting server", "address", srv.Addr, "provider", cfg.LLM.Provider, "executor", cfg.Executor.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.L.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		orch.Stop()
		return err
	})
	return g.Wait()
}

func newExecutor(cfg config.ExecutorConfig, registry *tools.Registry) (agent.Executor, error) {
	switch cfg.Transport {
	case config.TransportMCP:
		dial, err := tools.TransportDialer(cfg.MCPTransport)
		if err != nil {
			return nil, err
		}
		return tools.NewMCPExecutor(registry, dial), nil
	default:
		return tools.NewHTTPExecutor(registry, cfg.Timeout), nil
	}
}
