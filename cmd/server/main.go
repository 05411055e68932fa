package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	httpadapter "resume-forge/internal/adapter/http"
	"resume-forge/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.InitLogger(cfg.Logging)
	logger.InfoContext(ctx, "starting resume forge",
		"port", cfg.HTTP.Port,
		"store", cfg.Store.Backend,
		"max_trim_attempts", cfg.Pipeline.MaxTrimAttempts)

	backends, err := bootstrap.NewBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init backends: %w", err)
	}
	defer backends.Close()

	if err := bootstrap.SeedSettings(ctx, cfg.Seed, backends.Settings, logger); err != nil {
		logger.WarnContext(ctx, "settings seed skipped", "error", err)
	}

	notifier, err := bootstrap.NewNotifier(cfg.Notify, backends.Redis, logger)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	processor := bootstrap.NewProcessor(cfg, backends, notifier, logger)
	pinger := bootstrap.NewGenerator(cfg.Generator, logger)

	app := fiber.New(fiber.Config{
		AppName:               "resume-forge",
		BodyLimit:             cfg.HTTP.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	handler := httpadapter.NewHandler(processor, backends.Jobs, backends.Settings, pinger, logger.With("component", "http"))
	handler.Register(app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		logger.InfoContext(gctx, "http server listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
		if err := app.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout); err != nil {
			return err
		}
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := handler.Wait(drainCtx); err != nil {
			logger.Warn("job runs still active at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
