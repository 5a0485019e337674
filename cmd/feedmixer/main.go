// FeedMixer ingests RSS/Atom feeds and serves rule-driven mixes of them over
// HTTP and, optionally, Telegram.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"feedmixer/internal/api"
	"feedmixer/internal/bot"
	"feedmixer/internal/config"
	"feedmixer/internal/logger"
	"feedmixer/internal/mixer"
	"feedmixer/internal/ratelimit"
	"feedmixer/internal/rule"
	"feedmixer/internal/scheduler"
	"feedmixer/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	logic, err := rule.ParseLogicMode(cfg.ConditionLogic)
	if err != nil {
		return err
	}
	svc := mixer.NewService(store, rule.NewRegistry(), logic, log)

	sched := scheduler.New(store, cfg.FeedMaxAgeMinutes, log)
	sched.SetTickInterval(cfg.SchedulerTick)

	limiter, err := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow, ratelimit.DefaultMaxClients)
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}

	srv := api.NewServer(api.ServerConfig{
		Port:             cfg.HTTPPort,
		CORSOrigin:       cfg.CORSOrigin,
		Environment:      cfg.Environment,
		Version:          cfg.AppVersion,
		RateLimitExclude: cfg.RateLimitExclude,
	}, store, svc, sched, limiter, log)

	var b *bot.Bot
	if cfg.BotEnabled() {
		if b, err = bot.New(cfg.TelegramBotToken, store, svc, sched, cfg, log); err != nil {
			return err
		}
	}

	log.Info("starting",
		"app", cfg.AppName,
		"version", cfg.AppVersion,
		"environment", cfg.Environment,
		"port", cfg.HTTPPort,
		"bot", cfg.BotEnabled(),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Block until the group is canceled, then drain in-flight requests.
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(downCtx); err != nil {
			log.Error("shut down server", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Run(gCtx)
		return nil
	})

	if b != nil {
		g.Go(func() error {
			b.Run(gCtx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Info("stopped")
	return nil
}
