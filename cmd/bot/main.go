package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"lfp_bot/internal/alert"
	"lfp_bot/internal/bot"
	"lfp_bot/internal/catalog"
	"lfp_bot/internal/config"
	"lfp_bot/internal/dashboard"
	"lfp_bot/internal/fetcher"
	"lfp_bot/internal/novelty"
	"lfp_bot/internal/scheduler"
	"lfp_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Error("load catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = kv.Close() }()

	tracker := novelty.NewTracker(kv, log)
	tracker.Load(ctx)

	f := fetcher.New(&http.Client{}, cfg.APIBaseURL, fetcher.Options{
		MinInterval: cfg.MinFetchInterval,
		Timeout:     cfg.RequestTimeout,
	})

	// Sinks are added once the bot exists, since it is one of them.
	trigger := alert.NewTrigger(log)

	dash := dashboard.New(f, tracker, trigger, dashboard.Options{
		Catalog:  cat,
		PageSize: cfg.PageSize,
		KV:       kv,
	}, log)
	dash.LoadFilter(ctx)
	defer dash.Close()

	sched := scheduler.New(dash, scheduler.Options{Base: cfg.PollBase, Jitter: cfg.PollJitter}, log)

	b, err := bot.New(cfg.TelegramBotToken, dash, sched, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	if len(cfg.NotifyChatIDs) > 0 {
		trigger.AddSink(alert.NewTelegram(b, cfg.NotifyChatIDs))
	}
	if cfg.DesktopAlerts {
		trigger.AddSink(alert.NewDesktop())
	}

	log.Info("starting bot", "api", f.URL(), "notify_chats", len(cfg.NotifyChatIDs), "desktop_alerts", cfg.DesktopAlerts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})
	g.Go(func() error {
		b.Run(ctx)
		return nil
	})
	_ = g.Wait()

	log.Info("bot stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.KV, error) {
	if cfg.RedisURL != "" {
		log.Info("using redis store")
		r, err := storage.NewRedis(ctx, cfg.RedisURL, "lfp:")
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	log.Info("using sqlite store", "path", cfg.DatabasePath)
	s, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
