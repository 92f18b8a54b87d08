package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"twittermoo/internal/config"
	"twittermoo/internal/delivery"
	"twittermoo/internal/feed"
	"twittermoo/internal/fetcher"
	"twittermoo/internal/filter"
	"twittermoo/internal/model"
	"twittermoo/internal/scheduler"
	"twittermoo/internal/storage"
)

// Exit codes.
const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintln(stderr, err)
		return exitConfig
	}

	log := newLogger(cfg.LogLevel, stderr)

	if cfg.Every < config.MinEvery {
		log.Warn("polling more often than every 300 seconds may get the account rate limited", "every", cfg.Every)
	}

	if dir := filepath.Dir(cfg.DBFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			return exitConfig
		}
	}

	store, err := storage.NewSQLite(cfg.DBFile)
	if err != nil {
		log.Error("open database", "path", cfg.DBFile, "error", err)
		return exitConfig
	}
	defer func() { _ = store.Close() }()

	if counts, err := store.Counts(ctx); err != nil {
		log.Warn("count ledger entries", "path", cfg.DBFile, "error", err)
	} else {
		log.Info("ledger opened", "path", cfg.DBFile, "seeded", counts[model.StatusSeeded], "delivered", counts[model.StatusDelivered])
	}

	sink, err := newSink(cfg, stdout)
	if err != nil {
		log.Error("create sink", "sink", cfg.Sink(), "error", err)
		return exitConfig
	}

	opts, err := schedulerOptions(cfg)
	if err != nil {
		log.Error("scheduler options", "error", err)
		return exitConfig
	}

	rules, err := filter.NewRules(cfg.Filters)
	if err != nil {
		log.Error("compile filters", "error", err)
		return exitConfig
	}

	sched := scheduler.New(
		store,
		fetcher.New(newProvider(cfg), log),
		delivery.NewChannel(sink, log),
		opts,
		log,
	)
	sched.SetGate(filter.Chain(
		filter.MentionGate{Friends: filter.FriendList(cfg.Friends)},
		rules,
	))
	sched.SetErrorOutput(stderr)

	log.Info("starting", "provider", cfg.Provider, "sink", cfg.Sink(), "once", cfg.Once)

	if err := sched.Run(ctx); err != nil {
		log.Error("stopped", "error", err)
		return exitRuntime
	}

	log.Info("stopped")
	return exitOK
}

func newProvider(cfg *config.Config) feed.Client {
	if cfg.Provider == config.ProviderRSS {
		return feed.NewRSS(&http.Client{Timeout: 30 * time.Second}, cfg.TimelineURL)
	}
	return feed.NewAPI(cfg.APIURL, cfg.Email, cfg.Password)
}

func newSink(cfg *config.Config, stdout io.Writer) (delivery.Sink, error) {
	switch cfg.Sink() {
	case "tcp":
		return delivery.NewTCP(cfg.Host, cfg.Port, cfg.Secret), nil
	case "telegram":
		return delivery.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	default:
		return delivery.NewStdout(stdout), nil
	}
}

func schedulerOptions(cfg *config.Config) (scheduler.Options, error) {
	policy, err := scheduler.ParseOversizePolicy(cfg.Oversize)
	if err != nil {
		return scheduler.Options{}, err
	}
	return scheduler.Options{
		Wait:      cfg.Wait,
		Period:    cfg.Period,
		Every:     cfg.Every,
		Once:      cfg.Once,
		MaxLength: cfg.MaxLength,
		Oversize:  policy,
	}, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
