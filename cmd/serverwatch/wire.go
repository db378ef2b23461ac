package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/cache"
	"github.com/hamed0406/serverwatch/internal/config"
	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/delivery/discord"
	"github.com/hamed0406/serverwatch/internal/delivery/webhook"
	"github.com/hamed0406/serverwatch/internal/probe"
	"github.com/hamed0406/serverwatch/internal/repo"
	"github.com/hamed0406/serverwatch/internal/repo/memory"
	"github.com/hamed0406/serverwatch/internal/repo/postgres"
	"github.com/hamed0406/serverwatch/internal/repo/sqlite"
)

var errNoChannel = errors.New("no delivery channel: set DISCORD_TOKEN or DISCORD_WEBHOOK_URL")

// openStore picks the backend from the DATABASE_URL scheme. Empty means in-memory.
func openStore(ctx context.Context, dsn string, log *zap.Logger) (repo.Store, error) {
	switch {
	case dsn == "":
		return memory.New(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := postgres.New(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		scheme, _, _ := strings.Cut(dsn, "://")
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme %q", scheme)
	}
}

// seedTargets loads the YAML target list into the store. An empty path is a no-op.
func seedTargets(ctx context.Context, path string, store repo.TargetSeeder, log *zap.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}
	targets, err := config.LoadTargets(path)
	if err != nil {
		return 0, err
	}
	for _, t := range targets {
		if err := store.UpsertTarget(ctx, t); err != nil {
			return 0, fmt.Errorf("seed target %s: %w", t.ID, err)
		}
	}
	log.Info("targets_seeded", zap.String("file", path), zap.Int("count", len(targets)))
	return len(targets), nil
}

// openCache returns a Redis cache when url is set and an in-process one otherwise.
// The returned close func is never nil.
func openCache(ctx context.Context, url string) (cache.Cache, func() error, error) {
	if url == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	r, err := cache.OpenRedis(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

func newProber(cfg config.Config) (probe.Prober, error) {
	switch cfg.QueryProtocol {
	case "", "a2s":
		return probe.NewA2SProber(), nil
	case "http":
		return probe.NewHTTPProber(cfg.HTTPStatusPath), nil
	default:
		return nil, fmt.Errorf("unsupported QUERY_PROTOCOL %q (want a2s or http)", cfg.QueryProtocol)
	}
}

// openChannel prefers the bot token. Webhook mode sends every target to the
// one webhook, so the tracker gets it as the default destination.
func openChannel(cfg config.Config) (delivery.Channel, []delivery.TrackerOption, func() error, error) {
	opts := []delivery.TrackerOption{delivery.WithTimeout(cfg.DeliveryTimeout)}
	switch {
	case cfg.DiscordToken != "":
		ch, err := discord.New(cfg.DiscordToken)
		if err != nil {
			return nil, nil, nil, err
		}
		return ch, opts, ch.Close, nil
	case cfg.DiscordWebhookURL != "":
		ch := webhook.New(cfg.DiscordWebhookURL)
		opts = append(opts, delivery.WithDefaultDestination(webhook.Destination))
		return ch, opts, func() error { return nil }, nil
	default:
		return nil, nil, nil, errNoChannel
	}
}
