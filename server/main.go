package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/sync/errgroup"

	"github.com/meikuraledutech/chatgraph"
	"github.com/meikuraledutech/chatgraph/api"
	"github.com/meikuraledutech/chatgraph/cache"
	"github.com/meikuraledutech/chatgraph/config"
	"github.com/meikuraledutech/chatgraph/format"
	"github.com/meikuraledutech/chatgraph/logger"
	"github.com/meikuraledutech/chatgraph/memstore"
	"github.com/meikuraledutech/chatgraph/postgres"
	"github.com/meikuraledutech/chatgraph/service"
	"github.com/meikuraledutech/chatgraph/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHATGRAPH_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := []logger.Option{logger.WithFields("service", "chatgraph")}
	if lvl, ok := cfg.Level(); ok {
		opts = append(opts, logger.WithLevel(lvl))
	}
	log, err := logger.New(cfg.LogMode, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var exports cache.Cache
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer r.Close()
		exports = r
	default:
		m := cache.NewMemory(cache.WithTTL(cfg.Cache.TTL))
		g.Go(func() error {
			m.Run(ctx, func(removed int) {
				if removed > 0 {
					log.Debug("expired exports swept", "removed", removed)
				}
			})
			return nil
		})
		exports = m
	}

	if cfg.AuthToken == "" {
		log.Warn("AUTH_TOKEN is not set, the API is unauthenticated")
	}

	svc := service.New(store, exports, format.Default(), log)
	app := api.NewApp(svc, log, api.Config{
		AuthToken:      cfg.AuthToken,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	g.Go(func() error {
		log.Info("listening", "addr", cfg.Listen, "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
		return app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true})
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (chatgraph.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return memstore.New(), nil
	case config.StorePostgres:
		s, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
