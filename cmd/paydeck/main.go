package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"paydeck/internal/amqp"
	"paydeck/internal/auth"
	"paydeck/internal/config"
	"paydeck/internal/feed"
	apphttp "paydeck/internal/http"
	"paydeck/internal/log"
	"paydeck/internal/services"
	"paydeck/internal/storage"
	"paydeck/internal/storage/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	var (
		store storage.Store
		users storage.UserStore
	)
	switch cfg.DataBackend {
	case "memory":
		mem := memory.New()
		store, users = mem, mem
		logger.Info("Initialized memory backend")
	default:
		sqlite, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqlite.Close()
		store, users = sqlite, sqlite
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	}

	// AMQP is optional: without it, mutation events stay node-local and
	// the export worker never hears about new records until its sweep.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer events.Close()
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	hub := feed.NewHub(store, logger.WithComponent(log.ComponentFeed))
	ledger := services.NewLedger(store, hub, nilablePublisher(events), logger.WithComponent(log.ComponentLedger))
	authMgr := auth.NewManager(users, []byte(cfg.JWTSecret), cfg.TokenTTL, logger.WithComponent(log.ComponentAuth))

	srv := apphttp.NewServer(":"+cfg.Port, ledger, authMgr, hub, cfg.RateLimitPerMinute, logger.WithComponent(log.ComponentHTTP))
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting paydeck server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Relay cross-node mutation events into the local feed hub, so a
	// change made on one node wakes subscribers connected to another.
	if events != nil {
		g.Go(func() error {
			err := events.ConsumeBroadcast(ctx, func(event *amqp.MutationEvent) error {
				srv.InvalidateStats(event.UserID)
				hub.Notify(ctx, event.UserID)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// nilablePublisher keeps a nil *amqp.Client from becoming a non-nil
// interface value inside the ledger.
func nilablePublisher(c *amqp.Client) services.EventPublisher {
	if c == nil {
		return nil
	}
	return c
}
