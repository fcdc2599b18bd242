package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/hoodsync/internal/api"
	"github.com/prudhvinik1/hoodsync/internal/backoff"
	"github.com/prudhvinik1/hoodsync/internal/config"
	"github.com/prudhvinik1/hoodsync/internal/connectivity"
	"github.com/prudhvinik1/hoodsync/internal/kv"
	"github.com/prudhvinik1/hoodsync/internal/ledger"
	"github.com/prudhvinik1/hoodsync/internal/models"
	"github.com/prudhvinik1/hoodsync/internal/queue"
	"github.com/prudhvinik1/hoodsync/internal/realtime"
	"github.com/prudhvinik1/hoodsync/internal/syncstore"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	store, cleanup, err := openKV(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open queue storage: %v", err)
	}
	defer cleanup()

	opQueue, err := queue.New(ctx, store, cfg.QueueKey, logger)
	if err != nil {
		logger.Fatalf("Failed to load operation queue: %v", err)
	}

	updLedger := ledger.New(cfg.LedgerGrace, logger)
	defer updLedger.Close()

	monitor := connectivity.NewMonitor(logger)

	// Demo community API + websocket change feed.
	hub := newWSHub(logger)
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Get("/feed", hub.Handle)
	newNoticeAPI(hub).routes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", cfg.ServerPort)
	}
	feedURL := cfg.FeedURL
	if feedURL == "" {
		feedURL = fmt.Sprintf("ws://localhost:%s/feed", cfg.ServerPort)
	}

	remote := api.NewClient(baseURL, logger)
	notices := syncstore.New(syncstore.Config{
		ResourceType: models.TypeNotice,
		Endpoint:     "/api/notices",
		MaxAttempts:  cfg.MaxAttempts,
		OnError: func(err error, context string) {
			logger.WithError(err).WithField("context", context).Warn("sync error")
		},
		Logger: logger,
	}, remote, opQueue, updLedger, monitor)
	defer notices.Close()

	// Reachability probe: the health endpoint doubles as the probe
	// target, upgrading the monitor back to online after an outage.
	go monitor.RunProbe(ctx, func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, backoff.Default())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		// Give the listener a moment, then attach the client side.
		select {
		case <-groupCtx.Done():
			return nil
		case <-time.After(200 * time.Millisecond):
		}

		if err := notices.Fetch(groupCtx); err != nil {
			logger.WithError(err).Warn("initial fetch failed")
		}

		feed, err := realtime.DialFeed(groupCtx, feedURL, logger)
		if err != nil {
			return fmt.Errorf("failed to attach change feed: %w", err)
		}
		defer feed.Close()

		unsubscribe, err := notices.SubscribeRealtime(feed, nil)
		if err != nil {
			return err
		}
		defer unsubscribe()

		// Drain anything queued during a previous offline run.
		if _, err := notices.ProcessQueue(groupCtx); err != nil {
			logger.WithError(err).Warn("startup drain failed")
		}

		<-groupCtx.Done()
		return nil
	})

	group.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-groupCtx.Done():
			return nil
		case <-sigChan:
		}

		logger.Info("Shutting down server...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Info("Server stopped gracefully")
}

func openKV(ctx context.Context, cfg *config.Config) (kv.Store, func(), error) {
	switch cfg.QueueBackend {
	case config.BackendRedis:
		store, err := kv.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.BackendSQLite:
		store, err := kv.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store := kv.NewMemory()
		return store, func() {}, nil
	}
}
