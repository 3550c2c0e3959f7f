package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keepstack/keepsync/internal/api"
	"github.com/keepstack/keepsync/internal/app"
	"github.com/keepstack/keepsync/internal/cursor"
	"github.com/keepstack/keepsync/internal/database"
	"github.com/keepstack/keepsync/internal/feed"
	"github.com/keepstack/keepsync/internal/insights"
	"github.com/keepstack/keepsync/internal/kv"
	"github.com/keepstack/keepsync/internal/middleware"
	"github.com/keepstack/keepsync/internal/notify"
	"github.com/keepstack/keepsync/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("keepsyncd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	dbStore := kv.NewDatabaseStore(db)

	var kvBackend kv.Store = dbStore
	var redisClient *kv.RedisClient
	if cfg.Cache.Redis.Enabled {
		client, redisErr := kv.NewRedisClient(cfg.Cache.Redis.RedisOptions())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to database-backed storage", zap.Error(redisErr))
		} else {
			redisClient = client
			kvBackend = client
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	cursors, err := cursor.NewKVStore(kvBackend)
	if err != nil {
		return fmt.Errorf("initialise cursor store: %w", err)
	}

	feedClient, err := feed.NewHTTPClient(cfg.Feed.ClientOptions())
	if err != nil {
		return fmt.Errorf("initialise feed client: %w", err)
	}

	hub := notify.NewHub()
	taps := notify.NewTapRouter(hub)
	hub.SetReadyHook(taps.OnNavigatorReady)

	channels := []notify.Deliverer{hub}
	if cfg.Notifications.FCM.Enabled {
		fcm, fcmErr := notify.NewFCMDeliverer(ctx, cfg.Notifications.FCM.DelivererOptions())
		if fcmErr != nil {
			return fmt.Errorf("initialise fcm deliverer: %w", fcmErr)
		}
		channels = append(channels, fcm)
		log.Info("fcm delivery enabled")
	}
	gate := notify.NewPermissionGate(notify.NewFanout(channels...), cfg.Notifications.PermissionGranted)

	journal, err := insights.NewJournal(db)
	if err != nil {
		return fmt.Errorf("initialise delivery journal: %w", err)
	}

	poller, err := insights.NewPoller(feedClient, cursors, gate, journal,
		insights.WithInterval(cfg.Feed.PollInterval),
	)
	if err != nil {
		return fmt.Errorf("initialise poller: %w", err)
	}

	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	defer poller.Stop()

	router, err := api.NewRouter(api.Deps{
		DB:        db,
		Poller:    poller,
		Journal:   journal,
		Cursors:   cursors,
		Hub:       hub,
		Taps:      taps,
		Gate:      gate,
		RateStore: middleware.NewKVRateStore(kvBackend),
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseOptions())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable on shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
