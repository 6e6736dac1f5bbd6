// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/config"
	"github.com/votelot/server/db"
	"github.com/votelot/server/draw"
	"github.com/votelot/server/lock"
	"github.com/votelot/server/notify"
	"github.com/votelot/server/rolesvc"
	"github.com/votelot/server/router"
	"github.com/votelot/server/wallet"
)

func main() {
	// Load .env if present, then configuration from env/file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dbConn, dialect, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	logger := slog.Default()

	// Draw lock: Redis when configured, otherwise per-instance no-op (the
	// draw table's unique index still prevents double draws)
	locks := lock.NewNoopManager()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		locks = lock.NewRedisManager(redisClient)
		slog.Info("Redis draw lock enabled", "addr", cfg.RedisAddr)
	}

	// Role checks: external service when configured, otherwise nobody has
	// privileged roles
	var roles rolesvc.Checker = rolesvc.StaticChecker{}
	if cfg.RoleServiceURL != "" {
		roles = rolesvc.NewClient(cfg.RoleServiceURL, logger)
	}

	ledger := audit.NewLedger(dbConn, dialect)
	walletSvc := wallet.NewService(dbConn)
	coordinator := draw.NewCoordinator(dbConn, dialect, ledger, walletSvc, roles,
		locks, notify.NewLogNotifier(logger), logger)

	// Auto-draw scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := draw.NewScheduler(coordinator, cfg.DrawSweepInterval, logger)
	go scheduler.Run(schedulerCtx)

	// Create router
	mux := router.NewRouter(router.Deps{
		DB:          dbConn,
		Cfg:         cfg,
		Ledger:      ledger,
		Wallet:      walletSvc,
		Roles:       roles,
		Coordinator: coordinator,
	})

	// Create server
	server := http.Server{
		Handler: mux,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		stopScheduler()
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
