package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/api"
	"github.com/Checker-Finance/plumbing-feed/fred-adapter/pkg/config"
	"github.com/Checker-Finance/plumbing-feed/internal/store"
	"github.com/Checker-Finance/plumbing-feed/pkg/logger"
	"github.com/Checker-Finance/plumbing-feed/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	cfg.ServiceName = "dashboard-server"

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [dashboard-server]...")

	// --- Optional snapshot mirror ---
	var reader api.SnapshotReader
	if cfg.RedisAddr != "" || cfg.DatabaseURL != "" {
		logg.Infow("connecting store", "redis", cfg.RedisAddr, "dsn", utils.MaskDSN(cfg.DatabaseURL))
		st, err := store.NewHybrid(ctx, store.Options{
			RedisAddr: cfg.RedisAddr,
			RedisDB:   cfg.RedisDB,
			RedisPass: cfg.RedisPass,
			PGURL:     cfg.DatabaseURL,
			PG: store.PGPoolConfig{
				MaxConns:        int32(cfg.PGMaxConns),
				MinConns:        int32(cfg.PGMinConns),
				MaxConnLifetime: cfg.PGMaxConnLifetime,
			},
		}, logger.L())
		if err != nil {
			logg.Warnw("store unavailable; serving files only", "error", err)
		} else {
			defer st.Close()
			reader = st
		}
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.HTTPReadTimeout,
		WriteTimeout:          cfg.HTTPWriteTimeout,
		IdleTimeout:           cfg.HTTPIdleTimeout,
		DisableStartupMessage: true,
	})
	api.RegisterRoutes(app, api.NewHandler(logger.L(), cfg.OutputDir, reader))

	listenErr := make(chan error, 1)
	go func() {
		logg.Infof("HTTP API listening on :%d (data dir %s)", cfg.Port, cfg.OutputDir)
		listenErr <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			logg.Errorw("fiber.listen_failed", "error", err)
			logger.Sync()
			os.Exit(1)
		}
	}

	logg.Info("shutting down [dashboard-server]...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
}
