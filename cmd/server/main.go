package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/auth"
	"github.com/ahmetk3436/routerwatch/internal/config"
	"github.com/ahmetk3436/routerwatch/internal/device"
	"github.com/ahmetk3436/routerwatch/internal/handlers"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/ahmetk3436/routerwatch/internal/routes"
	"github.com/ahmetk3436/routerwatch/internal/services"
	"github.com/ahmetk3436/routerwatch/internal/store"
	"github.com/ahmetk3436/routerwatch/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func main() {
	// ─── Config ──────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// JSON structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting routerwatch", "version", handlers.Version)

	ctx := context.Background()

	// ─── Store ───────────────────────────────────────────────────────────
	var (
		kv     store.KV
		pinger handlers.Pinger
		db     *gorm.DB
	)
	if cfg.DatabaseDSN != "" {
		db, err = store.Connect(cfg.DatabaseDSN)
		if err != nil {
			slog.Error("Database connection failed", "error", err)
			os.Exit(1)
		}
		if err := store.Migrate(db); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
		dbStore := store.NewDBStore(db)
		kv, pinger = dbStore, dbStore
	} else {
		jsonStore, err := store.NewJSONStore(cfg.DataDir)
		if err != nil {
			slog.Error("Failed to open data directory", "dir", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		kv = jsonStore
		slog.Info("Using JSON file store", "dir", cfg.DataDir)
	}

	// ─── RouterOS Registry ──────────────────────────────────────────────
	registry := routeros.NewRegistry(&routeros.APIDialer{
		Timeout: cfg.DialTimeout.Duration,
		UseTLS:  cfg.RouterOSTLS,
	}, routeros.RegistryConfig{
		Cooldown:    cfg.ConnectCooldown.Duration,
		DialTimeout: cfg.DialTimeout.Duration,
		CallTimeout: cfg.CallTimeout.Duration,
	})

	// ─── Auth ────────────────────────────────────────────────────────────
	// Fail closed: no listener until both keys are usable.
	authenticator, err := auth.New(registry, cfg.SessionSecret, cfg.EncryptionKey)
	if err != nil {
		slog.Error("Failed to initialize session authenticator", "error", err)
		os.Exit(1)
	}

	// ─── Services ───────────────────────────────────────────────────────
	deviceService := device.NewService(registry)

	meter := services.NewICMPMeter()
	nodeMonitor, err := services.NewNodeMonitor(ctx, kv, meter, cfg.EchoTimeout.Duration)
	if err != nil {
		slog.Error("Failed to load nodes", "error", err)
		os.Exit(1)
	}

	preferences, err := services.NewPreferencesStore(ctx, kv, cfg.Intervals, cfg.IntervalBounds())
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		os.Exit(1)
	}

	// ─── Handlers ───────────────────────────────────────────────────────
	authHandler := handlers.NewAuthHandler(authenticator, cfg.RouterOSPort, cfg.CookieSecure)
	systemHandler := handlers.NewSystemHandler(deviceService, registry, pinger, cfg.LogLimit)
	firewallHandler := handlers.NewFirewallHandler(deviceService)
	queueHandler := handlers.NewQueueHandler(deviceService)
	preferencesHandler := handlers.NewPreferencesHandler(preferences)
	nodeHandler := handlers.NewNodeHandler(nodeMonitor)
	telemetryHandler := handlers.NewTelemetryHandler(deviceService, meter, nodeMonitor, preferences, telemetry.Options{
		PingTarget:       cfg.PingTarget,
		EchoTimeout:     cfg.EchoTimeout.Duration,
		LogLimit:         cfg.LogLimit,
		DefaultInterface: cfg.DefaultInterface,
		EmitOnStart:      true,
	})

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "routerwatch v" + handlers.Version,
		ServerHeader: "routerwatch",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		AllowCredentials: cfg.AllowOrigins != "*",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	loginLimiter := middleware.LoginLimiter(cfg.LoginRateMax, cfg.LoginRateWindow.Duration)
	routes.Setup(app, authenticator, loginLimiter, authHandler, systemHandler, firewallHandler,
		queueHandler, preferencesHandler, nodeHandler, telemetryHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down routerwatch...")

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		registry.CloseAll()

		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("routerwatch listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
