package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"natours_echo/internal/config"
	"natours_echo/internal/handlers"
	"natours_echo/internal/router"
	"natours_echo/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(cfg.Lvl())

	// Initialize Database
	db, err := services.InitDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional: without it stats are not cached and the rate
	// limit is kept per process.
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warnf("Redis unavailable, continuing without cache: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	midtransService := services.NewMidtransService(cfg)

	e := router.New(router.Deps{
		Config:   cfg,
		DB:       db,
		Cache:    cache,
		Tokens:   services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn),
		Payments: services.NewPaymentService(db, midtransService),
		Images:   services.NewImageService(cfg.PublicDir),
		Checkout: handlers.Checkout{
			ClientKey:     midtransService.ClientKey(),
			SnapScriptURL: midtransService.SnapScriptURL(),
		},
	})

	go func() {
		log.Infof("Server starting on port %s (%s)", cfg.Port, cfg.Environment)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("Server stopped")
}
