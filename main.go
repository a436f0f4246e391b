package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"stattrack/pkg/config"
	"stattrack/pkg/logger"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.SetLevel(cfg.LogLevel)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
		logger.Logger.Warn("JWT_SECRET not set; using the development secret")
	}
	jwtSecret = []byte(secret)
	apiKeyHash = cfg.APIKeyHash
	tokenTTL = cfg.TokenTTL
	if apiKeyHash == "" {
		logger.Logger.Warn("API_KEY_HASH not set; POST /token is disabled")
	}

	// Support a lightweight migrate command: `./stattrack migrate`
	// It ensures the sink schema then exits. Useful for CI or manual setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := initStore(cfg); err != nil {
			logger.WithError(err).Fatal("open sink")
		}
		defer store.Close()
		if err := store.EnsureSchema(context.Background()); err != nil {
			logger.WithError(err).Fatal("migration failed")
		}
		fmt.Println("migration completed")
		return
	}

	if err := initStore(cfg); err != nil {
		logger.WithError(err).Fatal("open sink")
	}
	defer store.Close()
	if cfg.Sink.AutoMigrate {
		if err := store.EnsureSchema(context.Background()); err != nil {
			logger.WithError(err).Warn("schema check failed")
		}
	}

	r := gin.Default()

	setupRoutes(r)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
