package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/saint0x/gitfix/pkg/app"
	"github.com/saint0x/gitfix/pkg/config"
	"github.com/saint0x/gitfix/pkg/log"
)

func main() {
	debug := os.Getenv("DEBUG") == "true"
	logger := log.NewWithOptions(log.Options{
		Debug: debug,
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	})

	logger.Loading("🚀 Starting gitfix server...")
	logger.Info("🔧 Debug mode: %v", debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Loading("🔍 Validating environment...")
	env, err := config.Validate(ctx, logger)
	if err != nil {
		logger.Error("❌ Environment validation failed: %v", err)
		os.Exit(1)
	}
	logger.Success("✅ Environment validated")

	logger.Loading("⚙️ Initializing components...")
	a, err := app.New(ctx, logger, env)
	if err != nil {
		logger.Error("❌ Failed to initialize: %v", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("❌ Server error: %v", err)
		os.Exit(1)
	}
	logger.Success("✨ Server shutdown complete")
}
