package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/saint0x/gitfix/pkg/app"
	"github.com/saint0x/gitfix/pkg/config"
	"github.com/saint0x/gitfix/pkg/log"
)

func handleServe(logger *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	shuttingDown := make(chan struct{}, 1)
	go func() {
		for sig := range sigCh {
			select {
			case <-shuttingDown:
				logger.Error("❌ Force stopping...")
				os.Exit(1)
			default:
				logger.Info("🛑 Received signal: %v", sig)
				logger.Info("ℹ️ Press Ctrl+C again to force stop")
				shuttingDown <- struct{}{}
				cancel()
			}
		}
	}()

	logger.Loading("🔍 Validating environment...")
	env, err := config.Validate(ctx, logger)
	if err != nil {
		return fmt.Errorf("environment validation failed: %w", err)
	}
	logger.Success("✅ Environment validated")

	logger.Loading("⚙️ Initializing components...")
	a, err := app.New(ctx, logger, env)
	if err != nil {
		return err
	}

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Success("✨ Server shutdown complete")
	return nil
}
