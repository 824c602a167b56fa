package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voltonic-power/common/logger"
	"voltonic-power/internal/config"
	"voltonic-power/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "voltonic-power")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. service
	powerService, err := service.NewPowerService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create power service",
			zap.Error(err),
		)
	}
	defer powerService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. run until a signal arrives
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := powerService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Error("Service error",
			zap.Error(err),
		)
	}

	log.Info("Power service stopped")
}
