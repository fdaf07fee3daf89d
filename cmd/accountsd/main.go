package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"telegram-accounts/internal/app"
	"telegram-accounts/internal/infra/config"
	"telegram-accounts/internal/infra/logger"
)

func main() {
	// envPath определяет расположение .env с секретами и общими настройками.
	envPath := flag.String("env", "assets/.env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	var fileCfg *logger.FileConfig
	if cfg.LogFile != "" {
		fileCfg = &logger.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogFileMaxSize,
			MaxBackups: cfg.LogFileMaxBackups,
			MaxAgeDays: cfg.LogFileMaxAge,
			Compress:   cfg.LogFileCompress,
		}
	}
	logger.Init(cfg.LogLevel, fileCfg)
	for _, msg := range cfg.Warnings() {
		logger.Warn(msg)
	}

	// Контекст с обработкой системных сигналов (Ctrl+C/SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := app.New(ctx, cfg)
	if runErr := a.Run(ctx); runErr != nil {
		stop()
		logger.Fatal("service run failed", zap.Error(runErr))
	}

	stop()
	logger.Info("Graceful shutdown complete")
}
