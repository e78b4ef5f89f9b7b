package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/app/botapp"
	"github.com/ivankudzin/roadreport/internal/config"
	"github.com/ivankudzin/roadreport/internal/infra/logger"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("roadreport: load config %s: %v", cfgPath, err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("roadreport: init logger: %v", err)
	}

	if err := run(cfg, cfgPath, zl); err != nil {
		zl.Error("roadreport stopped with error", zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
	_ = zl.Sync()
}

func run(cfg config.Config, cfgPath string, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("roadreport starting",
		zap.String("config", cfgPath),
		zap.String("env", cfg.Env),
		zap.String("mode", cfg.Bot.Mode),
		zap.Bool("moderation", cfg.ModerationEnabled()),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("archive", cfg.ArchiveEnabled()),
	)

	app, err := botapp.New(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("create bot app: %w", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run bot app: %w", err)
	}
	return nil
}
