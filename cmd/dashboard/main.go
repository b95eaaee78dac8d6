package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketdash/config"
	"marketdash/internal/app"
	"marketdash/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (defaults to $"+config.ConfigPathEnv+")")
	pflag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := cfg.ResolveSecrets(); err != nil {
		log.Warn("using configured credentials", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dashboard, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start dashboard", zap.Error(err))
	}

	if err := dashboard.Run(ctx); err != nil {
		log.Error("dashboard stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("dashboard stopped")
}
