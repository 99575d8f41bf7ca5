package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/daemon"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults to the standard location)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		os.Exit(1)
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}

	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("studiod shutting down")
	if err := d.Close(); err != nil {
		logger.Warn("close daemon", logging.Error(err))
	}
}
