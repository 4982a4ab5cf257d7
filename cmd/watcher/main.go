package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"crosswatch/config"
	"crosswatch/internal/logger"
	"crosswatch/internal/watcher"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// .env is optional; deployments usually set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[watcher] loaded .env")
	}

	cfg := config.Load()
	logger.Init("crosswatch", cfg.Level())
	log.Printf("[watcher] log level: %s, poll interval: %s", cfg.LogLevel, cfg.PollInterval())

	svc, err := watcher.New(cfg)
	if err != nil {
		log.Fatalf("[watcher] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[watcher] fatal: %v", err)
	}
}
