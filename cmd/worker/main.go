package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/germanleap/internal/app"
	"github.com/suPer8Hu/germanleap/internal/chat"
	"github.com/suPer8Hu/germanleap/internal/config"
	"github.com/suPer8Hu/germanleap/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	if !cfg.ChatJobsEnabled {
		log.Fatalf("worker requires CHAT_JOBS_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("rabbit consumer: %v", err)
	}
	defer consumer.Close()

	err = consumer.Run(ctx, func(ctx context.Context, jobID string) error {
		jobCtx, cancel := context.WithTimeout(ctx, chat.JobTimeout)
		defer cancel()
		return a.Chat.RunJob(jobCtx, jobID)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Printf("[worker] shutting down")
}
