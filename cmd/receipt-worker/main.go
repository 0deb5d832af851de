package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pfm/internal/amqp"
	"pfm/internal/config"
	"pfm/internal/log"
	"pfm/internal/receipt/gemini"
	"pfm/internal/storage"
	"pfm/internal/worker"
)

// staleCutoff is how old a submitted task must be before the sweeper
// considers its queue message lost.
const staleCutoff = 10 * time.Minute

const sweepBatchSize = 100

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("starting receipt-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required for the analysis worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	analyzer := gemini.NewAnalyzer(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AnalyzeTimeout, logger)
	receiptWorker := worker.NewReceiptWorker(repo, analyzer, amqpClient, cfg.AnalyzeTimeout, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeReceiptTasks(gctx, func(msg *amqp.ReceiptTaskMessage) error {
			return receiptWorker.HandleTask(gctx, msg.TaskID)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := receiptWorker.SweepStale(gctx, staleCutoff, sweepBatchSize); err != nil {
					logger.Error("stale task sweep failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("receipt-worker shut down")
}
