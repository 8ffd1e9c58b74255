package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"kopilka/internal/amqp"
	"kopilka/internal/clock"
	"kopilka/internal/config"
	applog "kopilka/internal/log"
	"kopilka/internal/services"
	"kopilka/internal/storage"
	"kopilka/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting engine-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var (
		amqpClient      *amqp.Client
		occurrencePub   services.OccurrencePublisher
		notificationPub services.NotificationPublisher
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		occurrencePub = amqpClient
		notificationPub = amqpClient
	} else {
		logger.Info("AMQP disabled, running sweep-only mode")
	}

	clk := clock.System{}

	scheduler := services.NewScheduler(repo, occurrencePub)
	notifier := services.NewNotifier(repo, clk, services.NotifierConfig{
		DebtLookaheadDays:     cfg.DebtLookaheadDays,
		GoalRiskLookaheadDays: cfg.GoalRiskLookaheadDays,
	}, notificationPub)
	achievements := services.NewAchievementEvaluator(repo, clk)
	engine := services.NewEngine(scheduler, notifier, achievements, clk, cfg.MinRunInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	// Sweep loop: cron spec when configured, plain ticker otherwise.
	group.Go(func() error {
		return runSweeps(ctx, engine, cfg, logger)
	})

	// Event consumer: fan notification events out to delivery sinks.
	if amqpClient != nil {
		dispatcher := worker.NewDispatcher(worker.LogSink{})
		group.Go(func() error {
			err := amqpClient.ConsumeEvents(ctx, dispatcher.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("Engine-worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Engine-worker shutdown complete")
}

// runSweeps drives the global engine pass. An initial sweep runs at startup
// so a worker that was down over a due date catches up immediately.
func runSweeps(ctx context.Context, engine *services.Engine, cfg *config.Config, logger *applog.Logger) error {
	sweep := func() {
		processed := engine.Sweep(ctx)
		logger.Info("Sweep complete", applog.FieldCount, processed)
	}

	logger.Info("Running initial sweep")
	sweep()

	if cfg.TickCronSpec != "" {
		schedule, err := cron.ParseStandard(cfg.TickCronSpec)
		if err != nil {
			return err
		}
		logger.Info("Sweep schedule configured", "cron", cfg.TickCronSpec)
		for {
			next := schedule.Next(time.Now())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Until(next)):
				sweep()
			}
		}
	}

	logger.Info("Sweep interval configured", "interval", cfg.TickInterval)
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}
