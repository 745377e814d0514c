package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.LevelFromEnv(),
		Component: applog.ComponentScheduler,
	})
	applog.SetDefault(logger)

	logger.Info("Starting report-scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	dispatcher := services.NewReportDispatcher(repo, amqpClient)

	granularity, ok := core.ParseGranularity(cfg.ReportGranularity)
	if !ok {
		logger.Warn("Unknown report granularity, using monthly", "granularity", cfg.ReportGranularity)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Report scheduler configured",
		"interval", cfg.ReportInterval,
		"period_days", cfg.ReportPeriodDays,
		"granularity", granularity)

	runDispatch := func(now time.Time) {
		end := core.DateOf(now)
		start := core.DateOf(now.AddDate(0, 0, -(cfg.ReportPeriodDays - 1)))
		dateRange := core.DateRange{Start: start, End: end}

		results, err := dispatcher.DispatchAll(ctx, dateRange, granularity)
		if err != nil {
			logger.Error("Scheduled dispatch failed", applog.FieldError, err)
			return
		}

		sent, failed := 0, 0
		for _, r := range results {
			if r.Sent {
				sent++
			} else if r.Err != nil {
				failed++
			}
		}
		logger.Info("Scheduled dispatch complete",
			"period_start", start.String(),
			"period_end", end.String(),
			"users", len(results),
			"sent", sent,
			"failed", failed)
	}

	// Run once on startup, then on every tick.
	runDispatch(time.Now())

	ticker := time.NewTicker(cfg.ReportInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runDispatch(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Scheduler stopped")
}
