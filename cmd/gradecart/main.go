package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/api"
	"github.com/gradecart/gradecart/internal/commerce"
	"github.com/gradecart/gradecart/internal/config"
	"github.com/gradecart/gradecart/internal/imaging"
	"github.com/gradecart/gradecart/internal/scan"
	"github.com/gradecart/gradecart/internal/session"
	"github.com/gradecart/gradecart/internal/vision"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting GradeCart", zap.String("version", version))

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if !cfg.VisionReady() {
		logger.Warn("Extraction provider not configured, scans will be rejected until an API key is set")
	}

	// Storage is best-effort: without it the app still runs, the session
	// just lives in memory and history is unavailable.
	var kv scan.KV
	var history scan.HistorySink
	store, err := session.New(cfg)
	if err != nil {
		logger.Warn("Failed to initialize storage, running in memory only", zap.Error(err))
	} else {
		defer store.Close()
		kv = store
		history = store
	}

	sessions := scan.NewManager(kv, history, logger)

	visionClient := vision.NewClient(cfg.Vision, logger)
	aggregator := scan.NewAggregator(visionClient, logger)
	optimizer := imaging.NewOptimizer(cfg.Pipeline.ImageMaxWidth, cfg.Pipeline.ImageQuality, logger)
	scans := scan.NewService(aggregator, optimizer, sessions, cfg.Pipeline.MaxPages, logger)

	storeClient := commerce.NewClient(cfg.Commerce, logger)
	matcher := commerce.NewMatcher(storeClient, logger)
	if store != nil {
		matcher = matcher.WithCache(store)
	}
	checkout := commerce.NewCheckout(storeClient, cfg.Commerce, logger)

	// Nightly history pruning
	scheduler := cron.New()
	if store != nil && cfg.Pipeline.HistoryRetention > 0 {
		retention := cfg.Pipeline.HistoryRetention
		if _, err := scheduler.AddFunc("0 3 * * *", func() {
			pruned, err := store.PruneHistory(retentionDuration(retention))
			if err != nil {
				logger.Error("History pruning failed", zap.Error(err))
				return
			}
			if pruned > 0 {
				logger.Info("Pruned old history entries", zap.Int64("pruned", pruned))
			}
		}); err != nil {
			logger.Warn("Failed to schedule history pruning", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := api.New(cfg, scans, sessions, matcher, checkout, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func retentionDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
