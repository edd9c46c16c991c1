package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bnema/imgbatch/config"
	"github.com/bnema/imgbatch/internal/adapter/converter/jpeg"
	"github.com/bnema/imgbatch/internal/adapter/fetch"
	HTTPAdapter "github.com/bnema/imgbatch/internal/adapter/http"
	"github.com/bnema/imgbatch/internal/adapter/http/ratelimit"
	"github.com/bnema/imgbatch/internal/adapter/imagehost/imgur"
	"github.com/bnema/imgbatch/internal/adapter/notify/webhook"
	"github.com/bnema/imgbatch/internal/adapter/report"
	"github.com/bnema/imgbatch/internal/adapter/storage/jsonfile"
	"github.com/bnema/imgbatch/internal/adapter/storage/redisstore"
	sqlitestore "github.com/bnema/imgbatch/internal/adapter/storage/sqlite"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/bnema/imgbatch/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		os.Exit(hashToken(os.Args[2:]))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting imgbatch on port %d, store=%s, report=%s", cfg.Port, cfg.StoreDriver, cfg.ReportFormat)

	scratchDir := filepath.Join(cfg.DataDir, "scratch")
	reportDir := filepath.Join(cfg.DataDir, "reports")
	for _, dir := range []string{cfg.DataDir, scratchDir, reportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error.Printf("failed to create directory %s: %v", dir, err)
			os.Exit(1)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	reports, err := report.New(report.Format(cfg.ReportFormat), reportDir)
	if err != nil {
		logger.Error.Printf("failed to create report writer: %v", err)
		os.Exit(1)
	}

	transfer := service.NewTransferWorker(
		fetch.NewFetcher(cfg.HTTPTimeout, fetch.DefaultMaxBytes),
		jpeg.NewCompressor(scratchDir, cfg.JPEGQuality),
		imgur.NewClient(cfg.ImgurClientID, cfg.ImgurUploadURL, cfg.HTTPTimeout),
		service.RetryPolicy{MaxAttempts: cfg.UploadAttempts, Delay: cfg.UploadDelay},
	)
	eventBus := service.NewEventBus()
	processor := service.NewJobProcessor(
		store,
		service.NewEntityPipeline(transfer, cfg.ImageWorkers),
		service.NewAggregator(reports),
		webhook.NewNotifier(cfg.HTTPTimeout),
		eventBus,
		cfg.EntityWorkers,
	)

	// Workers outlive the HTTP server so accepted jobs can drain on shutdown
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workerPool := service.NewWorkerPool(processor, cfg.JobWorkers, cfg.JobQueueSize)
	workerPool.Start(workerCtx)

	go func() {
		for f := range workerPool.Failures() {
			logger.Error.Printf("job supervisor: request %s failed: %v", f.RequestID, f.Err)
		}
	}()

	batchSvc := service.NewBatchService(store, workerPool, reports, scratchDir, cfg.Retention())
	auth := service.NewTokenAuth(cfg.APITokenHash)
	if auth.Enabled() {
		logger.Info.Printf("API token auth enabled")
	}

	limiter := ratelimit.NewLimiter(cfg.SubmitRateLimit, time.Minute, 5*time.Minute)
	defer limiter.Stop()

	server := HTTPAdapter.NewServer(batchSvc, eventBus, auth, limiter, cfg.MaxUploadSizeMB, cfg.BehindProxy)

	// Periodic cleanup of expired records, scratch files and reports
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := batchSvc.Cleanup(workerCtx); err != nil {
					logger.Error.Printf("cleanup failed: %v", err)
				}
			case <-workerCtx.Done():
				return
			}
		}
	}()

	// Cancelled on shutdown so open event streams return
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelRequests)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
			_ = httpServer.Close()
		}

		// Let queued and in-flight jobs finish, then cancel what is left
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer drainCancel()
		if err := workerPool.Shutdown(drainCtx); err != nil {
			logger.Error.Printf("worker shutdown error: %v", err)
		}
		workerCancel()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
	<-done
}

func openStore(cfg *config.Config) (port.StatusStore, error) {
	switch cfg.StoreDriver {
	case config.StoreJSONFile:
		return jsonfile.NewStore(cfg.DataDir)
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return redisstore.Open(ctx, cfg.RedisURL, cfg.Retention())
	default:
		return sqlitestore.NewStore(cfg.DataDir)
	}
}

func hashToken(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: imgbatch hash-token <token>")
		return 2
	}
	hash, err := service.HashToken(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash-token: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
