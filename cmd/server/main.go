package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"camproxy/internal/cache"
	"camproxy/internal/config"
	httphandlers "camproxy/internal/http"
	"camproxy/internal/logger"
	"camproxy/internal/mjpeg"
	"camproxy/internal/placeholder"
	"camproxy/internal/registry"
	"camproxy/internal/snapshot"
	"camproxy/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting camera proxy",
		zap.Int("port", cfg.Port),
		zap.String("cache", cfg.CacheType),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	reg := registry.New(cfg.RegistryFile, log)
	if err := reg.Load(); err != nil {
		log.Warn("Initial registry load failed", zap.Error(err))
	}
	if err := reg.Watch(ctx); err != nil {
		log.Warn("Registry watching disabled", zap.Error(err))
	}

	ph, err := placeholder.New(cfg.PlaceholderFile, log)
	if err != nil {
		log.Fatal("Failed to prepare placeholder", zap.Error(err))
	}

	fetcher := upstream.New(upstream.Options{
		Timeout:   cfg.UpstreamTimeout,
		UserAgent: cfg.UpstreamUserAgent,
	}, log)
	extractor := mjpeg.NewExtractor(extractOptions(cfg.Extract), log)

	var source snapshot.Source = snapshot.NewPipeline(fetcher, extractor, cfg.MaxImageBytes, log)
	if cfg.CacheEnabled() {
		store, err := cache.NewCache(cfg.CacheType, cfg.CacheMaxEntries, log)
		if err != nil {
			log.Fatal("Failed to initialize cache", zap.Error(err))
		}
		source = snapshot.NewCached(source, store, cfg.CacheTTL, log)
	}

	handlers := httphandlers.New(cfg, log, source, reg, ph)

	if cfg.WarmupCameras > 0 {
		go warmupSnapshots(ctx, cfg.WarmupCameras, cfg.WarmupWorkers, reg, source, log)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlers.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func extractOptions(c config.ExtractConfig) mjpeg.Options {
	return mjpeg.Options{
		ReadChunk:         c.ReadChunk,
		MaxReads:          c.MaxReads,
		MaxBuffer:         c.MaxBuffer,
		BandMin:           c.BandMin,
		BandMax:           c.BandMax,
		MinFrame:          c.MinFrame,
		EmergencyMinFrame: c.EmergencyMinFrame,
		ValidateAll:       c.ValidateAll,
	}
}

// warmupSnapshots fetches the first n registry cameras through source so the
// cache is populated before clients arrive.
func warmupSnapshots(ctx context.Context, n, workerLimit int, reg *registry.Registry, source snapshot.Source, log *zap.Logger) {
	cameras := reg.GetCameras()
	if len(cameras) == 0 {
		return
	}
	if n < len(cameras) {
		cameras = cameras[:n]
	}

	log.Info("Starting snapshot warmup", zap.Int("cameras", len(cameras)), zap.Int("workers", workerLimit))

	if workerLimit <= 0 {
		workerLimit = 1
	}

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup
	var failed int
	var mu sync.Mutex

	for _, cam := range cameras {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		workerChan <- struct{}{} // Acquire worker slot

		go func(cam registry.Camera) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			if _, err := source.Snapshot(ctx, cam.ImageURL); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				log.Debug("Warmup snapshot failed",
					zap.String("camera", cam.ID),
					zap.String("source_url", cam.ImageURL),
					zap.String("kind", snapshot.Kind(err)),
					zap.Error(err))
			}
		}(cam)
	}

	wg.Wait()
	log.Info("Snapshot warmup completed", zap.Int("cameras", len(cameras)), zap.Int("failed", failed))
}
