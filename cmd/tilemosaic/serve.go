package main

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"github.com/paulmach/orb/maptile"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tilemosaic/internal/config"
	httphandlers "tilemosaic/internal/http"
	"tilemosaic/internal/render"
	"tilemosaic/internal/sources"
	"tilemosaic/mosaic"
	"tilemosaic/tilecache"
	"tilemosaic/tiling"
)

const PORT string = `port`

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Serve mosaics over HTTP",
		Description: "Tiles are cached for the life of the process in a serve_cache_type store (lru by default).\n" +
			"A tile whose fetch failed is served as failed until it is evicted or the server restarts.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    PORT,
				Aliases: []string{"p"},
				Usage:   "Listen port; overrides the configured port",
			},
		},
		Action: runServe,
	}
}

// startVips initializes libvips and routes its warnings and errors to log.
// The returned function shuts libvips down.
func startVips(cfg *config.Config, log *zap.Logger) func() {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.VipsConcurrency,
		MaxCacheMem:      cfg.VipsMaxCacheMB * 1024 * 1024,
		MaxCacheFiles:    0,
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)
	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.VipsMaxCacheMB),
		zap.Int("concurrency", cfg.VipsConcurrency),
	)
	return vips.Shutdown
}

func runServe(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	if c.IsSet(PORT) {
		cfg.Port = c.Int(PORT)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	shutdownVips := startVips(cfg, log)
	defer shutdownVips()

	log.Info("Starting tilemosaic server",
		zap.Int("port", cfg.Port),
		zap.String("default_source", cfg.DefaultSource),
		zap.String("cache_type", cfg.ServeCacheType),
	)

	registry := newRegistry(cfg, log)
	assembler, client, err := newAssembler(cfg, cfg.ServeCacheType, log, nil)
	if err != nil {
		return err
	}
	defer assembler.Session().Close()

	exporter := render.NewExporter(cfg.JPEGQuality, log)
	handlers := httphandlers.New(cfg, log, registry, assembler, exporter)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WarmupLevels > 0 {
		src, err := registry.Resolve(cfg.DefaultSource)
		if err != nil {
			log.Warn("Warmup skipped", zap.Error(err))
		} else {
			go warmupTiles(ctx, cfg.WarmupLevels, cfg.WarmupWorkers, src, assembler.Session(), client, log)
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped", zap.Any("cache", assembler.Session().Stats()))
	return nil
}

// warmupTiles loads every tile of zoom 0..levels of src into session so the
// first requests of low zoom mosaics are served from memory.
func warmupTiles(ctx context.Context, levels int, workerLimit int, src sources.Source, session *tilecache.Session, fetcher mosaic.Fetcher, log *zap.Logger) {
	if levels > src.MaxZoom {
		levels = src.MaxZoom
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	log.Info("Starting tile warmup", zap.Int("levels", levels), zap.String("source", src.ID))

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup

	for z := 0; z <= levels; z++ {
		last := 1<<z - 1
		world := tiling.Range{MinX: 0, MaxX: last, MinY: 0, MaxY: last, Zoom: maptile.Zoom(z)}

		for _, t := range world.Tiles() {
			if ctx.Err() != nil {
				wg.Wait()
				log.Info("Tile warmup cancelled")
				return
			}
			wg.Add(1)
			workerChan <- struct{}{}

			go func(t maptile.Tile) {
				defer wg.Done()
				defer func() { <-workerChan }()

				key := tilecache.Key{Source: src.URL, Tile: t}
				_, err := session.GetOrFetch(ctx, key, func(ctx context.Context) (image.Image, error) {
					return fetcher.FetchTile(ctx, src.URL, t)
				})
				if err != nil {
					log.Debug("Warmup tile failed", zap.Uint32("z", uint32(t.Z)), zap.Uint32("x", t.X), zap.Uint32("y", t.Y), zap.Error(err))
				}
			}(t)
		}
	}

	wg.Wait()
	log.Info("Tile warmup completed", zap.Int("entries", session.Stats().Entries))
}
