package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/mediagrab/internal/config"
	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/genricoloni/mediagrab/internal/downloader"
	"github.com/genricoloni/mediagrab/internal/engine"
	"github.com/genricoloni/mediagrab/internal/extractor"
	"github.com/genricoloni/mediagrab/internal/fetcher"
	"github.com/genricoloni/mediagrab/internal/logger"
	"github.com/genricoloni/mediagrab/internal/notifier"
	"github.com/genricoloni/mediagrab/internal/processor"
	"github.com/genricoloni/mediagrab/internal/resolver"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AppOptions is the dependency graph shared by every command
var AppOptions = fx.Options(
	fx.Provide(
		config.NewViper,
		newConfig,
		newLogger,
		newFetcher,
		newExtractor,
		newDownloader,
		notifier.New,
		fx.Annotate(resolver.New, fx.As(new(domain.QualityResolver))),
		fx.Annotate(processor.NewThumbnailProcessor, fx.As(new(domain.ImageProcessor))),
		func(c *config.AppConfig) domain.Config { return c },
		func(f *fetcher.HTTPFetcher) domain.PageFetcher { return f },
		func(f *fetcher.HTTPFetcher) domain.Fetcher { return f },
		engine.NewEngine,
	),
	fx.Invoke(registerHooks),
)

func main() {
	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newConfig(v *viper.Viper) (*config.AppConfig, error) {
	return config.Load(v)
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return logger.New(cfg.Log)
}

func newFetcher(lc fx.Lifecycle, log *zap.Logger, cfg *config.AppConfig) *fetcher.HTTPFetcher {
	f := fetcher.NewHTTPFetcher(log, cfg)
	lc.Append(fx.StopHook(f.Close))
	return f
}

func newExtractor(log *zap.Logger, cfg *config.AppConfig) domain.Extractor {
	return extractor.New(log, extractor.Options{
		RegionSelector: cfg.RegionSelector,
		TitleSelector:  cfg.TitleSelector,
	})
}

func newDownloader(lc fx.Lifecycle, log *zap.Logger, cfg *config.AppConfig) domain.Downloader {
	d := downloader.New(log, afero.NewOsFs(), downloader.Options{
		Dir:         cfg.DownloadDir,
		ChunkSize:   cfg.ChunkSize,
		DefaultExt:  cfg.DefaultExt,
		KeepPartial: cfg.KeepPartial,
		Timeout:     cfg.DownloadTimeout,
	})
	lc.Append(fx.StopHook(d.Close))
	return d
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, log *zap.Logger, e *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Debug("mediagrab started")
			return e.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			err := e.Stop(ctx)
			_ = log.Sync()
			return err
		},
	})
}
