package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikan-dev/tech-kawaraban/internal/config"
	"github.com/mikan-dev/tech-kawaraban/internal/curate"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/pipeline"
	"github.com/mikan-dev/tech-kawaraban/internal/scheduler"
	"github.com/mikan-dev/tech-kawaraban/internal/server"
	"github.com/mikan-dev/tech-kawaraban/internal/sources"
	"github.com/mikan-dev/tech-kawaraban/internal/store"
	"github.com/mikan-dev/tech-kawaraban/internal/summarize"
	"github.com/mikan-dev/tech-kawaraban/pkg/fetch"
	"github.com/mikan-dev/tech-kawaraban/pkg/httpclient"
	"github.com/mikan-dev/tech-kawaraban/pkg/publish"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync(appLog)

	if err := run(cfg, appLog); err != nil {
		appLog.ErrorObj("fatal", "startup_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Config, appLog logger.Logger) error {
	boltStore, err := store.OpenBolt(cfg.StorePath)
	if err != nil {
		return err
	}
	defer boltStore.Close()

	registry := sources.Default()
	if cfg.SourcesPath != "" {
		if registry, err = sources.Load(cfg.SourcesPath); err != nil {
			return err
		}
	}

	gen := textgen.NewChatClient(textgen.Config{
		Endpoint: cfg.TextGen.Endpoint,
		Model:    cfg.TextGen.Model,
		APIKey:   cfg.TextGen.APIKey,
		Timeout:  cfg.TextGen.Timeout(),
	}, nil)

	summarizer := summarize.New(gen, registry, cfg.Limits.SummaryFallbackLen, appLog)

	fetchers := []fetch.Fetcher{
		fetch.NewFeedFetcher(
			httpclient.NewRestyClient(15*time.Second),
			summarizer,
			registry,
			fetch.FeedConfig{
				MaxItemsPerFeed: cfg.Limits.MaxItemsPerFeed,
				MaxSummarize:    cfg.Limits.MaxSummarizePerRun,
				Workers:         cfg.Limits.FeedConcurrency,
			},
			appLog,
		),
		fetch.NewSearchFetcher(
			gen,
			registry,
			fetch.SearchConfig{
				Model:            cfg.TextGen.SearchModel,
				MaxPerTopic:      cfg.Limits.MaxPerSearchTopic,
				MaxSearchResults: cfg.Limits.MaxSearchResults,
				Concurrency:      cfg.Limits.SearchConcurrency,
			},
			appLog,
		),
	}

	var publishers []publish.Publisher
	if cfg.PublishersPath != "" {
		pubCfgs, err := publish.LoadConfigs(cfg.PublishersPath)
		if err != nil {
			return err
		}
		publishers, err = publish.BuildAll(context.Background(), publish.DefaultRegistry(), publish.Enabled(pubCfgs), appLog)
		if err != nil {
			return err
		}
	}

	curator := curate.New(gen, cfg.Limits.MaxCurated, appLog)
	pipe := pipeline.New(fetchers, curator, boltStore, publishers, appLog)

	if cfg.CronEnabled {
		sched, err := scheduler.New(cfg.CronSpec, pipe, appLog)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	server.New(boltStore, pipe, cfg.CronSecret, appLog).Register(engine)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	appLog.InfoObj("server started", "startup", map[string]any{"addr": cfg.Addr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
