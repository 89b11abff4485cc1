// The server command exposes stored pipeline outputs over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brightloop/campaign-insights/internal/api"
	"github.com/brightloop/campaign-insights/internal/cache"
	"github.com/brightloop/campaign-insights/internal/config"
	"github.com/brightloop/campaign-insights/internal/directive"
	"github.com/brightloop/campaign-insights/internal/pipeline"
	"github.com/brightloop/campaign-insights/internal/pkg/logger"
	"github.com/brightloop/campaign-insights/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err.Error())
		os.Exit(1)
	}
	if !cfg.Database.Enabled {
		logger.Error("the API requires the database; set DATABASE_URL")
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		logger.Error("database connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	var directiveCache api.DirectiveCache
	if cfg.Cache.Enabled {
		c := cache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL())
		defer c.Close()
		if err := c.Ping(context.Background()); err != nil {
			logger.Warn("redis unreachable, running without directive cache", "error", err.Error())
		} else {
			directiveCache = c
		}
	}

	generator, err := directive.NewGenerator(cfg.Directive.Profile)
	if err != nil {
		logger.Error("directive profile", "error", err.Error())
		os.Exit(1)
	}

	clusters := pipeline.ClusterFile{
		Path: filepath.Join(cfg.Paths.OutputDir, pipeline.FileClusterAssignments),
	}

	server := api.NewServer(postgres.NewSegmentRepo(db), directiveCache, clusters, generator)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}
