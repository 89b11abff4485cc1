// The pipeline command runs the batch stages end to end, or a subset of
// them against the previous run's files.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightloop/campaign-insights/internal/analytics"
	"github.com/brightloop/campaign-insights/internal/config"
	"github.com/brightloop/campaign-insights/internal/pipeline"
	"github.com/brightloop/campaign-insights/internal/pkg/logger"
	"github.com/brightloop/campaign-insights/internal/pkg/runlock"
	"github.com/brightloop/campaign-insights/internal/repository/postgres"
	"github.com/brightloop/campaign-insights/internal/warehouse"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "configuration file")
	stagesFlag := flag.String("stages", "", "comma-separated stage subset (default: all)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg)

	if cfg.Warehouse.Enabled {
		wh, err := warehouse.NewClient(warehouse.Config{
			Enabled: true, Account: cfg.Warehouse.Account, User: cfg.Warehouse.User,
			Password: cfg.Warehouse.Password, Database: cfg.Warehouse.Database,
			Schema: cfg.Warehouse.Schema, Warehouse: cfg.Warehouse.Warehouse,
			Table: cfg.Warehouse.Table,
		})
		if err != nil {
			logger.Error("warehouse connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer wh.Close()
		p.UseRawSource(wh)
	}

	if cfg.Analytics.Enabled {
		ac, err := analytics.NewClient(ctx, analytics.Config{
			Remote: cfg.Analytics.Remote, Hostname: cfg.Analytics.Hostname,
			ClientID: cfg.Analytics.ClientID, ClientSecret: cfg.Analytics.ClientSecret,
		})
		if err != nil {
			logger.Error("analytics connect failed", "error", err.Error())
			os.Exit(1)
		}
		p.UseTableSink(ac)
	}

	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = postgres.Open(cfg.Database.URL)
		if err != nil {
			logger.Error("database connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		p.UseStore(postgres.NewSegmentRepo(db))
	}

	// Concurrent runs would interleave the shared stage files. Take a run
	// lock when a coordination backend is available.
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.Addr, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
		})
		defer redisClient.Close()
	}
	if redisClient != nil || db != nil {
		lock := runlock.New(redisClient, db, time.Hour)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			logger.Error("run lock failed", "error", err.Error())
			os.Exit(1)
		}
		if !ok {
			logger.Error("another pipeline run is already in progress")
			os.Exit(1)
		}
		defer lock.Release(context.Background())
	}

	var stages []string
	if *stagesFlag != "" {
		for _, s := range strings.Split(*stagesFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stages = append(stages, s)
			}
		}
	}

	if err := p.Run(ctx, stages); err != nil {
		logger.Error("pipeline failed", "run_id", p.RunID().String(), "error", err.Error())
		os.Exit(1)
	}
}
