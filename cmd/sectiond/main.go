package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/strataview/strataview/internal/config"
	"github.com/strataview/strataview/internal/logger"
	"github.com/strataview/strataview/internal/metrics"
	"github.com/strataview/strataview/internal/observability"
	"github.com/strataview/strataview/internal/orchestrator"
	"github.com/strataview/strataview/internal/profilecache"
	"github.com/strataview/strataview/internal/server"
)

var (
	Version  = "dev"
	Revision = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		// the logger is configured from the file we failed to read
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.Logging.Level,
		Console:   cfg.Logging.Console,
		Component: "sectiond",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting sectiond",
		"addr", cfg.Server.Addr,
		"version", Version,
		"rasters", len(cfg.Datasets.Rasters),
		"layers", len(cfg.Datasets.Layers))

	provider := metrics.Init(metrics.BuildInfo{Version: Version, Revision: Revision})
	observability.Init(provider.Registerer())

	datasets, err := server.LoadRegistry(cfg.Datasets)
	if err != nil {
		appLog.Error("dataset load failed", "err", err)
		return 1
	}

	cache, err := profilecache.New(appLog, cfg.Cache.Size)
	if err != nil {
		appLog.Error("cache setup failed", "err", err)
		return 1
	}
	orch := orchestrator.New(appLog)

	srv := server.New(appLog, cache, orch, datasets, cfg.Sampling, provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg.Server, appLog, srv.Routes()); err != nil {
		appLog.Error("http server exited", "err", err)
		return 1
	}
	appLog.Info("shutdown complete")
	return 0
}
