package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/server"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Path to YAML configuration file")
		addr       = flag.String("addr", "", "Listen address (overrides server.addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	collector := metrics.NewCollector()
	engine, err := detector.NewFromConfig(cfg, detector.WithMetrics(collector))
	if err != nil {
		logger.Fatal("failed to create detector", zap.Error(err))
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if monitor, err := metrics.NewProcessMonitor(collector); err != nil {
		logger.Log().Warn("process metrics disabled", zap.Error(err))
	} else {
		go monitor.Run(ctx, 500*time.Millisecond)
	}

	if cfg.Server.RegistryURL != "" {
		advertise := cfg.Server.AdvertiseAddr
		if advertise == "" {
			advertise = cfg.Server.Addr
		}
		announcer := server.NewAnnouncer(cfg.Server.RegistryURL, cfg.Server.AnnounceInterval, server.Registration{
			ID:       engine.ID(),
			Addr:     advertise,
			Plugin:   engine.ParserName(),
			MaxBatch: engine.MaxBatchSize(),
		})
		go announcer.Run(ctx)
	}

	if err := server.New(engine, cfg, collector).Run(ctx); err != nil {
		logger.Log().Error("server failed", zap.Error(err))
	}
}
