// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command exobridge monitors the configured inference backends and serves
// their health, event history and metrics over HTTP.
//
// The daemon does not proxy requests. Applications that send requests embed
// the exobridge package and call Dispatch themselves; the daemon only
// reports, through /status, which of the configured candidates a router
// would currently use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	exobridge "github.com/zebadiee/ai-token-exo-bridge"
	"github.com/zebadiee/ai-token-exo-bridge/config"
	"github.com/zebadiee/ai-token-exo-bridge/discovery"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "exobridge:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	monitor := exobridge.NewMonitor(
		health.NewHTTPProber(),
		exobridge.WithLogger(logger.Named("monitor")),
		exobridge.WithMetrics(registry),
		exobridge.WithAutoRecovery(cfg.AutoRecovery),
		exobridge.WithEventCapacity(cfg.EventCapacity),
		exobridge.WithProbeConcurrency(cfg.ProbeConcurrency),
		exobridge.WithStartupJitter(time.Second),
	)
	targets, err := cfg.HealthTargets()
	if err != nil {
		return err
	}
	for _, target := range targets {
		if err := monitor.Register(target); err != nil {
			return err
		}
	}
	group, err := cfg.PriorityGroup()
	if err != nil {
		return err
	}
	// Only consulted for candidate usability; nothing dispatches here.
	router := exobridge.NewRouter(monitor, monitor.Events())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Start()
	defer monitor.Stop()

	if cfg.Discovery.Enabled {
		discoverer := discovery.NewDiscoverer(cfg.Scanner(), cfg.Discovery.Interval, logger.Named("discovery"))
		task := discoverer.Start(ctx, monitor, nil)
		defer func() { _ = task.Close() }()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(monitor, router, group, registry, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info("serving", zap.String("addr", cfg.ListenAddr), zap.Int("targets", len(targets)))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
