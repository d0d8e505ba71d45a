/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/common"
	"vote-escrow-go/internal/config"
	"vote-escrow-go/internal/prerequisite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	ownersFlag := flag.String("owners", "", "Comma-separated accounts to keep refreshed in addition to WALLET_ADDRESS")
	allProfiles := flag.Bool("all", false, "Track every registered profile (sqlite backend only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting vote-escrow engine")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := common.InitializeServices(ctx, cfg, registry)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := services.Refresher.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start lock refresher", zap.Error(err))
	}

	// Decide which accounts to keep warm.
	owners := parseOwners(*ownersFlag)
	if cfg.Wallet.Address != "" {
		owners = append(owners, cfg.Wallet.Address)
	}
	if *allProfiles {
		if services.Devnet == nil {
			zap.L().Fatal("--all requires the sqlite backend")
		}
		profiles, err := common.InitializeProfiles(ctx, services.Devnet, "", logger)
		if err != nil {
			zap.L().Fatal("Failed to load profiles", zap.Error(err))
		}
		for _, p := range profiles {
			owners = append(owners, p.Address)
		}
	}
	for _, owner := range owners {
		services.Refresher.Track(owner)
	}
	zap.L().Info("Tracking accounts", zap.Int("count", len(services.Refresher.Tracked())))

	// Gating reads come from the refresher so they never block on the chain.
	live := prerequisite.New(services.Wallet, services.Profiles, services.Refresher, services.Gate, services.Clock)
	liveService := api.NewLockService(services.Ledger, services.Queue, live)

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("/status", statusHandler(liveService))
		mux.Handle("/locks", locksHandler(services.Refresher))
		mux.Handle("/healthz", healthHandler(liveService))

		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: time.Minute}
		go func() {
			zap.L().Info("Serving metrics and status", zap.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Error("HTTP server failed", zap.Error(err))
			}
		}()
	}

	zap.L().Info("Engine running")
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("HTTP server shutdown failed", zap.Error(err))
			}
		}
		services.Refresher.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Engine stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}

func parseOwners(raw string) []string {
	var owners []string
	for _, owner := range strings.Split(raw, ",") {
		if owner = strings.TrimSpace(owner); owner != "" {
			owners = append(owners, owner)
		}
	}
	return owners
}
