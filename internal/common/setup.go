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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/cache"
	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/config"
	"vote-escrow-go/internal/database"
	"vote-escrow-go/internal/exitqueue"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/metrics"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
	"vote-escrow-go/internal/prerequisite"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/refresher"
	"vote-escrow-go/internal/rpcchain"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is the wired engine. Devnet is nil when the chain is reached over RPC.
type Services struct {
	Chain       store.ChainAdapter
	Devnet      *database.Service
	Profiles    store.ProfileStore
	Wallet      *Wallet
	Ledger      *ledger.Ledger
	Queue       *exitqueue.Manager
	Refresher   *refresher.Refresher
	Aggregator  *prerequisite.Aggregator
	LockService *api.LockService
	Metrics     *metrics.Recorder
	Gate        *warmup.Gate
	Clock       *clock.Clock
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the configured chain backend and wires every component to it. reg
// may be nil when metrics are not exported.
func InitializeServices(ctx context.Context, cfg *models.Config, reg prometheus.Registerer) (*Services, error) {
	if err := config.ValidateGovernanceParams(cfg.Params); err != nil {
		return nil, fmt.Errorf("invalid governance params: %w", err)
	}

	var recorder *metrics.Recorder
	if reg != nil {
		recorder = metrics.New(reg)
	}

	services := &Services{Metrics: recorder}
	switch cfg.Chain.Backend {
	case config.BackendRPC:
		zap.L().Info("Connecting to chain node",
			zap.String("rpc_url", cfg.Chain.RpcURL),
			zap.String("ws_url", cfg.Chain.WsURL))
		client, err := rpcchain.NewClient(cfg.Chain.RpcURL, cfg.Chain.WsURL)
		if err != nil {
			return nil, err
		}
		services.Chain = client
		services.Profiles = client
	default:
		devnet, err := InitializeDevnet(ctx, cfg, nil)
		if err != nil {
			return nil, err
		}
		services.Chain = devnet
		services.Devnet = devnet
		services.Profiles = devnet
	}

	snapshots, err := cache.New(cfg.Cache.Size, recorder)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}
	policy, err := queue.NewPolicy(cfg.Params.Queue)
	if err != nil {
		services.Close()
		return nil, err
	}

	c := &clock.Clock{}
	gate := warmup.NewGate(cfg.Params.WarmupPeriod)
	services.Clock = c
	services.Gate = gate
	services.Ledger = ledger.New(services.Chain, ledger.Options{
		Calculator:  power.NewCalculator(cfg.Params.MaxLockDuration, gate),
		Gate:        gate,
		Policy:      policy,
		Clock:       c,
		Cache:       snapshots,
		Metrics:     recorder,
		CallTimeout: cfg.Chain.CallTimeout,
	})
	services.Queue = exitqueue.New(services.Ledger, cfg.Params.ExitFeeBasisPoints)
	services.Refresher = refresher.New(refresher.Config{
		Ledger:          services.Ledger,
		Interval:        cfg.Refresher.Interval,
		EventRetention:  cfg.Refresher.EventRetention,
		CleanupInterval: cfg.Refresher.CleanupInterval,
	})
	services.Wallet = NewWallet(cfg.Wallet.Address)
	services.Wallet.OnDisconnect(services.Refresher.Untrack)
	services.Aggregator = prerequisite.New(services.Wallet, services.Profiles,
		prerequisite.LedgerSource{Ledger: services.Ledger}, gate, c)
	services.LockService = api.NewLockService(services.Ledger, services.Queue, services.Aggregator)

	zap.L().Info("Services initialized",
		zap.String("backend", cfg.Chain.Backend),
		zap.String("queue_discipline", policy.Name()),
		zap.Int64("exit_fee_bps", cfg.Params.ExitFeeBasisPoints))
	return services, nil
}

// InitializeDevnet opens only the SQLite devnet chain, for tools that administer it directly
func InitializeDevnet(ctx context.Context, cfg *models.Config, c *clock.Clock) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database, database.Options{
		Params: cfg.Params,
		Capabilities: models.Capabilities{
			Delegation: true,
			Transfers:  true,
		},
		Clock: c,
	})
}

func (cs *Services) Close() {
	if cs.Refresher != nil {
		cs.Refresher.Stop()
	}
	if cs.Chain != nil {
		cs.Chain.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
