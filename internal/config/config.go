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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"vote-escrow-go/internal/models"
)

const (
	BackendSQLite = "sqlite"
	BackendRPC    = "rpc"
)

func Load() (*models.Config, error) {
	refreshInterval, err := getEnvDuration("REFRESH_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	eventRetention, err := getEnvDuration("EVENT_RETENTION", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("EVENT_CLEANUP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	callTimeout, err := getEnvDuration("CHAIN_CALL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	paramsFile := getEnvString("GOVERNANCE_PARAMS_FILE", "")
	params := DefaultGovernanceParams()
	if paramsFile != "" {
		params, err = LoadGovernanceParams(paramsFile)
		if err != nil {
			return nil, err
		}
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "velock.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			SeedProfiles:    getEnvBool("SEED_PROFILES", false),
		},
		Chain: models.ChainConfig{
			Backend:     getEnvString("CHAIN_BACKEND", BackendSQLite),
			RpcURL:      getEnvString("CHAIN_RPC_URL", "http://localhost:8545/rpc"),
			WsURL:       getEnvString("CHAIN_WS_URL", "ws://localhost:8545/events"),
			CallTimeout: callTimeout,
		},
		Refresher: models.RefresherConfig{
			Interval:         refreshInterval,
			EventRetention:   eventRetention,
			CleanupInterval:  cleanupInterval,
			GovernanceParams: paramsFile,
		},
		Params: params,
		Cache: models.CacheConfig{
			Size: getEnvInt("CACHE_SIZE", 1024),
		},
		Metrics: models.MetricsConfig{
			Addr: getEnvString("METRICS_ADDR", ""),
		},
		Wallet: models.WalletConfig{
			Address: getEnvString("WALLET_ADDRESS", ""),
		},
	}

	switch cfg.Chain.Backend {
	case BackendSQLite, BackendRPC:
	default:
		return nil, fmt.Errorf("invalid CHAIN_BACKEND %q: expected %s or %s", cfg.Chain.Backend, BackendSQLite, BackendRPC)
	}
	if cfg.Refresher.Interval <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be positive, got %v", cfg.Refresher.Interval)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
