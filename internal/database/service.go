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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *Service is both a chain adapter and a profile store.
var (
	_ store.ChainAdapter = (*Service)(nil)
	_ store.ProfileStore = (*Service)(nil)
)

// Sentinel errors for database operations
var (
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrProfileExists          = errors.New("profile already exists")
)

// Options configure the chain rules enforced by the devnet.
type Options struct {
	Params       models.GovernanceParams
	Capabilities models.Capabilities
	Clock        *clock.Clock
}

// Service is a single-node SQLite "devnet" chain. Every submission executes in one database
// transaction against the same lock rules a live chain enforces, and produces a receipt plus
// events for subscribers.
type Service struct {
	db     *sql.DB
	clock  *clock.Clock
	params models.GovernanceParams
	caps   models.Capabilities
	calc   *power.Calculator
	gate   *warmup.Gate
	policy queue.Policy

	subMu       sync.RWMutex
	subscribers map[string]map[uint64]func(models.ChainEvent)
	nextSubId   uint64
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, opts Options) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	policy, err := queue.NewPolicy(opts.Params.Queue)
	if err != nil {
		return nil, fmt.Errorf("invalid queue parameters: %w", err)
	}

	zap.L().Info("Opening SQLite devnet", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db, opts, policy)
	if err := service.initSchema(ctx, cfg.SeedProfiles); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Devnet initialized successfully",
		zap.Duration("max_lock_duration", service.params.MaxLockDuration),
		zap.Duration("warmup_period", service.params.WarmupPeriod),
		zap.String("queue_discipline", policy.Name()))
	return service, nil
}

func newService(db *sql.DB, opts Options, policy queue.Policy) *Service {
	c := opts.Clock
	if c == nil {
		c = &clock.Clock{}
	}
	params := opts.Params
	if params.MaxLockDuration <= 0 {
		params.MaxLockDuration = power.DefaultMaxLockDuration
	}
	gate := warmup.NewGate(params.WarmupPeriod)
	return &Service{
		db:          db,
		clock:       c,
		params:      params,
		caps:        opts.Capabilities,
		calc:        power.NewCalculator(params.MaxLockDuration, gate),
		gate:        gate,
		policy:      policy,
		subscribers: make(map[string]map[uint64]func(models.ChainEvent)),
	}
}

func (s *Service) Close() {
	s.subMu.Lock()
	s.subscribers = make(map[string]map[uint64]func(models.ChainEvent))
	s.subMu.Unlock()

	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context, seedProfiles bool) error {
	schema := `
	-- Governance profiles, one per wallet address
	CREATE TABLE IF NOT EXISTS profiles (
		address TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	-- Lock positions; timestamps are unix nanoseconds, amounts decimal strings
	CREATE TABLE IF NOT EXISTS locks (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		amount TEXT NOT NULL,
		lock_end INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		transferable BOOLEAN NOT NULL DEFAULT 0,
		delegated_to TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_locks_owner ON locks(owner);

	-- Global exit queue, ordered by a monotonic sequence
	CREATE TABLE IF NOT EXISTS exit_queue (
		token_id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		sequence INTEGER NOT NULL UNIQUE,
		enqueued_at INTEGER NOT NULL,
		exit_fee_bps INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Power committed to outstanding votes
	CREATE TABLE IF NOT EXISTS vote_commitments (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		proposal_id TEXT NOT NULL,
		power TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(owner, proposal_id)
	);

	-- Liquid balances (hot data) with optimistic locking
	CREATE TABLE IF NOT EXISTS wallet_balances (
		owner TEXT PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL
	);

	-- Submitted commands and their receipts
	CREATE TABLE IF NOT EXISTS submissions (
		handle TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		owner TEXT NOT NULL,
		token_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '',
		fee TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		confirmed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_owner ON submissions(owner);

	-- Double-entry movements between wallets, escrow and treasury
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_submission_id ON journal_entries(submission_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Seed demo profiles if configured to do so
	if seedProfiles {
		profiles := []struct {
			address string
			handle  string
		}{
			{"0x1111111111111111111111111111111111111111", "alice"},
			{"0x2222222222222222222222222222222222222222", "bob"},
			{"0x3333333333333333333333333333333333333333", "carol"},
		}

		for _, p := range profiles {
			_, err := s.db.ExecContext(ctx, queryInsertProfile, p.address, p.handle, s.clock.Now().UnixNano())
			if err != nil {
				zap.L().Error("Failed to insert demo profile", zap.String("handle", p.handle), zap.Error(err))
			} else {
				zap.L().Info("Demo profile created", zap.String("address", p.address), zap.String("handle", p.handle))
			}
		}
	} else {
		zap.L().Info("Skipping demo profile creation (SEED_PROFILES=false)")
	}

	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

// NewInMemory opens a private in-memory devnet. The pool is pinned to one connection because
// every SQLite :memory: connection is a separate database.
func NewInMemory(ctx context.Context, opts Options) (*Service, error) {
	return NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}, opts)
}
