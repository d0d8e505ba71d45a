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

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetBalance returns the liquid balance of owner; accounts never funded read as zero.
func (s *Service) GetBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	balance, err := getWalletBalance(ctx, s.db, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Balance, nil
}

// Mint credits amount to owner's wallet from the treasury. Devnet only.
func (s *Service) Mint(ctx context.Context, owner string, amount decimal.Decimal) (decimal.Decimal, error) {
	if owner == "" {
		return decimal.Zero, store.ErrInvalidOwner
	}
	if !amount.IsPositive() {
		return decimal.Zero, store.ErrInvalidAmount
	}

	zap.L().Info("Minting tokens", zap.String("owner", owner), zap.String("amount", amount.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := adjustWalletBalance(ctx, tx, owner, amount, s.clock.Now().UnixNano())
	if err != nil {
		return decimal.Zero, err
	}

	mintId := uuid.New().String()
	legs := []journalLeg{
		{accountWallet, owner, amount, decimal.Zero},
		{accountTreasury, supplyId, decimal.Zero, amount},
	}
	if err := addJournalEntries(ctx, tx, mintId, legs, s.clock.Now().UnixNano()); err != nil {
		return decimal.Zero, fmt.Errorf("failed to add journal entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Mint processed successfully",
		zap.String("owner", owner),
		zap.String("new_balance", newBalance.String()))
	return newBalance, nil
}

func getWalletBalance(ctx context.Context, q queryer, owner string) (*models.WalletBalance, error) {
	var balanceStr string
	var version, updatedAt int64
	err := q.QueryRowContext(ctx, queryGetWalletBalance, owner).Scan(&balanceStr, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.WalletBalance{Owner: owner, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet balance '%s': %w", balanceStr, err)
	}
	return &models.WalletBalance{
		Owner:     owner,
		Balance:   balance,
		Version:   version,
		UpdatedAt: fromNanos(updatedAt),
	}, nil
}

// adjustWalletBalance applies delta to owner's balance with optimistic locking. A debit that
// would take the balance below zero fails with ErrInsufficientBalance.
func adjustWalletBalance(ctx context.Context, tx *sql.Tx, owner string, delta decimal.Decimal, now int64) (decimal.Decimal, error) {
	current, err := getWalletBalance(ctx, tx, owner)
	if err != nil {
		return decimal.Zero, err
	}

	version := current.Version
	if version == 0 {
		if _, err := tx.ExecContext(ctx, queryInsertWalletBalance, owner, now); err != nil {
			return decimal.Zero, fmt.Errorf("failed to create wallet balance: %w", err)
		}
		version = 1
	}

	newBalance := current.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, store.ErrInsufficientBalance
	}

	result, err := tx.ExecContext(ctx, queryUpdateWalletBalance, newBalance.String(), now, owner, version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return decimal.Zero, fmt.Errorf("balance update failed - %w", ErrConcurrentModification)
	}
	return newBalance, nil
}
