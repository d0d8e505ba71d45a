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

// Read serves every readable entity straight from the database.
func (s *Service) Read(ctx context.Context, req store.ReadRequest) (*store.ReadResult, error) {
	zap.L().Debug("Reading chain entity",
		zap.String("entity", string(req.Entity)),
		zap.String("owner", req.Owner),
		zap.String("token_id", req.TokenId))

	switch req.Entity {
	case store.EntityLocks:
		locks, err := s.readLocks(ctx, req)
		if err != nil {
			return nil, err
		}
		return &store.ReadResult{Locks: locks}, nil

	case store.EntityExitQueue:
		records, err := getQueue(ctx, s.db)
		if err != nil {
			return nil, err
		}
		return &store.ReadResult{Queue: records}, nil

	case store.EntityPowerUsed:
		if req.Owner == "" {
			return nil, store.Validation("read", "", "", store.ErrInvalidOwner)
		}
		used, err := s.powerUsed(ctx, req.Owner)
		if err != nil {
			return nil, err
		}
		return &store.ReadResult{PowerUsed: used}, nil

	case store.EntityCapabilities:
		return &store.ReadResult{Capabilities: s.caps}, nil

	case store.EntityBalance:
		if req.Owner == "" {
			return nil, store.Validation("read", "", "", store.ErrInvalidOwner)
		}
		balance, err := s.GetBalance(ctx, req.Owner)
		if err != nil {
			return nil, err
		}
		return &store.ReadResult{Balance: balance}, nil

	default:
		return nil, store.Validation("read", req.Owner, req.TokenId, fmt.Errorf("unknown entity %q", req.Entity))
	}
}

func (s *Service) readLocks(ctx context.Context, req store.ReadRequest) ([]models.RawLock, error) {
	if req.TokenId != "" {
		lock, err := getLock(ctx, s.db, req.TokenId)
		if err != nil {
			return nil, err
		}
		if lock == nil || (req.Owner != "" && lock.Owner != req.Owner) {
			return []models.RawLock{}, nil
		}
		return []models.RawLock{*lock}, nil
	}
	if req.Owner == "" {
		return nil, store.Validation("read", "", "", store.ErrInvalidOwner)
	}

	rows, err := s.db.QueryContext(ctx, queryGetOwnerLocks, req.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query locks: %w", err)
	}
	defer closeRows(rows)

	locks := []models.RawLock{}
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, *lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lock rows: %w", err)
	}
	return locks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*models.RawLock, error) {
	var lock models.RawLock
	var amountStr string
	var lockEnd, createdAt int64
	err := row.Scan(&lock.Id, &lock.Owner, &amountStr, &lockEnd, &createdAt,
		&lock.Transferable, &lock.DelegatedTo, &lock.Version)
	if err != nil {
		return nil, err
	}
	lock.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock amount '%s': %w", amountStr, err)
	}
	lock.LockEnd = fromNanos(lockEnd)
	lock.CreatedAt = fromNanos(createdAt)
	return &lock, nil
}

// getLock returns nil when no lock has the given id.
func getLock(ctx context.Context, q queryer, tokenId string) (*models.RawLock, error) {
	lock, err := scanLock(q.QueryRowContext(ctx, queryGetLock, tokenId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	return lock, nil
}

func getQueue(ctx context.Context, q queryer) ([]models.QueueRecord, error) {
	rows, err := q.QueryContext(ctx, queryGetQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit queue: %w", err)
	}
	defer closeRows(rows)

	records := []models.QueueRecord{}
	for rows.Next() {
		record, err := scanQueueRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exit queue rows: %w", err)
	}
	return records, nil
}

func scanQueueRecord(row rowScanner) (*models.QueueRecord, error) {
	var record models.QueueRecord
	var enqueuedAt int64
	err := row.Scan(&record.TokenId, &record.Owner, &record.Sequence, &enqueuedAt, &record.ExitFeeBasisPoints)
	if err != nil {
		return nil, err
	}
	record.EnqueuedAt = fromNanos(enqueuedAt)
	return &record, nil
}

// getQueueRecord returns nil when tokenId is not queued.
func getQueueRecord(ctx context.Context, q queryer, tokenId string) (*models.QueueRecord, error) {
	record, err := scanQueueRecord(q.QueryRowContext(ctx, queryGetQueueRecord, tokenId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue record: %w", err)
	}
	return record, nil
}

func (s *Service) powerUsed(ctx context.Context, owner string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCommitments, owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query vote commitments: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var powerStr string
		if err := rows.Scan(&powerStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan vote commitment: %w", err)
		}
		power, err := decimal.NewFromString(powerStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse committed power '%s': %w", powerStr, err)
		}
		total = total.Add(power)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating vote commitments: %w", err)
	}
	return total, nil
}

// CommitPower records power committed by owner to a proposal, replacing any earlier commitment
// to the same proposal. Devnet only: a live chain derives this from cast votes.
func (s *Service) CommitPower(ctx context.Context, owner, proposalId string, power decimal.Decimal) error {
	if owner == "" {
		return store.ErrInvalidOwner
	}
	if power.IsNegative() {
		return store.ErrInvalidAmount
	}
	_, err := s.db.ExecContext(ctx, queryInsertCommitment,
		uuid.New().String(), owner, proposalId, power.String(), s.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to commit power: %w", err)
	}
	zap.L().Info("Committed voting power",
		zap.String("owner", owner),
		zap.String("proposal_id", proposalId),
		zap.String("power", power.String()))
	return nil
}

func (s *Service) ReleasePower(ctx context.Context, owner, proposalId string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteCommitment, owner, proposalId); err != nil {
		return fmt.Errorf("failed to release power: %w", err)
	}
	return nil
}
