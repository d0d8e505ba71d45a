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

package api

import (
	"context"
	"fmt"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"go.uber.org/zap"
)

// EnterQueue places an active lock into the exit queue at the current fee rate
func (s *LockService) EnterQueue(ctx context.Context, req PositionRequest) (*models.CommandResult, error) {
	command := string(store.CommandEnterQueue)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	enqueued, err := s.queue.EnterQueue(ctx, req.Owner, req.TokenId)
	if err != nil {
		return failed(command, req.Owner, req.TokenId, err), nil
	}

	if enqueued.Pending() {
		zap.L().Warn("Lock entered exit queue, entry not yet readable",
			zap.String("owner", req.Owner),
			zap.String("token_id", req.TokenId),
			zap.String("tx_hash", enqueued.Receipt.Handle))
	} else {
		zap.L().Info("Lock entered exit queue",
			zap.String("owner", req.Owner),
			zap.String("token_id", req.TokenId),
			zap.Int("position", enqueued.Entry.Position),
			zap.Time("estimated_ready_at", enqueued.Entry.EstimatedReadyAt))
	}
	return &models.CommandResult{
		Success: true,
		Command: command,
		Owner:   req.Owner,
		TokenId: req.TokenId,
		Entry:   enqueued.Entry,
		TxHash:  enqueued.Receipt.Handle,
		Pending: enqueued.Pending(),
	}, nil
}

// Withdraw pays out a lock once its queue condition is met, or an expired lock at no fee
func (s *LockService) Withdraw(ctx context.Context, req PositionRequest) (*models.CommandResult, error) {
	command := string(store.CommandWithdraw)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	withdrawal, err := s.queue.Withdraw(ctx, req.Owner, req.TokenId)
	if err != nil {
		if store.IsStateConflict(err) {
			zap.L().Info("Withdrawal not yet possible",
				zap.String("owner", req.Owner),
				zap.String("token_id", req.TokenId),
				zap.Error(err))
		}
		return failed(command, req.Owner, req.TokenId, err), nil
	}

	return &models.CommandResult{
		Success:    true,
		Command:    command,
		Owner:      req.Owner,
		TokenId:    req.TokenId,
		Withdrawal: withdrawal,
	}, nil
}

// ExitQueue lists the global queue, or only owner's entries when owner is set
func (s *LockService) ExitQueue(ctx context.Context, owner string) ([]models.ExitQueueEntry, error) {
	var (
		entries []models.ExitQueueEntry
		err     error
	)
	if owner == "" {
		entries, err = s.queue.Queue(ctx)
	} else {
		entries, err = s.queue.Entries(ctx, owner)
	}
	if err != nil {
		zap.L().Error("Failed to read exit queue", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve exit queue: %w", err)
	}
	return entries, nil
}
