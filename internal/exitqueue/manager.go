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

package exitqueue

import (
	"context"
	"fmt"
	"time"

	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Manager places locks into the exit queue and pays them out once the configured queue policy
// allows it. Lock state is always read through the ledger, so queue commands share its
// per-position in-flight guard.
type Manager struct {
	ledger         *ledger.Ledger
	feeBasisPoints int64
}

func New(l *ledger.Ledger, feeBasisPoints int64) *Manager {
	if feeBasisPoints < 0 {
		feeBasisPoints = 0
	}
	return &Manager{ledger: l, feeBasisPoints: feeBasisPoints}
}

func (m *Manager) FeeBasisPoints() int64 {
	return m.feeBasisPoints
}

// Enqueued is the outcome of a confirmed EnterQueue. Entry is nil when the command confirmed
// but the follow-up read of the queue failed.
type Enqueued struct {
	Receipt *models.Receipt
	Entry   *models.ExitQueueEntry
}

// Pending reports whether the lock is queued on chain but its entry is not yet known.
func (e *Enqueued) Pending() bool {
	return e.Entry == nil
}

// EnterQueue queues an active lock. The exit fee is fixed at the manager's current rate and
// recorded with the entry.
func (m *Manager) EnterQueue(ctx context.Context, owner, tokenId string) (result *Enqueued, err error) {
	op := string(store.CommandEnterQueue)
	defer func() { m.ledger.Observe(op, owner, tokenId, err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}

	release, err := m.ledger.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	lock, err := m.ledger.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	now := m.ledger.Clock().Now()
	switch {
	case lock.IsQueued():
		return nil, store.StateConflict(op, owner, tokenId,
			fmt.Errorf("%w at position %d", store.ErrAlreadyQueued, lock.ExitQueue.Position))
	case !now.Before(lock.LockEnd):
		return nil, store.StateConflict(op, owner, tokenId,
			fmt.Errorf("%w: withdraw it directly", store.ErrLockExpired))
	case !lock.IsWarmupComplete:
		return nil, store.StateConflict(op, owner, tokenId,
			fmt.Errorf("%w: %v remaining", store.ErrWarmupIncomplete, m.ledger.Gate().Remaining(lock.CreatedAt, now).Round(time.Second)))
	}

	receipt, err := m.ledger.Execute(ctx, store.Submission{
		Command:        store.CommandEnterQueue,
		Owner:          owner,
		TokenId:        tokenId,
		FeeBasisPoints: m.feeBasisPoints,
	})
	if err != nil {
		return nil, err
	}

	result = &Enqueued{Receipt: receipt}
	queued, refreshErr := m.ledger.Lock(ctx, owner, tokenId)
	if refreshErr != nil {
		zap.L().Warn("Lock queued but refresh failed",
			zap.String("owner", owner),
			zap.String("token_id", tokenId),
			zap.String("tx_hash", receipt.Handle),
			zap.Error(refreshErr))
		return result, nil
	}
	result.Entry = queued.ExitQueue
	return result, nil
}

// Withdraw pays out a lock whose queue condition is met, or any expired lock without a fee.
// A lock that is not yet withdrawable is rejected locally and left untouched.
func (m *Manager) Withdraw(ctx context.Context, owner, tokenId string) (result *models.WithdrawalResult, err error) {
	op := string(store.CommandWithdraw)
	defer func() { m.ledger.Observe(op, owner, tokenId, err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}

	release, err := m.ledger.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	lock, err := m.ledger.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	if !lock.CanWithdraw {
		if lock.IsQueued() {
			return nil, store.StateConflict(op, owner, tokenId,
				fmt.Errorf("%w: position %d, estimated ready at %s", store.ErrQueueNotReady,
					lock.ExitQueue.Position, lock.ExitQueue.EstimatedReadyAt.Format(time.RFC3339)))
		}
		return nil, store.StateConflict(op, owner, tokenId,
			fmt.Errorf("%w: lock must enter the exit queue first", store.ErrQueueNotReady))
	}

	expectedFee := decimal.Zero
	if lock.IsQueued() && m.ledger.Clock().Now().Before(lock.LockEnd) {
		expectedFee = queue.Fee(lock.LockedAmount, lock.ExitQueue.ExitFeeBasisPoints)
	}

	receipt, err := m.ledger.Execute(ctx, store.Submission{
		Command: store.CommandWithdraw,
		Owner:   owner,
		TokenId: tokenId,
	})
	if err != nil {
		return nil, err
	}

	result = &models.WithdrawalResult{
		TokenId: tokenId,
		Owner:   owner,
		Amount:  lock.LockedAmount,
		Fee:     expectedFee,
		TxHash:  receipt.Handle,
	}
	// The chain's figures win when it reports them.
	if amount, err := decimal.NewFromString(receipt.Amount); err == nil {
		result.Amount = amount
	}
	if fee, err := decimal.NewFromString(receipt.Fee); err == nil {
		result.Fee = fee
	}
	result.Returned = result.Amount.Sub(result.Fee)

	if _, err := m.ledger.Refresh(ctx, owner); err != nil {
		zap.L().Warn("Withdrawal confirmed but refresh failed", zap.String("owner", owner), zap.Error(err))
	}

	zap.L().Info("Lock withdrawn",
		zap.String("owner", owner),
		zap.String("token_id", tokenId),
		zap.String("amount", result.Amount.String()),
		zap.String("fee", result.Fee.String()),
		zap.String("returned", result.Returned.String()))
	return result, nil
}

// Entries returns owner's queue entries in queue order. Positions are global.
func (m *Manager) Entries(ctx context.Context, owner string) ([]models.ExitQueueEntry, error) {
	book, err := m.ledger.QueueBook(ctx, owner)
	if err != nil {
		return nil, err
	}
	var entries []models.ExitQueueEntry
	for _, entry := range book.Entries(m.ledger.Clock().Now()) {
		if entry.Owner == owner {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Queue returns every entry in the global queue.
func (m *Manager) Queue(ctx context.Context) ([]models.ExitQueueEntry, error) {
	book, err := m.ledger.QueueBook(ctx, "")
	if err != nil {
		return nil, err
	}
	return book.Entries(m.ledger.Clock().Now()), nil
}
