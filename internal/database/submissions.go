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
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const exitQueueCounter = "exit_queue"

// revertError marks a rule violation: the submission is recorded as reverted instead of failing.
type revertError struct {
	err error
}

func (e *revertError) Error() string { return e.err.Error() }
func (e *revertError) Unwrap() error { return e.err }

func revert(err error) error {
	return &revertError{err: err}
}

type outcome struct {
	tokenId string
	amount  decimal.Decimal
	fee     decimal.Decimal
	events  []models.ChainEvent
}

// Submit executes sub in a single database transaction. Rule violations roll back every change
// and produce a reverted receipt; only infrastructure failures are returned as errors.
func (s *Service) Submit(ctx context.Context, sub store.Submission) (store.Handle, error) {
	handle := uuid.New().String()
	now := s.clock.Now()

	zap.L().Info("Executing submission",
		zap.String("handle", handle),
		zap.String("command", string(sub.Command)),
		zap.String("owner", sub.Owner),
		zap.String("token_id", sub.TokenId))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := s.execute(ctx, tx, handle, sub, now)
	if err != nil {
		var rule *revertError
		if !errors.As(err, &rule) {
			return "", fmt.Errorf("failed to execute %s: %w", sub.Command, err)
		}
		if err := tx.Rollback(); err != nil {
			return "", fmt.Errorf("failed to roll back reverted submission: %w", err)
		}
		_, err = s.db.ExecContext(ctx, queryInsertSubmission,
			handle, string(sub.Command), sub.Owner, sub.TokenId, models.ReceiptReverted, rule.Error(),
			"", "", now.UnixNano(), now.UnixNano())
		if err != nil {
			return "", fmt.Errorf("failed to record reverted submission: %w", err)
		}
		zap.L().Warn("Submission reverted",
			zap.String("handle", handle),
			zap.String("command", string(sub.Command)),
			zap.String("owner", sub.Owner),
			zap.String("reason", rule.Error()))
		return store.Handle(handle), nil
	}

	_, err = tx.ExecContext(ctx, queryInsertSubmission,
		handle, string(sub.Command), sub.Owner, result.tokenId, models.ReceiptConfirmed, "",
		result.amount.String(), result.fee.String(), now.UnixNano(), now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to record submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Submission confirmed",
		zap.String("handle", handle),
		zap.String("command", string(sub.Command)),
		zap.String("token_id", result.tokenId))

	s.publish(result.events)
	return store.Handle(handle), nil
}

// WaitForConfirmation returns immediately: devnet submissions are final once Submit returns.
func (s *Service) WaitForConfirmation(ctx context.Context, handle store.Handle) (*models.Receipt, error) {
	var receipt models.Receipt
	var confirmedAt int64
	err := s.db.QueryRowContext(ctx, queryGetSubmission, string(handle)).Scan(
		&receipt.Handle, &receipt.Command, &receipt.TokenId, &receipt.Status, &receipt.Reason,
		&receipt.Amount, &receipt.Fee, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Validation("wait_for_confirmation", "", "", fmt.Errorf("%w: %s", store.ErrUnknownHandle, handle))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	receipt.ConfirmedAt = fromNanos(confirmedAt)
	return &receipt, nil
}

func (s *Service) execute(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	if sub.Owner == "" {
		return nil, revert(store.ErrInvalidOwner)
	}

	switch sub.Command {
	case store.CommandCreateLock:
		return s.createLock(ctx, tx, handle, sub, now)
	case store.CommandIncreaseAmount:
		return s.increaseAmount(ctx, tx, handle, sub, now)
	case store.CommandIncreaseDuration:
		return s.increaseDuration(ctx, tx, handle, sub, now)
	case store.CommandEnterQueue:
		return s.enterQueue(ctx, tx, handle, sub, now)
	case store.CommandWithdraw:
		return s.withdraw(ctx, tx, handle, sub, now)
	case store.CommandDelegate:
		return s.delegate(ctx, tx, handle, sub, now)
	case store.CommandTransfer:
		return s.transfer(ctx, tx, handle, sub, now)
	default:
		return nil, revert(fmt.Errorf("unknown command %q", sub.Command))
	}
}

func (s *Service) createLock(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	if !sub.Amount.IsPositive() || !sub.Amount.IsInteger() {
		return nil, revert(store.ErrInvalidAmount)
	}
	if err := s.calc.ValidateDuration(sub.Duration); err != nil {
		return nil, revert(err)
	}

	if _, err := adjustWalletBalance(ctx, tx, sub.Owner, sub.Amount.Neg(), now.UnixNano()); err != nil {
		return nil, asRevert(err)
	}

	tokenId := uuid.New().String()
	lockEnd := now.Add(sub.Duration)
	_, err := tx.ExecContext(ctx, queryInsertLock,
		tokenId, sub.Owner, sub.Amount.String(), lockEnd.UnixNano(), now.UnixNano(), sub.Transferable)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lock: %w", err)
	}

	legs := []journalLeg{
		{accountEscrow, tokenId, sub.Amount, decimal.Zero},
		{accountWallet, sub.Owner, decimal.Zero, sub.Amount},
	}
	if err := addJournalEntries(ctx, tx, handle, legs, now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	return &outcome{
		tokenId: tokenId,
		amount:  sub.Amount,
		fee:     decimal.Zero,
		events:  []models.ChainEvent{newEvent(models.EventLockCreated, sub.Owner, tokenId, handle, now)},
	}, nil
}

func (s *Service) increaseAmount(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	if !sub.Amount.IsPositive() || !sub.Amount.IsInteger() {
		return nil, revert(store.ErrInvalidAmount)
	}
	lock, err := s.activeLock(ctx, tx, sub, now)
	if err != nil {
		return nil, err
	}

	if _, err := adjustWalletBalance(ctx, tx, sub.Owner, sub.Amount.Neg(), now.UnixNano()); err != nil {
		return nil, asRevert(err)
	}

	newAmount := lock.Amount.Add(sub.Amount)
	if err := updateLock(ctx, tx, queryUpdateLockAmount, newAmount.String(), lock); err != nil {
		return nil, err
	}

	legs := []journalLeg{
		{accountEscrow, lock.Id, sub.Amount, decimal.Zero},
		{accountWallet, sub.Owner, decimal.Zero, sub.Amount},
	}
	if err := addJournalEntries(ctx, tx, handle, legs, now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	return &outcome{
		tokenId: lock.Id,
		amount:  newAmount,
		fee:     decimal.Zero,
		events:  []models.ChainEvent{newEvent(models.EventAmountIncreased, sub.Owner, lock.Id, handle, now)},
	}, nil
}

func (s *Service) increaseDuration(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	lock, err := s.activeLock(ctx, tx, sub, now)
	if err != nil {
		return nil, err
	}
	if !sub.LockEnd.After(lock.LockEnd) {
		return nil, revert(store.ErrInvalidLockEnd)
	}
	if sub.LockEnd.Sub(lock.CreatedAt) > s.calc.MaxDuration() {
		return nil, revert(store.ErrInvalidDuration)
	}

	if err := updateLock(ctx, tx, queryUpdateLockEnd, sub.LockEnd.UnixNano(), lock); err != nil {
		return nil, err
	}

	return &outcome{
		tokenId: lock.Id,
		amount:  lock.Amount,
		fee:     decimal.Zero,
		events:  []models.ChainEvent{newEvent(models.EventDurationIncrease, sub.Owner, lock.Id, handle, now)},
	}, nil
}

func (s *Service) enterQueue(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	lock, err := ownedLock(ctx, tx, sub)
	if err != nil {
		return nil, err
	}

	record, err := getQueueRecord(ctx, tx, lock.Id)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return nil, revert(store.ErrAlreadyQueued)
	}
	if !now.Before(lock.LockEnd) {
		return nil, revert(store.ErrLockExpired)
	}
	if !s.gate.IsComplete(lock.CreatedAt, now) {
		return nil, revert(store.ErrWarmupIncomplete)
	}

	// The caller states the highest fee it accepts.
	fee := s.params.ExitFeeBasisPoints
	if sub.FeeBasisPoints < fee {
		return nil, revert(fmt.Errorf("exit fee of %d bps exceeds accepted %d bps", fee, sub.FeeBasisPoints))
	}

	var sequence int64
	if err := tx.QueryRowContext(ctx, queryNextCounter, exitQueueCounter).Scan(&sequence); err != nil {
		return nil, fmt.Errorf("failed to allocate queue sequence: %w", err)
	}
	_, err = tx.ExecContext(ctx, queryInsertQueueRecord, lock.Id, lock.Owner, sequence, now.UnixNano(), fee)
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue record: %w", err)
	}

	return &outcome{
		tokenId: lock.Id,
		amount:  lock.Amount,
		fee:     queue.Fee(lock.Amount, fee),
		events:  []models.ChainEvent{newEvent(models.EventQueueEntered, sub.Owner, lock.Id, handle, now)},
	}, nil
}

func (s *Service) withdraw(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	lock, err := ownedLock(ctx, tx, sub)
	if err != nil {
		return nil, err
	}

	record, err := getQueueRecord(ctx, tx, lock.Id)
	if err != nil {
		return nil, err
	}

	fee := decimal.Zero
	expired := !now.Before(lock.LockEnd)
	switch {
	case expired:
		// Expired locks leave without the queue and without a fee.
	case record == nil:
		return nil, revert(store.ErrQueueNotReady)
	default:
		records, err := getQueue(ctx, tx)
		if err != nil {
			return nil, err
		}
		book := queue.NewBook(s.policy, records)
		entry, _ := book.Entry(lock.Id, now)
		if !entry.Ready {
			return nil, revert(store.ErrQueueNotReady)
		}
		fee = queue.Fee(lock.Amount, record.ExitFeeBasisPoints)
	}

	if record != nil {
		if _, err := tx.ExecContext(ctx, queryDeleteQueueRecord, lock.Id); err != nil {
			return nil, fmt.Errorf("failed to delete queue record: %w", err)
		}
	}
	if err := updateLock(ctx, tx, queryDeleteLock, nil, lock); err != nil {
		return nil, err
	}

	returned := lock.Amount.Sub(fee)
	if _, err := adjustWalletBalance(ctx, tx, lock.Owner, returned, now.UnixNano()); err != nil {
		return nil, err
	}

	legs := []journalLeg{
		{accountWallet, lock.Owner, returned, decimal.Zero},
		{accountEscrow, lock.Id, decimal.Zero, lock.Amount},
	}
	if fee.IsPositive() {
		legs = append(legs, journalLeg{accountTreasury, feesId, fee, decimal.Zero})
	}
	if err := addJournalEntries(ctx, tx, handle, legs, now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	return &outcome{
		tokenId: lock.Id,
		amount:  lock.Amount,
		fee:     fee,
		events:  []models.ChainEvent{newEvent(models.EventWithdrawn, lock.Owner, lock.Id, handle, now)},
	}, nil
}

func (s *Service) delegate(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	if !s.caps.Delegation {
		return nil, revert(store.ErrCapabilityUnsupported)
	}
	lock, err := ownedLock(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if err := notQueued(ctx, tx, lock.Id); err != nil {
		return nil, err
	}

	// An empty recipient removes the delegation.
	if err := updateLock(ctx, tx, queryUpdateLockDelegate, sub.Recipient, lock); err != nil {
		return nil, err
	}

	return &outcome{
		tokenId: lock.Id,
		amount:  lock.Amount,
		fee:     decimal.Zero,
		events:  []models.ChainEvent{newEvent(models.EventDelegated, sub.Owner, lock.Id, handle, now)},
	}, nil
}

func (s *Service) transfer(ctx context.Context, tx *sql.Tx, handle string, sub store.Submission, now time.Time) (*outcome, error) {
	if !s.caps.Transfers {
		return nil, revert(store.ErrCapabilityUnsupported)
	}
	if sub.Recipient == "" || sub.Recipient == sub.Owner {
		return nil, revert(store.ErrInvalidOwner)
	}
	lock, err := ownedLock(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if !lock.Transferable {
		return nil, revert(store.ErrNotTransferable)
	}
	if err := notQueued(ctx, tx, lock.Id); err != nil {
		return nil, err
	}

	if err := updateLock(ctx, tx, queryUpdateLockOwner, sub.Recipient, lock); err != nil {
		return nil, err
	}

	// Both parties see the change.
	return &outcome{
		tokenId: lock.Id,
		amount:  lock.Amount,
		fee:     decimal.Zero,
		events: []models.ChainEvent{
			newEvent(models.EventTransferred, sub.Owner, lock.Id, handle, now),
			newEvent(models.EventTransferred, sub.Recipient, lock.Id, handle, now),
		},
	}, nil
}

func ownedLock(ctx context.Context, tx *sql.Tx, sub store.Submission) (*models.RawLock, error) {
	lock, err := getLock(ctx, tx, sub.TokenId)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.Owner != sub.Owner {
		return nil, revert(store.ErrLockNotFound)
	}
	return lock, nil
}

func notQueued(ctx context.Context, tx *sql.Tx, tokenId string) error {
	record, err := getQueueRecord(ctx, tx, tokenId)
	if err != nil {
		return err
	}
	if record != nil {
		return revert(store.ErrLockQueued)
	}
	return nil
}

// activeLock loads the lock named by sub and requires it to be owned, unqueued, past warmup
// and unexpired.
func (s *Service) activeLock(ctx context.Context, tx *sql.Tx, sub store.Submission, now time.Time) (*models.RawLock, error) {
	lock, err := ownedLock(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if err := notQueued(ctx, tx, lock.Id); err != nil {
		return nil, err
	}
	if !now.Before(lock.LockEnd) {
		return nil, revert(store.ErrLockExpired)
	}
	if !s.gate.IsComplete(lock.CreatedAt, now) {
		return nil, revert(store.ErrLockNotActive)
	}
	return lock, nil
}

// updateLock runs an optimistic-locked statement whose trailing arguments are (id, version).
// A nil value runs the statement with only those two arguments.
func updateLock(ctx context.Context, tx *sql.Tx, query string, value any, lock *models.RawLock) error {
	args := []any{lock.Id, lock.Version}
	if value != nil {
		args = append([]any{value}, args...)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update lock: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("lock update failed - %w", ErrConcurrentModification)
	}
	return nil
}

func asRevert(err error) error {
	if errors.Is(err, store.ErrInsufficientBalance) {
		return revert(err)
	}
	return err
}

func newEvent(name, owner, tokenId, handle string, at time.Time) models.ChainEvent {
	return models.ChainEvent{
		Id:      uuid.New().String(),
		Name:    name,
		Owner:   owner,
		TokenId: tokenId,
		Handle:  handle,
		At:      at,
	}
}
