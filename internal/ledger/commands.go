package ledger

import (
	"context"
	"fmt"
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The lock commands validate locally, submit, wait for confirmation and refresh. The returned
// lock is nil when the command confirmed but the follow-up refresh failed; the background
// refresher picks the change up on its next pass.

func (l *Ledger) CreateLock(ctx context.Context, owner string, amount decimal.Decimal, duration time.Duration, transferable bool) (lock *models.TokenLock, err error) {
	op := string(store.CommandCreateLock)
	defer func() { l.Observe(op, owner, "", err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, "", store.ErrInvalidOwner)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, store.Validation(op, owner, "", err)
	}
	if err := l.calc.ValidateDuration(duration); err != nil {
		return nil, store.Validation(op, owner, "", fmt.Errorf("%w: %v not in (0, %v]", err, duration, l.calc.MaxDuration()))
	}

	release, err := l.Begin(op, owner, "")
	if err != nil {
		return nil, err
	}
	defer release()

	receipt, err := l.Execute(ctx, store.Submission{
		Command:      store.CommandCreateLock,
		Owner:        owner,
		Amount:       amount,
		Duration:     duration,
		Transferable: transferable,
	})
	if err != nil {
		return nil, err
	}
	return l.lockAfter(ctx, owner, receipt.TokenId), nil
}

func (l *Ledger) IncreaseAmount(ctx context.Context, owner, tokenId string, amount decimal.Decimal) (lock *models.TokenLock, err error) {
	op := string(store.CommandIncreaseAmount)
	defer func() { l.Observe(op, owner, tokenId, err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, store.Validation(op, owner, tokenId, err)
	}

	release, err := l.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := l.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	if err := l.requireIncreasable(op, current); err != nil {
		return nil, err
	}

	if _, err := l.Execute(ctx, store.Submission{
		Command: store.CommandIncreaseAmount,
		Owner:   owner,
		TokenId: tokenId,
		Amount:  amount,
	}); err != nil {
		return nil, err
	}
	return l.lockAfter(ctx, owner, tokenId), nil
}

func (l *Ledger) IncreaseDuration(ctx context.Context, owner, tokenId string, newEnd time.Time) (lock *models.TokenLock, err error) {
	op := string(store.CommandIncreaseDuration)
	defer func() { l.Observe(op, owner, tokenId, err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}
	if newEnd.IsZero() {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidLockEnd)
	}

	release, err := l.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := l.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	if err := l.requireIncreasable(op, current); err != nil {
		return nil, err
	}
	if !newEnd.After(current.LockEnd) {
		return nil, store.Validation(op, owner, tokenId,
			fmt.Errorf("%w: %s is not after current end %s", store.ErrInvalidLockEnd, newEnd.Format(time.RFC3339), current.LockEnd.Format(time.RFC3339)))
	}
	if newEnd.Sub(current.CreatedAt) > l.calc.MaxDuration() {
		return nil, store.Validation(op, owner, tokenId,
			fmt.Errorf("%w: lock would span more than %v", store.ErrInvalidDuration, l.calc.MaxDuration()))
	}

	if _, err := l.Execute(ctx, store.Submission{
		Command: store.CommandIncreaseDuration,
		Owner:   owner,
		TokenId: tokenId,
		LockEnd: newEnd,
	}); err != nil {
		return nil, err
	}
	return l.lockAfter(ctx, owner, tokenId), nil
}

// Delegate points the lock's voting power at delegatee; an empty delegatee removes the delegation.
func (l *Ledger) Delegate(ctx context.Context, owner, tokenId, delegatee string) (lock *models.TokenLock, err error) {
	op := string(store.CommandDelegate)
	defer func() { l.Observe(op, owner, tokenId, err) }()

	if owner == "" {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}
	caps, err := l.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	if !caps.Delegation {
		return nil, store.Validation(op, owner, tokenId, store.ErrCapabilityUnsupported)
	}

	release, err := l.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := l.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	if current.IsQueued() {
		return nil, store.StateConflict(op, owner, tokenId, store.ErrLockQueued)
	}

	if _, err := l.Execute(ctx, store.Submission{
		Command:   store.CommandDelegate,
		Owner:     owner,
		TokenId:   tokenId,
		Recipient: delegatee,
	}); err != nil {
		return nil, err
	}
	return l.lockAfter(ctx, owner, tokenId), nil
}

// Transfer moves the lock to recipient. The returned lock is the recipient's view of it, with
// any delegation cleared.
func (l *Ledger) Transfer(ctx context.Context, owner, tokenId, recipient string) (lock *models.TokenLock, err error) {
	op := string(store.CommandTransfer)
	defer func() { l.Observe(op, owner, tokenId, err) }()

	if owner == "" || recipient == "" || recipient == owner {
		return nil, store.Validation(op, owner, tokenId, store.ErrInvalidOwner)
	}
	caps, err := l.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	if !caps.Transfers {
		return nil, store.Validation(op, owner, tokenId, store.ErrCapabilityUnsupported)
	}

	release, err := l.Begin(op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := l.Lookup(ctx, op, owner, tokenId)
	if err != nil {
		return nil, err
	}
	if !current.Transferable {
		return nil, store.StateConflict(op, owner, tokenId, store.ErrNotTransferable)
	}
	if current.IsQueued() {
		return nil, store.StateConflict(op, owner, tokenId, store.ErrLockQueued)
	}

	if _, err := l.Execute(ctx, store.Submission{
		Command:   store.CommandTransfer,
		Owner:     owner,
		TokenId:   tokenId,
		Recipient: recipient,
	}); err != nil {
		return nil, err
	}
	l.Invalidate(owner)
	return l.lockAfter(ctx, recipient, tokenId), nil
}

// Execute submits sub, waits for its receipt and drops the affected cached snapshots. Callers
// are expected to have validated sub and claimed the position with Begin.
func (l *Ledger) Execute(ctx context.Context, sub store.Submission) (*models.Receipt, error) {
	op := string(sub.Command)
	if cc := models.GetCommandContext(ctx); cc != nil {
		zap.L().Debug("Submitting command",
			zap.String("command", op),
			zap.String("owner", sub.Owner),
			zap.String("token_id", sub.TokenId),
			zap.String("request_id", cc.RequestId),
			zap.String("source", cc.Source))
	}

	submitCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	handle, err := l.adapter.Submit(submitCtx, sub)
	cancel()
	if err != nil {
		err = store.Classify(op, sub.Owner, sub.TokenId, err)
		l.metrics.AdapterError(op, store.KindOf(err).String())
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	receipt, err := l.adapter.WaitForConfirmation(waitCtx, handle)
	cancel()
	if err != nil {
		err = store.Classify(op, sub.Owner, sub.TokenId, err)
		l.metrics.AdapterError(op, store.KindOf(err).String())
		return nil, err
	}

	l.Invalidate(sub.Owner)
	if sub.Recipient != "" && sub.Command == store.CommandTransfer {
		l.Invalidate(sub.Recipient)
	}

	if receipt.Status != models.ReceiptConfirmed {
		return receipt, store.Reverted(op, sub.Owner, sub.TokenId, fmt.Errorf("%w: %s", store.ErrReverted, receipt.Reason))
	}
	return receipt, nil
}

// requireIncreasable allows top-ups only on active locks.
func (l *Ledger) requireIncreasable(op string, lock models.TokenLock) error {
	now := l.clock.Now()
	switch {
	case lock.IsQueued():
		return store.StateConflict(op, lock.Owner, lock.Id, store.ErrLockQueued)
	case !now.Before(lock.LockEnd):
		return store.StateConflict(op, lock.Owner, lock.Id, store.ErrLockExpired)
	case !lock.IsWarmupComplete:
		return store.StateConflict(op, lock.Owner, lock.Id,
			fmt.Errorf("%w: warmup ends in %v", store.ErrLockNotActive, l.gate.Remaining(lock.CreatedAt, now).Round(time.Second)))
	}
	return nil
}

func (l *Ledger) lockAfter(ctx context.Context, owner, tokenId string) *models.TokenLock {
	locks, err := l.Refresh(ctx, owner)
	if err != nil {
		zap.L().Warn("Command confirmed but refresh failed",
			zap.String("owner", owner),
			zap.String("token_id", tokenId),
			zap.Error(err))
		return nil
	}
	for _, lock := range locks {
		if lock.Id == tokenId {
			return &lock
		}
	}
	return nil
}

// Observe logs and counts the outcome of a command.
func (l *Ledger) Observe(op, owner, tokenId string, err error) {
	if err == nil {
		l.metrics.Command(op, "success")
		zap.L().Info("Command confirmed",
			zap.String("command", op),
			zap.String("owner", owner),
			zap.String("token_id", tokenId))
		return
	}
	l.metrics.Command(op, store.KindOf(err).String())
	zap.L().Warn("Command failed",
		zap.String("command", op),
		zap.String("owner", owner),
		zap.String("token_id", tokenId),
		zap.String("kind", store.KindOf(err).String()),
		zap.Error(err))
}

// ValidateAmount requires a positive whole number of base units.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return store.ErrInvalidAmount
	}
	if !amount.IsInteger() {
		return fmt.Errorf("%w: %s is not a whole number of base units", store.ErrInvalidAmount, amount)
	}
	return nil
}
