package api

import (
	"context"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"go.uber.org/zap"
)

// CreateLock locks tokens from the owner's wallet
func (s *LockService) CreateLock(ctx context.Context, req CreateLockRequest) (*models.CommandResult, error) {
	command := string(store.CommandCreateLock)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, "", err), nil
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalid(command, req.Owner, "", err), nil
	}

	zap.L().Info("Creating lock",
		zap.String("owner", req.Owner),
		zap.String("amount", amount.String()),
		zap.Duration("duration", req.Duration),
		zap.Bool("transferable", req.Transferable))

	lock, err := s.ledger.CreateLock(ctx, req.Owner, amount, req.Duration, req.Transferable)
	if err != nil {
		return failed(command, req.Owner, "", err), nil
	}
	return lockResult(command, req.Owner, "", lock), nil
}

func (s *LockService) IncreaseAmount(ctx context.Context, req IncreaseAmountRequest) (*models.CommandResult, error) {
	command := string(store.CommandIncreaseAmount)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	lock, err := s.ledger.IncreaseAmount(ctx, req.Owner, req.TokenId, amount)
	if err != nil {
		return failed(command, req.Owner, req.TokenId, err), nil
	}
	return lockResult(command, req.Owner, req.TokenId, lock), nil
}

func (s *LockService) IncreaseDuration(ctx context.Context, req IncreaseDurationRequest) (*models.CommandResult, error) {
	command := string(store.CommandIncreaseDuration)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	lock, err := s.ledger.IncreaseDuration(ctx, req.Owner, req.TokenId, req.NewEnd)
	if err != nil {
		return failed(command, req.Owner, req.TokenId, err), nil
	}
	return lockResult(command, req.Owner, req.TokenId, lock), nil
}

func (s *LockService) Delegate(ctx context.Context, req DelegateRequest) (*models.CommandResult, error) {
	command := string(store.CommandDelegate)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	lock, err := s.ledger.Delegate(ctx, req.Owner, req.TokenId, req.Delegatee)
	if err != nil {
		return failed(command, req.Owner, req.TokenId, err), nil
	}
	return lockResult(command, req.Owner, req.TokenId, lock), nil
}

// Transfer hands the lock to another account. The result carries the recipient's view.
func (s *LockService) Transfer(ctx context.Context, req TransferRequest) (*models.CommandResult, error) {
	command := string(store.CommandTransfer)
	ctx = withRequest(ctx)
	if err := s.check(req); err != nil {
		return invalid(command, req.Owner, req.TokenId, err), nil
	}

	lock, err := s.ledger.Transfer(ctx, req.Owner, req.TokenId, req.Recipient)
	if err != nil {
		return failed(command, req.Owner, req.TokenId, err), nil
	}
	return lockResult(command, req.Owner, req.TokenId, lock), nil
}

// lockResult reports success even when the post-command refresh came back empty
func lockResult(command, owner, tokenId string, lock *models.TokenLock) *models.CommandResult {
	result := &models.CommandResult{
		Success: true,
		Command: command,
		Owner:   owner,
		TokenId: tokenId,
		Lock:    lock,
	}
	if lock != nil {
		result.TokenId = lock.Id
	}
	return result
}
