package api

import (
	"context"
	"fmt"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetLocks returns the owner's decorated locks with their power breakdown
func (s *LockService) GetLocks(ctx context.Context, owner string) (models.LockView, error) {
	if owner == "" {
		return models.LockView{}, fmt.Errorf("owner is required")
	}

	view, err := s.ledger.View(ctx, owner)
	if err != nil {
		zap.L().Error("Failed to get locks", zap.String("owner", owner), zap.Error(err))
		return models.LockView{}, fmt.Errorf("failed to retrieve locks: %w", err)
	}
	return view, nil
}

// GetWalletBalance returns the liquid, unlocked token balance
func (s *LockService) GetWalletBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	if owner == "" {
		return decimal.Zero, fmt.Errorf("owner is required")
	}

	result, err := s.ledger.Adapter().Read(ctx, store.ReadRequest{Entity: store.EntityBalance, Owner: owner})
	if err != nil {
		zap.L().Error("Failed to get wallet balance", zap.String("owner", owner), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to retrieve balance: %w", err)
	}
	return result.Balance, nil
}

// Status evaluates the governance prerequisites for an account. Only a malformed request
// fails; unreachable dependencies are reported inside the status.
func (s *LockService) Status(ctx context.Context, req StatusRequest) (models.PrerequisiteStatus, error) {
	if err := s.check(req); err != nil {
		return models.PrerequisiteStatus{}, store.Validation("status", req.Account, "", err)
	}
	minimum := decimal.Zero
	if req.MinimumPower != "" {
		parsed, err := decimal.NewFromString(req.MinimumPower)
		if err != nil || parsed.IsNegative() {
			return models.PrerequisiteStatus{}, store.Validation("status", req.Account, "",
				fmt.Errorf("minimum power %q must be a non-negative number", req.MinimumPower))
		}
		minimum = parsed
	}
	return s.aggregator.Evaluate(ctx, req.Account, minimum, req.RequireWarmupComplete), nil
}
