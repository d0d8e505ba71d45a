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

package prerequisite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LockSource serves lock views to the aggregator. A view with Loading set is treated as not
// yet known.
type LockSource interface {
	LockView(ctx context.Context, owner string) (models.LockView, error)
}

// LedgerSource refreshes from chain on every call.
type LedgerSource struct {
	Ledger *ledger.Ledger
}

func (s LedgerSource) LockView(ctx context.Context, owner string) (models.LockView, error) {
	return s.Ledger.View(ctx, owner)
}

// Aggregator composes wallet, profile and lock state into a single gating verdict.
type Aggregator struct {
	wallet   store.WalletStore
	profiles store.ProfileStore
	locks    LockSource
	gate     *warmup.Gate
	clock    *clock.Clock
}

func New(wallet store.WalletStore, profiles store.ProfileStore, locks LockSource, gate *warmup.Gate, c *clock.Clock) *Aggregator {
	if gate == nil {
		gate = warmup.NewGate(warmup.DefaultPeriod)
	}
	if c == nil {
		c = &clock.Clock{}
	}
	return &Aggregator{wallet: wallet, profiles: profiles, locks: locks, gate: gate, clock: c}
}

type fetched struct {
	wallet     models.ConnectionStatus
	walletErr  error
	profile    models.ProfileStatus
	profileErr error
	view       models.LockView
	viewErr    error
}

// Evaluate never fails: a dependency that errors is reported as unavailable, and one that is
// still loading turns every derived requirement to loading. An empty account evaluates the
// connected wallet's address.
func (a *Aggregator) Evaluate(ctx context.Context, account string, minimumPower decimal.Decimal, requireWarmupComplete bool) models.PrerequisiteStatus {
	now := a.clock.Now()
	var f fetched

	walletFetched := false
	if account == "" {
		f.wallet, f.walletErr = a.wallet.GetConnectionStatus(ctx)
		walletFetched = true
		if f.walletErr == nil && f.wallet.Connected {
			account = f.wallet.Address
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if !walletFetched {
		g.Go(func() error {
			f.wallet, f.walletErr = a.wallet.GetConnectionStatus(gctx)
			return nil
		})
	}
	if account != "" {
		g.Go(func() error {
			f.profile, f.profileErr = a.profiles.GetProfileStatus(gctx, account)
			return nil
		})
		g.Go(func() error {
			f.view, f.viewErr = a.locks.LockView(gctx, account)
			return nil
		})
	}
	_ = g.Wait()

	status := a.compose(account, f, minimumPower, requireWarmupComplete, now)

	zap.L().Debug("Evaluated prerequisites",
		zap.String("account", account),
		zap.String("wallet", string(status.Wallet.State)),
		zap.String("profile", string(status.Profile.State)),
		zap.String("token_lock", string(status.TokenLock.State)),
		zap.String("warmup", string(status.Warmup.State)),
		zap.String("voting_power", string(status.VotingPower.State)),
		zap.Bool("all_met", status.IsAllRequirementsMet))
	return status
}

func (a *Aggregator) compose(account string, f fetched, minimumPower decimal.Decimal, requireWarmup bool, now time.Time) models.PrerequisiteStatus {
	status := models.PrerequisiteStatus{
		Account:     account,
		EvaluatedAt: now,
		Totals: models.PrerequisiteTotals{
			TotalVotingPower:     decimal.Zero,
			PowerUsed:            decimal.Zero,
			AvailableVotingPower: decimal.Zero,
			MinimumPower:         minimumPower,
		},
	}

	status.Wallet = walletRequirement(account, f.wallet, f.walletErr)
	switch {
	case account == "":
		detail := "no account to evaluate"
		status.Profile = models.Requirement{State: models.RequirementUnmet, Detail: detail}
		status.TokenLock = models.Requirement{State: models.RequirementUnmet, Detail: detail}
		status.Warmup = notRequiredOr(requireWarmup, models.Requirement{State: models.RequirementUnmet, Detail: detail})
		status.VotingPower = models.Requirement{State: models.RequirementUnmet, Detail: detail}
		if status.Wallet.State == models.RequirementLoading || status.Wallet.State == models.RequirementUnavailable {
			state := status.Wallet.State
			status.Profile.State, status.TokenLock.State, status.VotingPower.State = state, state, state
			if requireWarmup {
				status.Warmup.State = state
			}
		}
		return status
	}

	status.Profile = profileRequirement(f.profile, f.profileErr)

	switch {
	case f.viewErr != nil:
		unavailable := models.Requirement{State: models.RequirementUnavailable, Detail: f.viewErr.Error()}
		status.TokenLock = unavailable
		status.Warmup = notRequiredOr(requireWarmup, unavailable)
		status.VotingPower = unavailable
	default:
		a.fromView(&status, f.view, minimumPower, requireWarmup, now)
	}

	// Anything still loading makes lock-derived answers premature.
	if status.Wallet.State == models.RequirementLoading ||
		status.Profile.State == models.RequirementLoading ||
		(f.viewErr == nil && f.view.Loading) {
		loading := models.Requirement{State: models.RequirementLoading}
		status.TokenLock = loading
		status.Warmup = notRequiredOr(requireWarmup, loading)
		status.VotingPower = loading
	}

	status.IsAllRequirementsMet = satisfied(status.Wallet) &&
		satisfied(status.Profile) &&
		satisfied(status.TokenLock) &&
		satisfied(status.Warmup) &&
		satisfied(status.VotingPower)
	return status
}

func (a *Aggregator) fromView(status *models.PrerequisiteStatus, view models.LockView, minimumPower decimal.Decimal, requireWarmup bool, now time.Time) {
	totals := &status.Totals
	totals.LockCount = len(view.Locks)
	totals.TotalVotingPower = view.Breakdown.TotalVotingPower
	totals.PowerUsed = view.Breakdown.PowerUsed
	totals.AvailableVotingPower = view.Breakdown.PowerAvailable

	var soonest time.Duration = -1
	for _, lock := range view.Locks {
		switch lock.State {
		case models.LockStateActive:
			totals.ActiveLockCount++
		case models.LockStateWarming:
			totals.WarmingLockCount++
			remaining := a.gate.Remaining(lock.CreatedAt, now)
			if soonest < 0 || remaining < soonest {
				soonest = remaining
			}
		}
	}
	if soonest > 0 {
		totals.WarmupRemaining = soonest
	}

	if totals.LockCount > 0 {
		status.TokenLock = models.Requirement{State: models.RequirementMet}
	} else {
		status.TokenLock = models.Requirement{State: models.RequirementUnmet, Detail: "no token lock"}
	}

	switch {
	case !requireWarmup:
		status.Warmup = models.Requirement{State: models.RequirementNotRequired}
	case totals.ActiveLockCount > 0:
		status.Warmup = models.Requirement{State: models.RequirementMet}
	case totals.WarmingLockCount > 0:
		status.Warmup = models.Requirement{
			State:  models.RequirementUnmet,
			Detail: fmt.Sprintf("warmup completes in %v", totals.WarmupRemaining.Round(time.Second)),
		}
	default:
		status.Warmup = models.Requirement{State: models.RequirementUnmet, Detail: "no lock past warmup"}
	}

	if totals.AvailableVotingPower.GreaterThanOrEqual(minimumPower) {
		status.VotingPower = models.Requirement{State: models.RequirementMet}
	} else {
		status.VotingPower = models.Requirement{
			State:  models.RequirementUnmet,
			Detail: fmt.Sprintf("available power %s below minimum %s", totals.AvailableVotingPower, minimumPower),
		}
	}
}

func walletRequirement(account string, wallet models.ConnectionStatus, err error) models.Requirement {
	switch {
	case err != nil:
		return models.Requirement{State: models.RequirementUnavailable, Detail: err.Error()}
	case wallet.Loading:
		return models.Requirement{State: models.RequirementLoading}
	case !wallet.Connected:
		return models.Requirement{State: models.RequirementUnmet, Detail: "wallet not connected"}
	case account != "" && !strings.EqualFold(wallet.Address, account):
		return models.Requirement{State: models.RequirementUnmet, Detail: fmt.Sprintf("connected wallet is %s", wallet.Address)}
	default:
		return models.Requirement{State: models.RequirementMet}
	}
}

func profileRequirement(profile models.ProfileStatus, err error) models.Requirement {
	switch {
	case err != nil:
		return models.Requirement{State: models.RequirementUnavailable, Detail: err.Error()}
	case profile.Loading:
		return models.Requirement{State: models.RequirementLoading}
	case profile.Exists:
		return models.Requirement{State: models.RequirementMet}
	default:
		return models.Requirement{State: models.RequirementUnmet, Detail: "no governance profile"}
	}
}

func notRequiredOr(required bool, r models.Requirement) models.Requirement {
	if !required {
		return models.Requirement{State: models.RequirementNotRequired}
	}
	return r
}

func satisfied(r models.Requirement) bool {
	return r.State == models.RequirementMet || r.State == models.RequirementNotRequired
}
