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

package power

import (
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	"github.com/shopspring/decimal"
)

// DefaultMaxLockDuration is four years of 365.25 days.
const DefaultMaxLockDuration = 1461 * 24 * time.Hour

// Calculator evaluates the linear decay curve. Results are never cached: the value of a lock
// changes with the clock even when no event occurs.
type Calculator struct {
	maxDuration time.Duration
	gate        *warmup.Gate
}

func NewCalculator(maxDuration time.Duration, gate *warmup.Gate) *Calculator {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxLockDuration
	}
	if gate == nil {
		gate = warmup.NewGate(warmup.DefaultPeriod)
	}
	return &Calculator{maxDuration: maxDuration, gate: gate}
}

func (c *Calculator) MaxDuration() time.Duration {
	return c.maxDuration
}

// ValidateDuration rejects non-positive durations and anything above the maximum.
// Durations are never silently capped.
func (c *Calculator) ValidateDuration(d time.Duration) error {
	if d <= 0 || d > c.maxDuration {
		return store.ErrInvalidDuration
	}
	return nil
}

// Power returns floor(amount * max(0, lockEnd-now) / maxDuration). Remaining time is capped
// at maxDuration so the result never exceeds amount, even when now precedes creation.
func (c *Calculator) Power(amount decimal.Decimal, lockEnd, now time.Time) decimal.Decimal {
	if !amount.IsPositive() || !now.Before(lockEnd) {
		return decimal.Zero
	}
	remaining := lockEnd.Sub(now)
	if remaining > c.maxDuration {
		remaining = c.maxDuration
	}
	numerator := amount.Mul(decimal.NewFromInt(int64(remaining)))
	quotient, _ := numerator.QuoRem(decimal.NewFromInt(int64(c.maxDuration)), 0)
	return quotient
}

// IsActive reports whether a lock is past warmup, not queued and not yet expired.
func (c *Calculator) IsActive(createdAt, lockEnd time.Time, queued bool, now time.Time) bool {
	return c.gate.IsComplete(createdAt, now) && !queued && now.Before(lockEnd)
}

// EffectivePower is the power that counts toward voting: zero unless the lock is active.
func (c *Calculator) EffectivePower(lock models.RawLock, queued bool, now time.Time) decimal.Decimal {
	if !c.IsActive(lock.CreatedAt, lock.LockEnd, queued, now) {
		return decimal.Zero
	}
	return c.Power(lock.Amount, lock.LockEnd, now)
}

// Aggregate sums effective power over the given locks, recomputing each one at now.
func (c *Calculator) Aggregate(locks []models.TokenLock, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, l := range locks {
		if !c.IsActive(l.CreatedAt, l.LockEnd, l.IsQueued(), now) {
			continue
		}
		total = total.Add(c.Power(l.LockedAmount, l.LockEnd, now))
	}
	return total
}
