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

package queue

import (
	"fmt"
	"time"

	"vote-escrow-go/internal/models"

	"github.com/shopspring/decimal"
)

// BasisPointsDenominator is 100% expressed in basis points.
const BasisPointsDenominator = 10_000

// Policy is an exit-queue discipline. Implementations are interchangeable: the book computes
// positions, the policy decides when an entry may be withdrawn.
type Policy interface {
	Name() string
	// Ready reports whether the entry at position (1-based) may be withdrawn at now.
	Ready(position int, enqueuedAt, now time.Time) bool
	// EstimatedReadyAt is a display hint; it is not used for gating.
	EstimatedReadyAt(position int, enqueuedAt, now time.Time) time.Time
}

// FIFOPolicy releases entries once they reach the head of the queue. HeadSlots entries may
// be withdrawable at the same time; SlotInterval is only used for estimates.
type FIFOPolicy struct {
	HeadSlots    int
	SlotInterval time.Duration
}

func (p FIFOPolicy) Name() string { return models.QueueDisciplineFIFO }

func (p FIFOPolicy) slots() int {
	if p.HeadSlots < 1 {
		return 1
	}
	return p.HeadSlots
}

func (p FIFOPolicy) Ready(position int, _, _ time.Time) bool {
	return position >= 1 && position <= p.slots()
}

func (p FIFOPolicy) EstimatedReadyAt(position int, enqueuedAt, now time.Time) time.Time {
	if p.Ready(position, enqueuedAt, now) {
		return enqueuedAt
	}
	ahead := position - p.slots()
	return now.Add(time.Duration(ahead) * p.SlotInterval)
}

// DwellPolicy releases entries after a fixed minimum time in the queue, regardless of position.
type DwellPolicy struct {
	MinDwell time.Duration
}

func (p DwellPolicy) Name() string { return models.QueueDisciplineDwell }

func (p DwellPolicy) Ready(_ int, enqueuedAt, now time.Time) bool {
	return !now.Before(enqueuedAt.Add(p.MinDwell))
}

func (p DwellPolicy) EstimatedReadyAt(_ int, enqueuedAt, _ time.Time) time.Time {
	return enqueuedAt.Add(p.MinDwell)
}

// NewPolicy builds the policy named by the queue parameters.
func NewPolicy(params models.QueueParams) (Policy, error) {
	switch params.Discipline {
	case "", models.QueueDisciplineFIFO:
		return FIFOPolicy{HeadSlots: params.HeadSlots, SlotInterval: params.SlotInterval}, nil
	case models.QueueDisciplineDwell:
		if params.MinDwell <= 0 {
			return nil, fmt.Errorf("dwell discipline requires a positive min_dwell, got %v", params.MinDwell)
		}
		return DwellPolicy{MinDwell: params.MinDwell}, nil
	default:
		return nil, fmt.Errorf("unknown queue discipline %q", params.Discipline)
	}
}

// Fee returns floor(amount * bps / 10000).
func Fee(amount decimal.Decimal, basisPoints int64) decimal.Decimal {
	if basisPoints <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	fee, _ := amount.Mul(decimal.NewFromInt(basisPoints)).QuoRem(decimal.NewFromInt(BasisPointsDenominator), 0)
	return fee
}
