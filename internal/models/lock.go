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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LockState is the lifecycle state of a lock, derived from time and queue status on every read.
type LockState string

const (
	LockStateWarming      LockState = "warming"
	LockStateActive       LockState = "active"
	LockStateQueued       LockState = "queued"
	LockStateWithdrawable LockState = "withdrawable"
)

// TokenLock is the decorated read model of a single lock position
type TokenLock struct {
	Id                string          `json:"id"`
	Owner             string          `json:"owner"`
	LockedAmount      decimal.Decimal `json:"locked_amount"`
	LockEnd           time.Time       `json:"lock_end"`
	CreatedAt         time.Time       `json:"created_at"`
	VotingPower       decimal.Decimal `json:"voting_power"`
	WarmupEndsAt      time.Time       `json:"warmup_ends_at"`
	IsWarmupComplete  bool            `json:"is_warmup_complete"`
	State             LockState       `json:"state"`
	ExitQueuePosition *int            `json:"exit_queue_position,omitempty"`
	ExitQueue         *ExitQueueEntry `json:"exit_queue,omitempty"`
	CanWithdraw       bool            `json:"can_withdraw"`
	Transferable      bool            `json:"transferable"`
	DelegatedTo       string          `json:"delegated_to,omitempty"`
}

// IsQueued reports whether the lock holds an active exit-queue entry
func (l TokenLock) IsQueued() bool {
	return l.ExitQueue != nil
}

// VotingPowerBreakdown splits an account's voting power into committed and available parts
type VotingPowerBreakdown struct {
	Owner            string          `json:"owner"`
	TotalVotingPower decimal.Decimal `json:"total_voting_power"`
	PowerUsed        decimal.Decimal `json:"power_used"`
	PowerAvailable   decimal.Decimal `json:"power_available"`
	AsOf             time.Time       `json:"as_of"`
}

// ExitQueueEntry is the read model of a lock waiting in the exit queue
type ExitQueueEntry struct {
	TokenId            string    `json:"token_id"`
	Owner              string    `json:"owner"`
	EnqueuedAt         time.Time `json:"enqueued_at"`
	Position           int       `json:"position"`
	ExitFeeBasisPoints int64     `json:"exit_fee_basis_points"`
	EstimatedReadyAt   time.Time `json:"estimated_ready_at"`
	Ready              bool      `json:"ready"`
}

// WithdrawalResult describes the payout of a withdrawn lock
type WithdrawalResult struct {
	TokenId  string          `json:"token_id"`
	Owner    string          `json:"owner"`
	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	Returned decimal.Decimal `json:"returned"`
	TxHash   string          `json:"tx_hash"`
}
