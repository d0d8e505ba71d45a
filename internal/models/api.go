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

// CommandResult represents the outcome of a lock or queue command
type CommandResult struct {
	Success    bool              `json:"success"`
	Command    string            `json:"command"`
	Owner      string            `json:"owner,omitempty"`
	TokenId    string            `json:"token_id,omitempty"`
	Lock       *TokenLock        `json:"lock,omitempty"`
	Entry      *ExitQueueEntry   `json:"entry,omitempty"`
	Withdrawal *WithdrawalResult `json:"withdrawal,omitempty"`
	TxHash     string            `json:"tx_hash,omitempty"`
	Pending    bool              `json:"pending,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

// LockView is a consistent snapshot of an owner's locks and power, as served to gating code.
// Loading is true until the first live refresh for the owner has succeeded.
type LockView struct {
	Owner     string               `json:"owner"`
	Locks     []TokenLock          `json:"locks"`
	Breakdown VotingPowerBreakdown `json:"breakdown"`
	Loading   bool                 `json:"loading"`
	Stale     bool                 `json:"stale"`
	AsOf      time.Time            `json:"as_of"`
}

// ConnectionStatus is reported by the wallet store
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
	Loading   bool   `json:"loading"`
}

// ProfileStatus is reported by the profile store
type ProfileStatus struct {
	Exists  bool `json:"exists"`
	Loading bool `json:"loading"`
}

// RequirementState is the state of a single prerequisite
type RequirementState string

const (
	RequirementLoading     RequirementState = "loading"
	RequirementMet         RequirementState = "met"
	RequirementUnmet       RequirementState = "unmet"
	RequirementUnavailable RequirementState = "unavailable"
	RequirementNotRequired RequirementState = "not_required"
)

// Requirement is one evaluated prerequisite
type Requirement struct {
	State  RequirementState `json:"state"`
	Detail string           `json:"detail,omitempty"`
}

// PrerequisiteTotals summarises the lock data behind a verdict
type PrerequisiteTotals struct {
	LockCount            int             `json:"lock_count"`
	ActiveLockCount      int             `json:"active_lock_count"`
	WarmingLockCount     int             `json:"warming_lock_count"`
	TotalVotingPower     decimal.Decimal `json:"total_voting_power"`
	PowerUsed            decimal.Decimal `json:"power_used"`
	AvailableVotingPower decimal.Decimal `json:"available_voting_power"`
	MinimumPower         decimal.Decimal `json:"minimum_power"`
	WarmupRemaining      time.Duration   `json:"warmup_remaining"`
}

// PrerequisiteStatus is the composite readiness verdict. It is recomputed on every
// evaluation and never persisted.
type PrerequisiteStatus struct {
	Account              string             `json:"account"`
	Wallet               Requirement        `json:"wallet"`
	Profile              Requirement        `json:"profile"`
	TokenLock            Requirement        `json:"token_lock"`
	Warmup               Requirement        `json:"warmup"`
	VotingPower          Requirement        `json:"voting_power"`
	IsAllRequirementsMet bool               `json:"is_all_requirements_met"`
	Totals               PrerequisiteTotals `json:"totals"`
	EvaluatedAt          time.Time          `json:"evaluated_at"`
}
