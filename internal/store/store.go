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

package store

import (
	"context"
	"time"

	"vote-escrow-go/internal/models"

	"github.com/shopspring/decimal"
)

// Entity names a readable chain collection.
type Entity string

const (
	EntityLocks        Entity = "locks"
	EntityExitQueue    Entity = "exit_queue"
	EntityPowerUsed    Entity = "power_used"
	EntityCapabilities Entity = "capabilities"
	EntityBalance      Entity = "balance"
)

// Command names a state-changing chain submission.
type Command string

const (
	CommandCreateLock       Command = "create_lock"
	CommandIncreaseAmount   Command = "increase_amount"
	CommandIncreaseDuration Command = "increase_duration"
	CommandEnterQueue       Command = "enter_queue"
	CommandWithdraw         Command = "withdraw"
	CommandDelegate         Command = "delegate"
	CommandTransfer         Command = "transfer"
)

// ReadRequest selects what to read. Owner scopes owner-keyed entities; the exit queue
// is global and ignores it.
type ReadRequest struct {
	Entity  Entity `json:"entity"`
	Owner   string `json:"owner,omitempty"`
	TokenId string `json:"token_id,omitempty"`
}

// ReadResult carries the value for the requested entity; only the matching field is set.
type ReadResult struct {
	Locks        []models.RawLock     `json:"locks,omitempty"`
	Queue        []models.QueueRecord `json:"queue,omitempty"`
	PowerUsed    decimal.Decimal      `json:"power_used"`
	Balance      decimal.Decimal      `json:"balance"`
	Capabilities models.Capabilities  `json:"capabilities"`
}

// Submission is a command with its arguments. Unused arguments are left zero.
type Submission struct {
	Command        Command         `json:"command"`
	Owner          string          `json:"owner"`
	TokenId        string          `json:"token_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Duration       time.Duration   `json:"duration,omitempty"`
	LockEnd        time.Time       `json:"lock_end,omitempty"`
	FeeBasisPoints int64           `json:"fee_basis_points,omitempty"`
	Recipient      string          `json:"recipient,omitempty"`
	Transferable   bool            `json:"transferable,omitempty"`
}

// Handle identifies a submitted command until it confirms.
type Handle string

// ChainAdapter is the only component that talks to a network. Every backend (SQLite devnet,
// JSON-RPC node, ...) must satisfy it; lock and queue logic never depends on which one is used.
type ChainAdapter interface {
	Read(ctx context.Context, req ReadRequest) (*ReadResult, error)
	Submit(ctx context.Context, sub Submission) (Handle, error)
	WaitForConfirmation(ctx context.Context, handle Handle) (*models.Receipt, error)

	// Subscribe registers fn for eventName ("*" for all events). The returned function
	// cancels the subscription and is safe to call more than once.
	Subscribe(eventName string, fn func(models.ChainEvent)) (func(), error)

	Close()
}

// WalletStore reports the connected wallet.
type WalletStore interface {
	GetConnectionStatus(ctx context.Context) (models.ConnectionStatus, error)
}

// ProfileStore reports whether a governance profile exists for an address.
type ProfileStore interface {
	GetProfileStatus(ctx context.Context, address string) (models.ProfileStatus, error)
}
