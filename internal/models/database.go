package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Profile represents a governance profile registered for a wallet address
type Profile struct {
	Address   string    `db:"address" json:"address"`
	Handle    string    `db:"handle" json:"handle"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RawLock is a lock position exactly as recorded on chain, without derived fields
type RawLock struct {
	Id           string          `db:"id" json:"id"`
	Owner        string          `db:"owner" json:"owner"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	LockEnd      time.Time       `db:"lock_end" json:"lock_end"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	Transferable bool            `db:"transferable" json:"transferable"`
	DelegatedTo  string          `db:"delegated_to" json:"delegated_to,omitempty"`
	Version      int64           `db:"version" json:"version"`
}

// QueueRecord is an exit-queue entry as recorded on chain. Sequence is the global
// enqueue counter; positions are derived from it on read.
type QueueRecord struct {
	TokenId            string    `db:"token_id" json:"token_id"`
	Owner              string    `db:"owner" json:"owner"`
	Sequence           int64     `db:"sequence" json:"sequence"`
	EnqueuedAt         time.Time `db:"enqueued_at" json:"enqueued_at"`
	ExitFeeBasisPoints int64     `db:"exit_fee_bps" json:"exit_fee_basis_points"`
}

// WalletBalance is the liquid token balance of an account (hot data)
type WalletBalance struct {
	Owner     string          `db:"owner" json:"owner"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Version   int64           `db:"version" json:"version"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// JournalEntry is one leg of a double-entry movement between wallet, escrow and treasury
type JournalEntry struct {
	Id           string          `db:"id" json:"id"`
	SubmissionId string          `db:"submission_id" json:"submission_id"`
	AccountType  string          `db:"account_type" json:"account_type"`
	AccountId    string          `db:"account_id" json:"account_id"`
	Debit        decimal.Decimal `db:"debit_amount" json:"debit"`
	Credit       decimal.Decimal `db:"credit_amount" json:"credit"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Capabilities are optional chain features, checked once per adapter
type Capabilities struct {
	Delegation bool `json:"delegation"`
	Transfers  bool `json:"transfers"`
}

// Receipt statuses
const (
	ReceiptConfirmed = "confirmed"
	ReceiptReverted  = "reverted"
)

// Receipt is the outcome of a confirmed submission
type Receipt struct {
	Handle      string    `json:"handle"`
	Command     string    `json:"command"`
	Status      string    `json:"status"`
	TokenId     string    `json:"token_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Fee         string    `json:"fee,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Chain event names
const (
	EventLockCreated      = "LockCreated"
	EventAmountIncreased  = "AmountIncreased"
	EventDurationIncrease = "DurationIncreased"
	EventQueueEntered     = "QueueEntered"
	EventWithdrawn        = "Withdrawn"
	EventDelegated        = "Delegated"
	EventTransferred      = "Transferred"
)

// ChainEvent is published by the chain after a submission confirms
type ChainEvent struct {
	Id      string    `json:"id"`
	Name    string    `json:"name"`
	Owner   string    `json:"owner"`
	TokenId string    `json:"token_id"`
	Handle  string    `json:"handle"`
	At      time.Time `json:"at"`
}
