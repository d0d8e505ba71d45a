package api

import "time"

// Amounts travel as decimal strings in whole base units.

type CreateLockRequest struct {
	Owner        string        `json:"owner" validate:"required,max=128"`
	Amount       string        `json:"amount" validate:"required,numeric"`
	Duration     time.Duration `json:"duration" validate:"gt=0"`
	Transferable bool          `json:"transferable"`
}

type IncreaseAmountRequest struct {
	Owner   string `json:"owner" validate:"required,max=128"`
	TokenId string `json:"token_id" validate:"required"`
	Amount  string `json:"amount" validate:"required,numeric"`
}

type IncreaseDurationRequest struct {
	Owner   string    `json:"owner" validate:"required,max=128"`
	TokenId string    `json:"token_id" validate:"required"`
	NewEnd  time.Time `json:"new_end"`
}

type PositionRequest struct {
	Owner   string `json:"owner" validate:"required,max=128"`
	TokenId string `json:"token_id" validate:"required"`
}

type DelegateRequest struct {
	Owner     string `json:"owner" validate:"required,max=128"`
	TokenId   string `json:"token_id" validate:"required"`
	Delegatee string `json:"delegatee" validate:"omitempty,max=128,nefield=Owner"`
}

type TransferRequest struct {
	Owner     string `json:"owner" validate:"required,max=128"`
	TokenId   string `json:"token_id" validate:"required"`
	Recipient string `json:"recipient" validate:"required,max=128,nefield=Owner"`
}

type StatusRequest struct {
	Account               string `json:"account" validate:"omitempty,max=128"`
	MinimumPower          string `json:"minimum_power" validate:"omitempty,numeric"`
	RequireWarmupComplete bool   `json:"require_warmup_complete"`
}
