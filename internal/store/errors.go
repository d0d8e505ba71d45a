package store

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can choose between fixing input, refreshing state,
// retrying, or surfacing a hard failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindStateConflict
	KindTransient
	KindReverted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindTransient:
		return "transient"
	case KindReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Sentinel reasons shared by the ledger, the exit queue and every adapter backend.
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidDuration       = errors.New("duration out of range")
	ErrInvalidLockEnd        = errors.New("invalid lock end")
	ErrInvalidOwner          = errors.New("owner is required")
	ErrLockNotFound          = errors.New("lock not found")
	ErrLockQueued            = errors.New("lock is in the exit queue")
	ErrAlreadyQueued         = errors.New("lock already queued")
	ErrQueueNotReady         = errors.New("exit queue condition not met")
	ErrWarmupIncomplete      = errors.New("warmup period not complete")
	ErrLockNotActive         = errors.New("lock is not active")
	ErrLockExpired           = errors.New("lock has expired")
	ErrCommandInFlight       = errors.New("command already in flight for this position")
	ErrCapabilityUnsupported = errors.New("capability not supported by chain")
	ErrNotTransferable       = errors.New("lock is not transferable")
	ErrTimeout               = errors.New("chain call timed out")
	ErrReverted              = errors.New("transaction reverted")
	ErrUnknownHandle         = errors.New("unknown submission handle")
	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
)

// Error carries the kind plus the account/token context of a failed operation.
type Error struct {
	Kind    Kind
	Op      string
	Account string
	TokenId string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Err)
	if e.Account != "" {
		msg += fmt.Sprintf(" (account=%s", e.Account)
		if e.TokenId != "" {
			msg += fmt.Sprintf(", token=%s", e.TokenId)
		}
		msg += ")"
	}
	if e.Kind == KindTransient {
		msg += "; safe to retry"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed if repeated unchanged.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

func newError(kind Kind, op, account, tokenId string, err error) *Error {
	return &Error{Kind: kind, Op: op, Account: account, TokenId: tokenId, Err: err}
}

func Validation(op, account, tokenId string, err error) *Error {
	return newError(KindValidation, op, account, tokenId, err)
}

func StateConflict(op, account, tokenId string, err error) *Error {
	return newError(KindStateConflict, op, account, tokenId, err)
}

func Transient(op, account, tokenId string, err error) *Error {
	return newError(KindTransient, op, account, tokenId, err)
}

func Reverted(op, account, tokenId string, err error) *Error {
	return newError(KindReverted, op, account, tokenId, err)
}

// KindOf returns the kind of err, or 0 when err is not a classified *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }
func IsTransient(err error) bool     { return KindOf(err) == KindTransient }
func IsReverted(err error) bool      { return KindOf(err) == KindReverted }

// Classify wraps a raw adapter failure. Errors that already carry a kind keep it, deadline
// and cancellation become transient with ErrTimeout, and anything else from the adapter is
// treated as transient.
func Classify(op, account, tokenId string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Account == "" {
			return newError(e.Kind, op, account, tokenId, e.Err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, account, tokenId, fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	return Transient(op, account, tokenId, err)
}
