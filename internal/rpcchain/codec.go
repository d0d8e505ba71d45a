package rpcchain

import (
	"encoding/json"
	"errors"
	"fmt"

	"vote-escrow-go/internal/store"
)

const (
	MethodRead    = "chain_read"
	MethodSubmit  = "chain_submit"
	MethodConfirm = "chain_waitForConfirmation"
	MethodProfile = "chain_profileStatus"

	jsonrpcVersion = "2.0"
)

// JSON-RPC error codes. Classified store errors use the application range.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeApplication    = -32000
)

type request struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Op      string `json:"op,omitempty"`
	Account string `json:"account,omitempty"`
	TokenId string `json:"token_id,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type confirmParams struct {
	Handle store.Handle `json:"handle"`
}

type profileParams struct {
	Address string `json:"address"`
}

type submitResult struct {
	Handle store.Handle `json:"handle"`
}

// reasons are the sentinels that survive a round trip over the wire
var reasons = []error{
	store.ErrInvalidAmount,
	store.ErrInvalidDuration,
	store.ErrInvalidLockEnd,
	store.ErrInvalidOwner,
	store.ErrLockNotFound,
	store.ErrLockQueued,
	store.ErrAlreadyQueued,
	store.ErrQueueNotReady,
	store.ErrWarmupIncomplete,
	store.ErrLockNotActive,
	store.ErrLockExpired,
	store.ErrCommandInFlight,
	store.ErrCapabilityUnsupported,
	store.ErrNotTransferable,
	store.ErrTimeout,
	store.ErrReverted,
	store.ErrUnknownHandle,
	store.ErrInsufficientBalance,
}

var kinds = map[string]store.Kind{
	store.KindValidation.String():    store.KindValidation,
	store.KindStateConflict.String(): store.KindStateConflict,
	store.KindTransient.String():     store.KindTransient,
	store.KindReverted.String():      store.KindReverted,
}

func encodeError(err error) *rpcError {
	var e *store.Error
	if !errors.As(err, &e) {
		return &rpcError{Code: codeInternal, Message: err.Error(), Data: &errorData{Kind: store.KindTransient.String()}}
	}
	data := &errorData{Kind: e.Kind.String(), Op: e.Op, Account: e.Account, TokenId: e.TokenId}
	for _, reason := range reasons {
		if errors.Is(err, reason) {
			data.Reason = reason.Error()
			break
		}
	}
	return &rpcError{Code: codeApplication, Message: e.Err.Error(), Data: data}
}

// decodeError rebuilds a classified error so errors.Is keeps matching the shared sentinels
func decodeError(e *rpcError) error {
	if e.Data == nil {
		return e
	}
	kind, ok := kinds[e.Data.Kind]
	if !ok {
		return e
	}

	var cause error = errors.New(e.Message)
	for _, reason := range reasons {
		if reason.Error() == e.Data.Reason {
			if e.Message == reason.Error() {
				cause = reason
			} else {
				cause = &wireError{reason: reason, message: e.Message}
			}
			break
		}
	}
	return &store.Error{Kind: kind, Op: e.Data.Op, Account: e.Data.Account, TokenId: e.Data.TokenId, Err: cause}
}

// wireError keeps the remote message while unwrapping to the local sentinel
type wireError struct {
	reason  error
	message string
}

func (w *wireError) Error() string { return w.message }
func (w *wireError) Unwrap() error { return w.reason }
