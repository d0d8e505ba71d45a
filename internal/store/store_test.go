package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// Compile-time checks that the contracts are importable and usable.
func TestChainAdapterInterfaceExists(t *testing.T) {
	_ = ErrLockNotFound
	_ = ErrCommandInFlight
	_ = ReadRequest{Entity: EntityLocks}
	_ = Submission{Command: CommandCreateLock}

	var _ ChainAdapter
	var _ WalletStore
	var _ ProfileStore
}

func TestErrorKinds(t *testing.T) {
	err := StateConflict("increase_amount", "0xabc", "lock-1", ErrLockQueued)

	if !IsStateConflict(err) {
		t.Fatalf("expected state conflict, got %v", KindOf(err))
	}
	if IsTransient(err) || IsValidation(err) || IsReverted(err) {
		t.Error("state conflict matched another kind")
	}
	if !errors.Is(err, ErrLockQueued) {
		t.Error("expected errors.Is to reach the sentinel reason")
	}
	if !strings.Contains(err.Error(), "account=0xabc") || !strings.Contains(err.Error(), "token=lock-1") {
		t.Errorf("expected account/token context in %q", err.Error())
	}
	if err.Retryable() {
		t.Error("state conflicts must not be retryable")
	}
}

func TestClassify(t *testing.T) {
	if Classify("read", "a", "", nil) != nil {
		t.Fatal("nil error must stay nil")
	}

	timeout := Classify("read", "a", "", fmt.Errorf("read locks: %w", context.DeadlineExceeded))
	if !IsTransient(timeout) || !errors.Is(timeout, ErrTimeout) {
		t.Errorf("expected transient timeout, got %v", timeout)
	}
	if !strings.Contains(timeout.Error(), "safe to retry") {
		t.Errorf("expected retry guidance in %q", timeout.Error())
	}

	reverted := Classify("submit", "a", "t", Reverted("", "", "", ErrReverted))
	if !IsReverted(reverted) {
		t.Errorf("expected reverted kind to survive classification, got %v", KindOf(reverted))
	}
	var e *Error
	if !errors.As(reverted, &e) || e.Account != "a" || e.TokenId != "t" {
		t.Errorf("expected context to be filled in, got %+v", e)
	}

	generic := Classify("submit", "a", "", errors.New("connection refused"))
	if !IsTransient(generic) {
		t.Errorf("expected adapter failure to be transient, got %v", KindOf(generic))
	}
}
