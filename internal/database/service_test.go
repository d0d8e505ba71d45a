package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	alice = "0xaaaa"
	bob   = "0xbbbb"
	carol = "0xcccc"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testParams() models.GovernanceParams {
	return models.GovernanceParams{
		MaxLockDuration:    1461 * 24 * time.Hour,
		WarmupPeriod:       3 * 24 * time.Hour,
		ExitFeeBasisPoints: 100,
		Queue:              models.QueueParams{Discipline: models.QueueDisciplineFIFO, HeadSlots: 1},
	}
}

func setupTestService(t *testing.T, caps models.Capabilities) (*Service, *clock.Clock, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	c := &clock.Clock{}
	c.Set(testStart)

	params := testParams()
	policy, err := queue.NewPolicy(params.Queue)
	if err != nil {
		t.Fatalf("Failed to build queue policy: %v", err)
	}

	service := newService(db, Options{Params: params, Capabilities: caps, Clock: c}, policy)
	if err := service.initSchema(context.Background(), false); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, c, cleanup
}

func submit(t *testing.T, s *Service, sub store.Submission) *models.Receipt {
	t.Helper()
	ctx := context.Background()
	handle, err := s.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("Submit %s failed: %v", sub.Command, err)
	}
	receipt, err := s.WaitForConfirmation(ctx, handle)
	if err != nil {
		t.Fatalf("WaitForConfirmation failed: %v", err)
	}
	return receipt
}

func mint(t *testing.T, s *Service, owner string, amount int64) {
	t.Helper()
	if _, err := s.Mint(context.Background(), owner, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
}

func createLock(t *testing.T, s *Service, owner string, amount int64, duration time.Duration) string {
	t.Helper()
	receipt := submit(t, s, store.Submission{
		Command:  store.CommandCreateLock,
		Owner:    owner,
		Amount:   decimal.NewFromInt(amount),
		Duration: duration,
	})
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected create to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	return receipt.TokenId
}

func readLocks(t *testing.T, s *Service, owner string) []models.RawLock {
	t.Helper()
	result, err := s.Read(context.Background(), store.ReadRequest{Entity: store.EntityLocks, Owner: owner})
	if err != nil {
		t.Fatalf("Read locks failed: %v", err)
	}
	return result.Locks
}

func TestCreateLock_DebitsWalletAndJournals(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()
	ctx := context.Background()

	mint(t, service, alice, 1000)

	handle, err := service.Submit(ctx, store.Submission{
		Command:  store.CommandCreateLock,
		Owner:    alice,
		Amount:   decimal.NewFromInt(400),
		Duration: 365 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	receipt, err := service.WaitForConfirmation(ctx, handle)
	if err != nil {
		t.Fatalf("WaitForConfirmation failed: %v", err)
	}
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected confirmed receipt, got %s (%s)", receipt.Status, receipt.Reason)
	}

	locks := readLocks(t, service, alice)
	if len(locks) != 1 {
		t.Fatalf("Expected 1 lock, got %d", len(locks))
	}
	lock := locks[0]
	if lock.Id != receipt.TokenId {
		t.Errorf("Expected lock id %s, got %s", receipt.TokenId, lock.Id)
	}
	if !lock.Amount.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected amount 400, got %s", lock.Amount)
	}
	if !lock.CreatedAt.Equal(testStart) || !lock.LockEnd.Equal(testStart.Add(365*24*time.Hour)) {
		t.Errorf("Unexpected lock times: created %v, end %v", lock.CreatedAt, lock.LockEnd)
	}

	balance, err := service.GetBalance(ctx, alice)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Expected balance 600, got %s", balance)
	}

	entries, err := service.GetJournal(ctx, string(handle))
	if err != nil {
		t.Fatalf("GetJournal failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 journal legs, got %d", len(entries))
	}

	escrow, err := service.AccountTotal(ctx, accountEscrow, lock.Id)
	if err != nil {
		t.Fatalf("AccountTotal failed: %v", err)
	}
	if !escrow.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected escrow 400, got %s", escrow)
	}
}

func TestCreateLock_RevertsWithoutMutation(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	tests := []struct {
		name     string
		amount   int64
		duration time.Duration
		reason   error
	}{
		{"insufficient balance", 5000, 24 * time.Hour, store.ErrInsufficientBalance},
		{"zero amount", 0, 24 * time.Hour, store.ErrInvalidAmount},
		{"zero duration", 100, 0, store.ErrInvalidDuration},
		{"duration above maximum", 100, 1462 * 24 * time.Hour, store.ErrInvalidDuration},
	}

	mint(t, service, alice, 1000)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := submit(t, service, store.Submission{
				Command:  store.CommandCreateLock,
				Owner:    alice,
				Amount:   decimal.NewFromInt(tt.amount),
				Duration: tt.duration,
			})
			if receipt.Status != models.ReceiptReverted {
				t.Fatalf("Expected reverted receipt, got %s", receipt.Status)
			}
			if !strings.Contains(receipt.Reason, tt.reason.Error()) {
				t.Errorf("Expected reason %q, got %q", tt.reason, receipt.Reason)
			}
		})
	}

	if locks := readLocks(t, service, alice); len(locks) != 0 {
		t.Errorf("Expected no locks after reverts, got %d", len(locks))
	}
	balance, _ := service.GetBalance(context.Background(), alice)
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected balance to stay 1000, got %s", balance)
	}
}

func TestIncreaseAmount_RequiresActiveLock(t *testing.T) {
	service, c, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	mint(t, service, alice, 1000)
	tokenId := createLock(t, service, alice, 400, 365*24*time.Hour)

	increase := store.Submission{
		Command: store.CommandIncreaseAmount,
		Owner:   alice,
		TokenId: tokenId,
		Amount:  decimal.NewFromInt(100),
	}

	receipt := submit(t, service, increase)
	if receipt.Status != models.ReceiptReverted || !strings.Contains(receipt.Reason, store.ErrLockNotActive.Error()) {
		t.Fatalf("Expected warming lock to revert, got %s (%s)", receipt.Status, receipt.Reason)
	}

	c.Advance(3 * 24 * time.Hour)
	receipt = submit(t, service, increase)
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected increase to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}

	locks := readLocks(t, service, alice)
	if !locks[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected amount 500, got %s", locks[0].Amount)
	}
	if locks[0].Version != 2 {
		t.Errorf("Expected version 2, got %d", locks[0].Version)
	}

	other := increase
	other.Owner = bob
	receipt = submit(t, service, other)
	if receipt.Status != models.ReceiptReverted || !strings.Contains(receipt.Reason, store.ErrLockNotFound.Error()) {
		t.Errorf("Expected foreign lock to revert as not found, got %s (%s)", receipt.Status, receipt.Reason)
	}
}

func TestIncreaseDuration(t *testing.T) {
	service, c, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	mint(t, service, alice, 1000)
	tokenId := createLock(t, service, alice, 400, 365*24*time.Hour)
	c.Advance(4 * 24 * time.Hour)

	tests := []struct {
		name    string
		lockEnd time.Time
		status  string
	}{
		{"not after current end", testStart.Add(365 * 24 * time.Hour), models.ReceiptReverted},
		{"beyond maximum from creation", testStart.Add(1462 * 24 * time.Hour), models.ReceiptReverted},
		{"valid extension", testStart.Add(730 * 24 * time.Hour), models.ReceiptConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := submit(t, service, store.Submission{
				Command: store.CommandIncreaseDuration,
				Owner:   alice,
				TokenId: tokenId,
				LockEnd: tt.lockEnd,
			})
			if receipt.Status != tt.status {
				t.Errorf("Expected %s, got %s (%s)", tt.status, receipt.Status, receipt.Reason)
			}
		})
	}

	locks := readLocks(t, service, alice)
	if !locks[0].LockEnd.Equal(testStart.Add(730 * 24 * time.Hour)) {
		t.Errorf("Expected extended lock end, got %v", locks[0].LockEnd)
	}
}

func TestExitQueue_FIFOOrderAndFees(t *testing.T) {
	service, c, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()
	ctx := context.Background()

	mint(t, service, alice, 1000)
	mint(t, service, bob, 1000)
	first := createLock(t, service, alice, 400, 365*24*time.Hour)
	second := createLock(t, service, bob, 200, 365*24*time.Hour)

	enqueue := func(owner, tokenId string) *models.Receipt {
		return submit(t, service, store.Submission{
			Command:        store.CommandEnterQueue,
			Owner:          owner,
			TokenId:        tokenId,
			FeeBasisPoints: 100,
		})
	}
	withdraw := func(owner, tokenId string) *models.Receipt {
		return submit(t, service, store.Submission{Command: store.CommandWithdraw, Owner: owner, TokenId: tokenId})
	}

	if receipt := enqueue(alice, first); receipt.Status != models.ReceiptReverted ||
		!strings.Contains(receipt.Reason, store.ErrWarmupIncomplete.Error()) {
		t.Fatalf("Expected warming lock to be rejected from the queue, got %s (%s)", receipt.Status, receipt.Reason)
	}

	c.Advance(3 * 24 * time.Hour)
	if receipt := enqueue(alice, first); receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected enqueue to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	c.Advance(time.Minute)
	if receipt := enqueue(bob, second); receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected enqueue to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	if receipt := enqueue(alice, first); receipt.Status != models.ReceiptReverted ||
		!strings.Contains(receipt.Reason, store.ErrAlreadyQueued.Error()) {
		t.Errorf("Expected double enqueue to revert, got %s (%s)", receipt.Status, receipt.Reason)
	}

	result, err := service.Read(ctx, store.ReadRequest{Entity: store.EntityExitQueue})
	if err != nil {
		t.Fatalf("Read queue failed: %v", err)
	}
	if len(result.Queue) != 2 || result.Queue[0].TokenId != first || result.Queue[1].TokenId != second {
		t.Fatalf("Unexpected queue order: %+v", result.Queue)
	}
	if result.Queue[0].Sequence >= result.Queue[1].Sequence {
		t.Errorf("Expected increasing sequences, got %d and %d", result.Queue[0].Sequence, result.Queue[1].Sequence)
	}

	// Only the head slot may leave
	if receipt := withdraw(bob, second); receipt.Status != models.ReceiptReverted ||
		!strings.Contains(receipt.Reason, store.ErrQueueNotReady.Error()) {
		t.Fatalf("Expected premature withdraw to revert, got %s (%s)", receipt.Status, receipt.Reason)
	}
	if locks := readLocks(t, service, bob); len(locks) != 1 {
		t.Fatalf("Expected reverted withdraw to leave the lock, got %d locks", len(locks))
	}

	receipt := withdraw(alice, first)
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected withdraw to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	if receipt.Fee != "4" || receipt.Amount != "400" {
		t.Errorf("Expected amount 400 and fee 4, got %s and %s", receipt.Amount, receipt.Fee)
	}

	balance, _ := service.GetBalance(ctx, alice)
	if !balance.Equal(decimal.NewFromInt(996)) {
		t.Errorf("Expected balance 996, got %s", balance)
	}
	fees, _ := service.AccountTotal(ctx, accountTreasury, feesId)
	if !fees.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected 4 in fees, got %s", fees)
	}

	// Bob moved up to the head
	if receipt := withdraw(bob, second); receipt.Status != models.ReceiptConfirmed {
		t.Errorf("Expected second withdraw to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
}

func TestWithdraw_ExpiredLockSkipsQueueAndFee(t *testing.T) {
	service, c, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	mint(t, service, alice, 1000)
	tokenId := createLock(t, service, alice, 400, 10*24*time.Hour)

	c.Advance(10 * 24 * time.Hour)
	receipt := submit(t, service, store.Submission{Command: store.CommandWithdraw, Owner: alice, TokenId: tokenId})
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected withdraw to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	if receipt.Fee != "0" {
		t.Errorf("Expected no fee, got %s", receipt.Fee)
	}

	balance, _ := service.GetBalance(context.Background(), alice)
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected full refund, got %s", balance)
	}
	if locks := readLocks(t, service, alice); len(locks) != 0 {
		t.Errorf("Expected lock to be removed, got %d", len(locks))
	}
}

func TestTransfer_ClearsDelegation(t *testing.T) {
	service, c, cleanup := setupTestService(t, models.Capabilities{Delegation: true, Transfers: true})
	defer cleanup()

	mint(t, service, alice, 1000)
	receipt := submit(t, service, store.Submission{
		Command:      store.CommandCreateLock,
		Owner:        alice,
		Amount:       decimal.NewFromInt(400),
		Duration:     365 * 24 * time.Hour,
		Transferable: true,
	})
	tokenId := receipt.TokenId
	c.Advance(3 * 24 * time.Hour)

	receipt = submit(t, service, store.Submission{Command: store.CommandDelegate, Owner: alice, TokenId: tokenId, Recipient: carol})
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected delegate to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}
	if locks := readLocks(t, service, alice); locks[0].DelegatedTo != carol {
		t.Fatalf("Expected delegation to %s, got %q", carol, locks[0].DelegatedTo)
	}

	receipt = submit(t, service, store.Submission{Command: store.CommandTransfer, Owner: alice, TokenId: tokenId, Recipient: bob})
	if receipt.Status != models.ReceiptConfirmed {
		t.Fatalf("Expected transfer to confirm, got %s (%s)", receipt.Status, receipt.Reason)
	}

	if locks := readLocks(t, service, alice); len(locks) != 0 {
		t.Errorf("Expected sender to hold no locks, got %d", len(locks))
	}
	locks := readLocks(t, service, bob)
	if len(locks) != 1 || locks[0].Id != tokenId {
		t.Fatalf("Expected recipient to hold the lock, got %+v", locks)
	}
	if locks[0].DelegatedTo != "" {
		t.Errorf("Expected transfer to clear delegation, got %q", locks[0].DelegatedTo)
	}
}

func TestTransfer_Unsupported(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	mint(t, service, alice, 1000)
	tokenId := createLock(t, service, alice, 400, 365*24*time.Hour)

	receipt := submit(t, service, store.Submission{Command: store.CommandTransfer, Owner: alice, TokenId: tokenId, Recipient: bob})
	if receipt.Status != models.ReceiptReverted || !strings.Contains(receipt.Reason, store.ErrCapabilityUnsupported.Error()) {
		t.Errorf("Expected unsupported transfer to revert, got %s (%s)", receipt.Status, receipt.Reason)
	}
}

func TestSubscribe(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	var created, all []models.ChainEvent
	unsubscribeCreated, err := service.Subscribe(models.EventLockCreated, func(e models.ChainEvent) {
		created = append(created, e)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	unsubscribeAll, _ := service.Subscribe("*", func(e models.ChainEvent) {
		all = append(all, e)
	})
	defer unsubscribeAll()

	mint(t, service, alice, 1000)
	tokenId := createLock(t, service, alice, 100, 24*time.Hour)

	if len(created) != 1 || created[0].TokenId != tokenId || created[0].Owner != alice {
		t.Fatalf("Expected one LockCreated event, got %+v", created)
	}

	unsubscribeCreated()
	unsubscribeCreated()

	createLock(t, service, alice, 100, 24*time.Hour)
	if len(created) != 1 {
		t.Errorf("Expected no delivery after unsubscribe, got %d events", len(created))
	}
	if len(all) != 2 {
		t.Errorf("Expected wildcard subscriber to see 2 events, got %d", len(all))
	}

	// Reverted submissions publish nothing
	submit(t, service, store.Submission{Command: store.CommandCreateLock, Owner: alice, Amount: decimal.NewFromInt(5000), Duration: time.Hour})
	if len(all) != 2 {
		t.Errorf("Expected reverted submission to publish nothing, got %d events", len(all))
	}
}

func TestWaitForConfirmation_UnknownHandle(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()

	_, err := service.WaitForConfirmation(context.Background(), store.Handle("missing"))
	if !store.IsValidation(err) || !errors.Is(err, store.ErrUnknownHandle) {
		t.Errorf("Expected unknown handle validation error, got %v", err)
	}
}

func TestPowerUsedAndCapabilities(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{Delegation: true})
	defer cleanup()
	ctx := context.Background()

	if err := service.CommitPower(ctx, alice, "prop-1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("CommitPower failed: %v", err)
	}
	if err := service.CommitPower(ctx, alice, "prop-2", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("CommitPower failed: %v", err)
	}
	// Recommitting to the same proposal replaces the earlier amount
	if err := service.CommitPower(ctx, alice, "prop-1", decimal.NewFromInt(80)); err != nil {
		t.Fatalf("CommitPower failed: %v", err)
	}

	result, err := service.Read(ctx, store.ReadRequest{Entity: store.EntityPowerUsed, Owner: alice})
	if err != nil {
		t.Fatalf("Read power used failed: %v", err)
	}
	if !result.PowerUsed.Equal(decimal.NewFromInt(130)) {
		t.Errorf("Expected 130 power used, got %s", result.PowerUsed)
	}

	if err := service.ReleasePower(ctx, alice, "prop-2"); err != nil {
		t.Fatalf("ReleasePower failed: %v", err)
	}
	result, _ = service.Read(ctx, store.ReadRequest{Entity: store.EntityPowerUsed, Owner: alice})
	if !result.PowerUsed.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected 80 power used, got %s", result.PowerUsed)
	}

	result, err = service.Read(ctx, store.ReadRequest{Entity: store.EntityCapabilities})
	if err != nil {
		t.Fatalf("Read capabilities failed: %v", err)
	}
	if !result.Capabilities.Delegation || result.Capabilities.Transfers {
		t.Errorf("Unexpected capabilities %+v", result.Capabilities)
	}

	if _, err := service.Read(ctx, store.ReadRequest{Entity: "bogus"}); !store.IsValidation(err) {
		t.Errorf("Expected unknown entity to be a validation error, got %v", err)
	}
}

func TestProfiles(t *testing.T) {
	service, _, cleanup := setupTestService(t, models.Capabilities{})
	defer cleanup()
	ctx := context.Background()

	status, err := service.GetProfileStatus(ctx, alice)
	if err != nil {
		t.Fatalf("GetProfileStatus failed: %v", err)
	}
	if status.Exists {
		t.Error("Expected no profile before creation")
	}

	profile, err := service.CreateProfile(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if profile.Handle != "alice" || !profile.CreatedAt.Equal(testStart) {
		t.Errorf("Unexpected profile %+v", profile)
	}

	if _, err := service.CreateProfile(ctx, alice, "again"); !errors.Is(err, ErrProfileExists) {
		t.Errorf("Expected ErrProfileExists, got %v", err)
	}

	status, _ = service.GetProfileStatus(ctx, strings.ToUpper(alice))
	if !status.Exists {
		t.Error("Expected profile lookup to ignore address case")
	}

	profiles, err := service.GetProfiles(ctx)
	if err != nil {
		t.Fatalf("GetProfiles failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("Expected 1 profile, got %d", len(profiles))
	}
}
