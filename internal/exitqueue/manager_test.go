package exitqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/database"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	"github.com/shopspring/decimal"
)

const (
	alice = "0xaaaa"
	bob   = "0xbbbb"
	day   = 24 * time.Hour
)

type fixture struct {
	manager *Manager
	ledger  *ledger.Ledger
	chain   *database.Service
	clock   *clock.Clock
}

func setupManager(t *testing.T, queueParams models.QueueParams) *fixture {
	t.Helper()

	c := &clock.Clock{}
	c.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	params := models.GovernanceParams{
		MaxLockDuration:    power.DefaultMaxLockDuration,
		WarmupPeriod:       warmup.DefaultPeriod,
		ExitFeeBasisPoints: 250,
		Queue:              queueParams,
	}
	chain, err := database.NewInMemory(context.Background(), database.Options{Params: params, Clock: c})
	if err != nil {
		t.Fatalf("Failed to open devnet: %v", err)
	}
	t.Cleanup(chain.Close)

	policy, err := queue.NewPolicy(queueParams)
	if err != nil {
		t.Fatalf("Failed to build policy: %v", err)
	}
	gate := warmup.NewGate(params.WarmupPeriod)
	l := ledger.New(chain, ledger.Options{
		Calculator: power.NewCalculator(params.MaxLockDuration, gate),
		Gate:       gate,
		Policy:     policy,
		Clock:      c,
	})

	return &fixture{manager: New(l, params.ExitFeeBasisPoints), ledger: l, chain: chain, clock: c}
}

func (f *fixture) lock(t *testing.T, owner string, amount int64, duration time.Duration) string {
	t.Helper()
	ctx := context.Background()
	if _, err := f.chain.Mint(ctx, owner, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	lock, err := f.ledger.CreateLock(ctx, owner, decimal.NewFromInt(amount), duration, false)
	if err != nil {
		t.Fatalf("CreateLock failed: %v", err)
	}
	return lock.Id
}

func fifo() models.QueueParams {
	return models.QueueParams{Discipline: models.QueueDisciplineFIFO, HeadSlots: 1, SlotInterval: day}
}

func TestEnterQueue_StrictlyIncreasingPositions(t *testing.T) {
	f := setupManager(t, fifo())
	ctx := context.Background()

	ids := []struct{ owner, id string }{
		{alice, f.lock(t, alice, 1000, 365*day)},
		{bob, f.lock(t, bob, 1000, 365*day)},
		{alice, f.lock(t, alice, 400, 365*day)},
	}
	f.clock.Advance(warmup.DefaultPeriod)

	last := 0
	for _, l := range ids {
		result, err := f.manager.EnterQueue(ctx, l.owner, l.id)
		if err != nil {
			t.Fatalf("EnterQueue failed: %v", err)
		}
		if result.Pending() || result.Receipt == nil {
			t.Fatalf("Expected a confirmed entry, got %+v", result)
		}
		entry := result.Entry
		if entry.Position <= last {
			t.Errorf("Expected position above %d, got %d", last, entry.Position)
		}
		if entry.ExitFeeBasisPoints != 250 {
			t.Errorf("Expected fee of 250 bps, got %d", entry.ExitFeeBasisPoints)
		}
		last = entry.Position
	}

	_, err := f.manager.EnterQueue(ctx, alice, ids[0].id)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrAlreadyQueued) {
		t.Errorf("Expected double enqueue conflict, got %v", err)
	}

	entries, err := f.manager.Entries(ctx, alice)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Position != 1 || entries[1].Position != 3 {
		t.Errorf("Expected alice at positions 1 and 3, got %+v", entries)
	}

	all, err := f.manager.Queue(ctx)
	if err != nil {
		t.Fatalf("Queue failed: %v", err)
	}
	if len(all) != 3 || !all[0].Ready || all[1].Ready {
		t.Errorf("Expected only the head to be ready, got %+v", all)
	}
	if !all[2].EstimatedReadyAt.Equal(f.clock.Now().Add(2 * day)) {
		t.Errorf("Expected third entry estimate two slots out, got %v", all[2].EstimatedReadyAt)
	}
}

// queueReadsFail passes everything through until an enter_queue submission lands, then
// fails every read.
type queueReadsFail struct {
	store.ChainAdapter
	submitted atomic.Bool
}

func (a *queueReadsFail) Submit(ctx context.Context, sub store.Submission) (store.Handle, error) {
	handle, err := a.ChainAdapter.Submit(ctx, sub)
	if err == nil && sub.Command == store.CommandEnterQueue {
		a.submitted.Store(true)
	}
	return handle, err
}

func (a *queueReadsFail) Read(ctx context.Context, req store.ReadRequest) (*store.ReadResult, error) {
	if a.submitted.Load() {
		return nil, errors.New("chain unreachable")
	}
	return a.ChainAdapter.Read(ctx, req)
}

func TestEnterQueue_ConfirmedWithoutReadableEntry(t *testing.T) {
	f := setupManager(t, fifo())
	ctx := context.Background()

	id := f.lock(t, alice, 1000, 365*day)
	f.clock.Advance(warmup.DefaultPeriod)

	l := ledger.New(&queueReadsFail{ChainAdapter: f.chain}, ledger.Options{Clock: f.clock})
	result, err := New(l, 250).EnterQueue(ctx, alice, id)
	if err != nil {
		t.Fatalf("Expected a confirmed command despite the failed read, got %v", err)
	}
	if !result.Pending() || result.Entry != nil {
		t.Errorf("Expected a pending result, got %+v", result)
	}
	if result.Receipt == nil || result.Receipt.Handle == "" || result.Receipt.Status != models.ReceiptConfirmed {
		t.Errorf("Expected the confirmed receipt, got %+v", result.Receipt)
	}

	entries, err := f.manager.Entries(ctx, alice)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].TokenId != id {
		t.Errorf("Expected the lock to be queued on chain, got %+v", entries)
	}
}

func TestEnterQueue_Rejections(t *testing.T) {
	f := setupManager(t, fifo())
	ctx := context.Background()

	warming := f.lock(t, alice, 100, 365*day)
	_, err := f.manager.EnterQueue(ctx, alice, warming)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrWarmupIncomplete) {
		t.Errorf("Expected warmup conflict, got %v", err)
	}

	_, err = f.manager.EnterQueue(ctx, bob, warming)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrLockNotFound) {
		t.Errorf("Expected foreign lock to be not found, got %v", err)
	}

	f.clock.Advance(366 * day)
	_, err = f.manager.EnterQueue(ctx, alice, warming)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrLockExpired) {
		t.Errorf("Expected expired conflict, got %v", err)
	}
}

func TestWithdraw_FIFO(t *testing.T) {
	f := setupManager(t, fifo())
	ctx := context.Background()

	first := f.lock(t, alice, 1000, 365*day)
	second := f.lock(t, bob, 2000, 365*day)
	f.clock.Advance(warmup.DefaultPeriod)

	// Not queued at all
	_, err := f.manager.Withdraw(ctx, alice, first)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrQueueNotReady) {
		t.Fatalf("Expected unqueued withdraw conflict, got %v", err)
	}

	if _, err := f.manager.EnterQueue(ctx, alice, first); err != nil {
		t.Fatalf("EnterQueue failed: %v", err)
	}
	if _, err := f.manager.EnterQueue(ctx, bob, second); err != nil {
		t.Fatalf("EnterQueue failed: %v", err)
	}

	_, err = f.manager.Withdraw(ctx, bob, second)
	if !store.IsStateConflict(err) || !errors.Is(err, store.ErrQueueNotReady) {
		t.Fatalf("Expected premature withdraw conflict, got %v", err)
	}
	lock, err := f.ledger.Lock(ctx, bob, second)
	if err != nil {
		t.Fatalf("Expected lock to survive a premature withdraw: %v", err)
	}
	if !lock.LockedAmount.Equal(decimal.NewFromInt(2000)) || lock.State != models.LockStateQueued {
		t.Errorf("Expected untouched queued lock, got %s / %s", lock.LockedAmount, lock.State)
	}

	result, err := f.manager.Withdraw(ctx, alice, first)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	// 250 bps of 1000
	if !result.Fee.Equal(decimal.NewFromInt(25)) || !result.Returned.Equal(decimal.NewFromInt(975)) {
		t.Errorf("Expected fee 25 and 975 returned, got %s and %s", result.Fee, result.Returned)
	}
	if result.TxHash == "" {
		t.Error("Expected a transaction handle")
	}

	balance, _ := f.chain.GetBalance(ctx, alice)
	if !balance.Equal(decimal.NewFromInt(975)) {
		t.Errorf("Expected wallet to receive 975, got %s", balance)
	}
	if _, err := f.ledger.Lock(ctx, alice, first); !errors.Is(err, store.ErrLockNotFound) {
		t.Errorf("Expected withdrawn lock to be gone, got %v", err)
	}

	// The next entry reaches the head
	lock, err = f.ledger.Lock(ctx, bob, second)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if *lock.ExitQueuePosition != 1 || !lock.CanWithdraw {
		t.Errorf("Expected bob at the head and withdrawable, got position %d", *lock.ExitQueuePosition)
	}
	if _, err := f.manager.Withdraw(ctx, bob, second); err != nil {
		t.Errorf("Expected head withdraw to succeed, got %v", err)
	}
}

func TestWithdraw_ExpiredLockNeedsNoQueue(t *testing.T) {
	f := setupManager(t, fifo())
	ctx := context.Background()

	id := f.lock(t, alice, 1000, 30*day)
	f.clock.Advance(30 * day)

	result, err := f.manager.Withdraw(ctx, alice, id)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if !result.Fee.IsZero() || !result.Returned.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected full refund, got fee %s returned %s", result.Fee, result.Returned)
	}
}

func TestWithdraw_DwellPolicy(t *testing.T) {
	f := setupManager(t, models.QueueParams{Discipline: models.QueueDisciplineDwell, MinDwell: 7 * day})
	ctx := context.Background()

	first := f.lock(t, alice, 1000, 365*day)
	second := f.lock(t, bob, 1000, 365*day)
	f.clock.Advance(warmup.DefaultPeriod)

	for _, l := range []struct{ owner, id string }{{alice, first}, {bob, second}} {
		if _, err := f.manager.EnterQueue(ctx, l.owner, l.id); err != nil {
			t.Fatalf("EnterQueue failed: %v", err)
		}
	}

	f.clock.Advance(7*day - time.Second)
	if _, err := f.manager.Withdraw(ctx, alice, first); !errors.Is(err, store.ErrQueueNotReady) {
		t.Fatalf("Expected dwell not yet elapsed, got %v", err)
	}

	// Position does not matter under dwell
	f.clock.Advance(time.Second)
	if _, err := f.manager.Withdraw(ctx, bob, second); err != nil {
		t.Errorf("Expected second entry to withdraw once dwell elapsed, got %v", err)
	}
	if _, err := f.manager.Withdraw(ctx, alice, first); err != nil {
		t.Errorf("Expected first entry to withdraw once dwell elapsed, got %v", err)
	}
}
