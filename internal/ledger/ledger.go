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

package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vote-escrow-go/internal/cache"
	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/metrics"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/store"
	"vote-escrow-go/internal/warmup"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultCallTimeout = 10 * time.Second

// Options wire the ledger to its collaborators. Zero values fall back to defaults.
type Options struct {
	Calculator  *power.Calculator
	Gate        *warmup.Gate
	Policy      queue.Policy
	Clock       *clock.Clock
	Cache       *cache.SnapshotCache
	Metrics     *metrics.Recorder
	CallTimeout time.Duration
}

// Ledger is the owner-scoped source of truth for lock state. It reads raw positions from the
// chain adapter, decorates them with power, warmup and queue status, and runs the lock commands.
type Ledger struct {
	adapter     store.ChainAdapter
	calc        *power.Calculator
	gate        *warmup.Gate
	policy      queue.Policy
	clock       *clock.Clock
	cache       *cache.SnapshotCache
	metrics     *metrics.Recorder
	callTimeout time.Duration
	guard       *guard

	capsMu     sync.Mutex
	caps       models.Capabilities
	capsLoaded bool
}

func New(adapter store.ChainAdapter, opts Options) *Ledger {
	gate := opts.Gate
	if gate == nil {
		gate = warmup.NewGate(warmup.DefaultPeriod)
	}
	calc := opts.Calculator
	if calc == nil {
		calc = power.NewCalculator(power.DefaultMaxLockDuration, gate)
	}
	policy := opts.Policy
	if policy == nil {
		policy = queue.FIFOPolicy{HeadSlots: 1}
	}
	c := opts.Clock
	if c == nil {
		c = &clock.Clock{}
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Ledger{
		adapter:     adapter,
		calc:        calc,
		gate:        gate,
		policy:      policy,
		clock:       c,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		callTimeout: timeout,
		guard:       newGuard(),
	}
}

func (l *Ledger) Adapter() store.ChainAdapter { return l.adapter }
func (l *Ledger) Calculator() *power.Calculator { return l.calc }
func (l *Ledger) Gate() *warmup.Gate { return l.gate }
func (l *Ledger) Policy() queue.Policy { return l.policy }
func (l *Ledger) Clock() *clock.Clock { return l.clock }
func (l *Ledger) Metrics() *metrics.Recorder { return l.metrics }
func (l *Ledger) CallTimeout() time.Duration { return l.callTimeout }

// Refresh reads owner's locks from chain and returns them decorated at the current time.
func (l *Ledger) Refresh(ctx context.Context, owner string) ([]models.TokenLock, error) {
	view, err := l.View(ctx, owner)
	if err != nil {
		return nil, err
	}
	return view.Locks, nil
}

// View refreshes owner and returns locks plus the power breakdown from one consistent read.
func (l *Ledger) View(ctx context.Context, owner string) (models.LockView, error) {
	snapshot, err := l.Fetch(ctx, owner)
	if err != nil {
		return models.LockView{Owner: owner}, err
	}
	return l.DecorateSnapshot(snapshot, false), nil
}

// Fetch reads owner's raw chain state and caches it. Nothing derived is computed here.
func (l *Ledger) Fetch(ctx context.Context, owner string) (cache.Snapshot, error) {
	if owner == "" {
		return cache.Snapshot{}, store.Validation("refresh", owner, "", store.ErrInvalidOwner)
	}

	snapshot, err := l.fetch(ctx, owner)
	if err != nil {
		zap.L().Warn("Failed to refresh locks", zap.String("owner", owner), zap.Error(err))
		return cache.Snapshot{}, err
	}
	if l.cache != nil {
		l.cache.Put(snapshot)
	}

	zap.L().Debug("Refreshed locks", zap.String("owner", owner), zap.Int("count", len(snapshot.Locks)))
	return snapshot, nil
}

// DecorateSnapshot derives the view of snapshot at the current time.
func (l *Ledger) DecorateSnapshot(snapshot cache.Snapshot, stale bool) models.LockView {
	return l.decorateView(snapshot, l.clock.Now(), stale)
}

// Cached returns the raw snapshot held for owner, if any.
func (l *Ledger) Cached(owner string) (cache.Snapshot, bool) {
	if l.cache == nil {
		return cache.Snapshot{}, false
	}
	return l.cache.Get(owner)
}

// Snapshot returns the last known view for owner without touching the chain. The view is
// flagged stale; power and warmup are still recomputed at the current time.
func (l *Ledger) Snapshot(owner string) (models.LockView, bool) {
	snapshot, ok := l.Cached(owner)
	if !ok {
		return models.LockView{}, false
	}
	return l.DecorateSnapshot(snapshot, true), true
}

// Invalidate forgets the cached snapshot for owner.
func (l *Ledger) Invalidate(owner string) {
	if l.cache != nil && l.cache.Invalidate(owner) {
		zap.L().Debug("Invalidated cached locks", zap.String("owner", owner))
	}
}

func (l *Ledger) Breakdown(ctx context.Context, owner string) (models.VotingPowerBreakdown, error) {
	view, err := l.View(ctx, owner)
	if err != nil {
		return models.VotingPowerBreakdown{}, err
	}
	return view.Breakdown, nil
}

// Lock refreshes owner and returns the lock with the given id. A lock owned by someone else
// is reported as not found.
func (l *Ledger) Lock(ctx context.Context, owner, tokenId string) (models.TokenLock, error) {
	return l.Lookup(ctx, "lock", owner, tokenId)
}

// Lookup is Lock with errors attributed to op.
func (l *Ledger) Lookup(ctx context.Context, op, owner, tokenId string) (models.TokenLock, error) {
	locks, err := l.Refresh(ctx, owner)
	if err != nil {
		return models.TokenLock{}, err
	}
	for _, lock := range locks {
		if lock.Id == tokenId {
			return lock, nil
		}
	}
	return models.TokenLock{}, store.StateConflict(op, owner, tokenId, store.ErrLockNotFound)
}

// Capabilities reads the chain's optional features once and remembers a successful answer.
func (l *Ledger) Capabilities(ctx context.Context) (models.Capabilities, error) {
	l.capsMu.Lock()
	defer l.capsMu.Unlock()
	if l.capsLoaded {
		return l.caps, nil
	}

	result, err := l.read(ctx, "capabilities", store.ReadRequest{Entity: store.EntityCapabilities})
	if err != nil {
		return models.Capabilities{}, err
	}
	l.caps = result.Capabilities
	l.capsLoaded = true
	zap.L().Info("Chain capabilities loaded",
		zap.Bool("delegation", l.caps.Delegation),
		zap.Bool("transfers", l.caps.Transfers))
	return l.caps, nil
}

// Decorate derives the read model of one raw lock.
func (l *Ledger) Decorate(raw models.RawLock, book *queue.Book, now time.Time) models.TokenLock {
	lock := models.TokenLock{
		Id:               raw.Id,
		Owner:            raw.Owner,
		LockedAmount:     raw.Amount,
		LockEnd:          raw.LockEnd,
		CreatedAt:        raw.CreatedAt,
		WarmupEndsAt:     l.gate.EndsAt(raw.CreatedAt),
		IsWarmupComplete: l.gate.IsComplete(raw.CreatedAt, now),
		Transferable:     raw.Transferable,
		DelegatedTo:      raw.DelegatedTo,
	}

	if book != nil {
		if entry, ok := book.Entry(raw.Id, now); ok {
			position := entry.Position
			lock.ExitQueue = &entry
			lock.ExitQueuePosition = &position
		}
	}

	switch {
	case !now.Before(raw.LockEnd):
		lock.State = models.LockStateWithdrawable
		lock.CanWithdraw = true
	case lock.IsQueued() && lock.ExitQueue.Ready:
		lock.State = models.LockStateWithdrawable
		lock.CanWithdraw = true
	case lock.IsQueued():
		lock.State = models.LockStateQueued
	case !lock.IsWarmupComplete:
		lock.State = models.LockStateWarming
	default:
		lock.State = models.LockStateActive
	}

	lock.VotingPower = l.calc.EffectivePower(raw, lock.IsQueued(), now)
	return lock
}

func (l *Ledger) decorateView(snapshot cache.Snapshot, now time.Time, stale bool) models.LockView {
	book := queue.NewBook(l.policy, snapshot.Queue)
	locks := make([]models.TokenLock, 0, len(snapshot.Locks))
	for _, raw := range snapshot.Locks {
		locks = append(locks, l.Decorate(raw, book, now))
	}

	total := l.calc.Aggregate(locks, now)
	available := total.Sub(snapshot.PowerUsed)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return models.LockView{
		Owner: snapshot.Owner,
		Locks: locks,
		Breakdown: models.VotingPowerBreakdown{
			Owner:            snapshot.Owner,
			TotalVotingPower: total,
			PowerUsed:        snapshot.PowerUsed,
			PowerAvailable:   available,
			AsOf:             now,
		},
		Stale: stale,
		AsOf:  snapshot.FetchedAt,
	}
}

// fetch reads locks, the exit queue and committed power concurrently.
func (l *Ledger) fetch(ctx context.Context, owner string) (cache.Snapshot, error) {
	var locks, records, used *store.ReadResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		locks, err = l.read(gctx, "refresh", store.ReadRequest{Entity: store.EntityLocks, Owner: owner})
		return err
	})
	g.Go(func() error {
		var err error
		records, err = l.read(gctx, "refresh", store.ReadRequest{Entity: store.EntityExitQueue, Owner: owner})
		return err
	})
	g.Go(func() error {
		var err error
		used, err = l.read(gctx, "refresh", store.ReadRequest{Entity: store.EntityPowerUsed, Owner: owner})
		return err
	})
	if err := g.Wait(); err != nil {
		return cache.Snapshot{}, err
	}

	return cache.Snapshot{
		Owner:     owner,
		Locks:     locks.Locks,
		Queue:     records.Queue,
		PowerUsed: used.PowerUsed,
		FetchedAt: l.clock.Now(),
	}, nil
}

// QueueBook reads the global exit queue into an ordered book.
func (l *Ledger) QueueBook(ctx context.Context, owner string) (*queue.Book, error) {
	result, err := l.read(ctx, "exit_queue", store.ReadRequest{Entity: store.EntityExitQueue, Owner: owner})
	if err != nil {
		return nil, err
	}
	return queue.NewBook(l.policy, result.Queue), nil
}

func (l *Ledger) read(ctx context.Context, op string, req store.ReadRequest) (*store.ReadResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	result, err := l.adapter.Read(callCtx, req)
	if err != nil {
		err = store.Classify(op, req.Owner, req.TokenId, err)
		l.metrics.AdapterError(op, store.KindOf(err).String())
		return nil, err
	}
	if result == nil {
		return nil, store.Transient(op, req.Owner, req.TokenId, fmt.Errorf("empty %s read", req.Entity))
	}
	return result, nil
}
