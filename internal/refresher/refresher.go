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

package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vote-escrow-go/internal/cache"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultInterval        = 5 * time.Second
	DefaultEventRetention  = 10 * time.Minute
	DefaultCleanupInterval = time.Minute

	TriggerInterval = "interval"
	TriggerEvent    = "event"
	TriggerTrack    = "track"
)

// Config contains configuration for Refresher
type Config struct {
	Ledger          *ledger.Ledger
	Interval        time.Duration
	EventRetention  time.Duration
	CleanupInterval time.Duration
}

// ownerState keeps raw chain state only. Views are derived from it at read time.
type ownerState struct {
	snapshot    cache.Snapshot
	loaded      bool
	lastErr     error
	refreshedAt time.Time
}

// Refresher keeps the lock views of tracked owners current. Every owner is re-read on a fixed
// interval and again whenever the chain publishes an event that touches it. Event-triggered
// refreshes are coalesced per owner, and each chain event id is handled once.
type Refresher struct {
	ledger *ledger.Ledger

	mutex  sync.RWMutex
	owners map[string]*ownerState

	// State management for processed chain events
	eventsMutex     sync.Mutex
	processedEvents map[string]time.Time
	eventRetention  time.Duration
	cleanupInterval time.Duration
	interval        time.Duration

	pendingMutex sync.Mutex
	pending      map[string]bool
	wake         chan struct{}

	unsubscribe func()

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.EventRetention <= 0 {
		cfg.EventRetention = DefaultEventRetention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Refresher{
		ledger:          cfg.Ledger,
		owners:          make(map[string]*ownerState),
		processedEvents: make(map[string]time.Time),
		eventRetention:  cfg.EventRetention,
		cleanupInterval: cfg.CleanupInterval,
		interval:        cfg.Interval,
		pending:         make(map[string]bool),
		wake:            make(chan struct{}, 1),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start subscribes to chain events and launches the refresh loops
func (r *Refresher) Start(ctx context.Context) error {
	zap.L().Info("Starting lock refresher")

	unsubscribe, err := r.ledger.Adapter().Subscribe("*", r.onEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to chain events: %w", err)
	}
	r.unsubscribe = unsubscribe

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); r.pollLoop(ctx) }()
	go func() { defer wg.Done(); r.eventLoop(ctx) }()
	go func() { defer wg.Done(); r.cleanupLoop(ctx) }()
	go func() {
		wg.Wait()
		close(r.doneChan)
	}()

	zap.L().Info("Lock refresher started successfully",
		zap.Duration("interval", r.interval),
		zap.Duration("event_retention", r.eventRetention))
	return nil
}

// Stop gracefully stops the refresher. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		zap.L().Info("Stopping lock refresher")
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		close(r.stopChan)
		if r.unsubscribe != nil {
			<-r.doneChan
		}
		zap.L().Info("Lock refresher stopped")
	})
}

// Track adds owner to the refreshed set and schedules its first refresh
func (r *Refresher) Track(owner string) {
	if owner == "" {
		return
	}
	r.mutex.Lock()
	_, exists := r.owners[owner]
	if !exists {
		r.owners[owner] = &ownerState{snapshot: cache.Snapshot{Owner: owner}}
	}
	count := len(r.owners)
	r.mutex.Unlock()

	if !exists {
		r.ledger.Metrics().TrackedOwners(count)
		zap.L().Debug("Tracking owner", zap.String("owner", owner))
		r.schedule(owner)
	}
}

// Untrack stops refreshing owner and drops everything cached for it. Called when the owner's
// wallet disconnects.
func (r *Refresher) Untrack(owner string) {
	r.mutex.Lock()
	_, exists := r.owners[owner]
	delete(r.owners, owner)
	count := len(r.owners)
	r.mutex.Unlock()

	r.pendingMutex.Lock()
	delete(r.pending, owner)
	r.pendingMutex.Unlock()

	r.ledger.Invalidate(owner)
	if exists {
		r.ledger.Metrics().TrackedOwners(count)
		zap.L().Debug("Stopped tracking owner", zap.String("owner", owner))
	}
}

func (r *Refresher) Tracked() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	owners := make([]string, 0, len(r.owners))
	for owner := range r.owners {
		owners = append(owners, owner)
	}
	return owners
}

// LockView serves owner's last refreshed state with every derived field recomputed at the
// current time. An untracked owner becomes tracked and reports Loading until its first refresh
// succeeds. If that refresh failed, the failure is returned instead. The view is flagged stale
// while the last refresh failed or the cached snapshot has been invalidated.
func (r *Refresher) LockView(_ context.Context, owner string) (models.LockView, error) {
	r.mutex.RLock()
	state, ok := r.owners[owner]
	var (
		snapshot cache.Snapshot
		loaded   bool
		err      error
	)
	if ok {
		snapshot, loaded, err = state.snapshot, state.loaded, state.lastErr
	}
	r.mutex.RUnlock()

	if !ok {
		r.Track(owner)
		return models.LockView{Owner: owner, Loading: true}, nil
	}
	if !loaded {
		if err != nil {
			return models.LockView{Owner: owner}, err
		}
		return models.LockView{Owner: owner, Loading: true}, nil
	}

	stale := err != nil
	if cached, ok := r.ledger.Cached(owner); ok {
		if !cached.FetchedAt.Before(snapshot.FetchedAt) {
			snapshot = cached
		}
	} else {
		stale = true
	}
	return r.ledger.DecorateSnapshot(snapshot, stale), nil
}

// RefreshNow refreshes owner synchronously, tracking it if needed
func (r *Refresher) RefreshNow(ctx context.Context, owner string) (models.LockView, error) {
	r.Track(owner)
	return r.refreshOwner(ctx, owner, TriggerTrack)
}

// pollLoop refreshes every tracked owner on each tick
func (r *Refresher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshAll(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// eventLoop drains owners scheduled by chain events or Track
func (r *Refresher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-r.wake:
			for _, owner := range r.drainPending() {
				trigger := TriggerEvent
				r.mutex.RLock()
				state, ok := r.owners[owner]
				if ok && !state.loaded {
					trigger = TriggerTrack
				}
				r.mutex.RUnlock()
				if ok {
					_, _ = r.refreshOwner(ctx, owner, trigger)
				}
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	owners := r.Tracked()
	var wg sync.WaitGroup
	for _, owner := range owners {
		wg.Add(1)
		go func(o string) {
			defer wg.Done()
			_, _ = r.refreshOwner(ctx, o, TriggerInterval)
		}(owner)
	}
	wg.Wait()
}

func (r *Refresher) refreshOwner(ctx context.Context, owner, trigger string) (models.LockView, error) {
	start := time.Now()
	snapshot, err := r.ledger.Fetch(ctx, owner)
	r.ledger.Metrics().RefreshDuration(trigger, time.Since(start))

	r.mutex.Lock()
	state, tracked := r.owners[owner]
	if tracked {
		state.lastErr = err
		if err == nil {
			state.snapshot = snapshot
			state.loaded = true
			state.refreshedAt = time.Now()
		}
	}
	r.mutex.Unlock()

	// Untrack ran while the read was in flight; drop what the fetch just cached.
	if !tracked {
		r.ledger.Invalidate(owner)
	}

	if err != nil {
		r.ledger.Metrics().Refresh(trigger, "error")
		zap.L().Warn("Failed to refresh owner",
			zap.String("owner", owner),
			zap.String("trigger", trigger),
			zap.Error(err))
		return models.LockView{Owner: owner}, err
	}
	r.ledger.Metrics().Refresh(trigger, "success")
	return r.ledger.DecorateSnapshot(snapshot, false), nil
}

// onEvent runs on the adapter's delivery goroutine and must not block
func (r *Refresher) onEvent(event models.ChainEvent) {
	if event.Id != "" && !r.markEventProcessed(event.Id) {
		return
	}
	r.mutex.RLock()
	_, tracked := r.owners[event.Owner]
	r.mutex.RUnlock()
	if !tracked {
		return
	}

	zap.L().Debug("Chain event for tracked owner",
		zap.String("event", event.Name),
		zap.String("owner", event.Owner),
		zap.String("token_id", event.TokenId))
	r.ledger.Invalidate(event.Owner)
	r.schedule(event.Owner)
}

func (r *Refresher) schedule(owner string) {
	r.pendingMutex.Lock()
	r.pending[owner] = true
	r.pendingMutex.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Refresher) drainPending() []string {
	r.pendingMutex.Lock()
	defer r.pendingMutex.Unlock()
	owners := make([]string, 0, len(r.pending))
	for owner := range r.pending {
		owners = append(owners, owner)
	}
	r.pending = make(map[string]bool)
	return owners
}

// markEventProcessed records id and reports whether it was new
func (r *Refresher) markEventProcessed(id string) bool {
	r.eventsMutex.Lock()
	defer r.eventsMutex.Unlock()
	if _, exists := r.processedEvents[id]; exists {
		return false
	}
	r.processedEvents[id] = time.Now()
	return true
}

// cleanupLoop periodically cleans old processed event ids
func (r *Refresher) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupProcessedEvents(time.Now())
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) cleanupProcessedEvents(now time.Time) {
	r.eventsMutex.Lock()
	defer r.eventsMutex.Unlock()

	cutoff := now.Add(-r.eventRetention)
	cleaned := 0
	for id, processedAt := range r.processedEvents {
		if processedAt.Before(cutoff) {
			delete(r.processedEvents, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed events",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(r.processedEvents)))
	}
}
