package ledger

import (
	"fmt"
	"sync"

	"vote-escrow-go/internal/store"
)

// guard admits at most one command per (owner, tokenId) at a time. Lock creation uses an
// empty token id.
type guard struct {
	mu       sync.Mutex
	inflight map[string]string
}

func newGuard() *guard {
	return &guard{inflight: make(map[string]string)}
}

func (g *guard) begin(op, owner, tokenId string) (func(), error) {
	key := owner + "/" + tokenId

	g.mu.Lock()
	defer g.mu.Unlock()
	if running, ok := g.inflight[key]; ok {
		return nil, store.StateConflict(op, owner, tokenId, fmt.Errorf("%w: %s", store.ErrCommandInFlight, running))
	}
	g.inflight[key] = op

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.inflight, key)
		})
	}, nil
}

// Begin claims (owner, tokenId) for op. A second claim fails with ErrCommandInFlight until
// the returned release function is called.
func (l *Ledger) Begin(op, owner, tokenId string) (func(), error) {
	return l.guard.begin(op, owner, tokenId)
}
