package cache

import (
	"time"

	"vote-escrow-go/internal/metrics"
	"vote-escrow-go/internal/models"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
)

const DefaultSize = 1024

// Snapshot is the raw chain state behind one owner's view. Derived values such as voting
// power are never stored; they are recomputed from the clock on every read.
type Snapshot struct {
	Owner     string
	Locks     []models.RawLock
	Queue     []models.QueueRecord
	PowerUsed decimal.Decimal
	FetchedAt time.Time
}

// SnapshotCache is an address-keyed LRU of snapshots. It is safe for concurrent use.
type SnapshotCache struct {
	entries *lru.Cache
	metrics *metrics.Recorder
}

func New(size int, recorder *metrics.Recorder) (*SnapshotCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SnapshotCache{entries: entries, metrics: recorder}, nil
}

func (c *SnapshotCache) Get(owner string) (Snapshot, bool) {
	v, ok := c.entries.Get(owner)
	c.metrics.CacheLookup(ok)
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

func (c *SnapshotCache) Put(s Snapshot) {
	c.entries.Add(s.Owner, s)
}

// Invalidate drops owner's snapshot, e.g. on wallet disconnect or after a mutation.
func (c *SnapshotCache) Invalidate(owner string) bool {
	return c.entries.Remove(owner)
}

func (c *SnapshotCache) Purge() {
	c.entries.Purge()
}

func (c *SnapshotCache) Len() int {
	return c.entries.Len()
}
