package cache

import (
	"fmt"
	"testing"
	"time"

	"vote-escrow-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache(t *testing.T) {
	require := require.New(t)

	c, err := New(2, nil)
	require.NoError(err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Put(Snapshot{Owner: "a", Locks: []models.RawLock{{Id: "1", Amount: decimal.NewFromInt(10)}}, FetchedAt: now})
	c.Put(Snapshot{Owner: "b", FetchedAt: now})

	got, ok := c.Get("a")
	require.True(ok)
	require.Len(got.Locks, 1)
	require.Equal(now, got.FetchedAt)

	// "b" is now least recently used and is evicted
	c.Put(Snapshot{Owner: "c", FetchedAt: now})
	_, ok = c.Get("b")
	require.False(ok)
	require.Equal(2, c.Len())

	require.True(c.Invalidate("a"))
	require.False(c.Invalidate("a"))
	_, ok = c.Get("a")
	require.False(ok)

	c.Purge()
	require.Zero(c.Len())
}

func TestDefaultSize(t *testing.T) {
	c, err := New(0, nil)
	require.NoError(t, err)
	for i := 0; i < DefaultSize+1; i++ {
		c.Put(Snapshot{Owner: fmt.Sprintf("owner-%d", i)})
	}
	require.Equal(t, DefaultSize, c.Len())
}
