package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockSetAdvanceSync(t *testing.T) {
	var c Clock
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Set(base)
	require.Equal(t, base, c.Now())

	c.Advance(72 * time.Hour)
	require.Equal(t, base.Add(72*time.Hour), c.Now())

	c.Sync()
	require.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
