package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Command("create_lock", "success")
	r.Command("create_lock", "success")
	r.Command("withdraw", "state_conflict")
	r.AdapterError("read", "transient")
	r.Refresh("interval", "ok")
	r.RefreshDuration("interval", 25*time.Millisecond)
	r.CacheLookup(true)
	r.CacheLookup(false)
	r.CacheLookup(false)
	r.TrackedOwners(3)

	require.Equal(2.0, testutil.ToFloat64(r.commands.WithLabelValues("create_lock", "success")))
	require.Equal(1.0, testutil.ToFloat64(r.commands.WithLabelValues("withdraw", "state_conflict")))
	require.Equal(1.0, testutil.ToFloat64(r.adapterErrors.WithLabelValues("read", "transient")))
	require.Equal(1.0, testutil.ToFloat64(r.refreshes.WithLabelValues("interval", "ok")))
	require.Equal(1.0, testutil.ToFloat64(r.cacheHits))
	require.Equal(2.0, testutil.ToFloat64(r.cacheMisses))
	require.Equal(3.0, testutil.ToFloat64(r.trackedOwners))
	require.Equal(1, testutil.CollectAndCount(r.refreshDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.Command("create_lock", "success")
		r.AdapterError("read", "transient")
		r.Refresh("event", "error")
		r.RefreshDuration("event", time.Second)
		r.CacheLookup(true)
		r.TrackedOwners(1)
	})
}
