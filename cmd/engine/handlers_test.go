package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/clock"
	"vote-escrow-go/internal/common"
	"vote-escrow-go/internal/database"
	"vote-escrow-go/internal/exitqueue"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/prerequisite"
	"vote-escrow-go/internal/warmup"

	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *api.LockService {
	t.Helper()
	ctx := context.Background()

	c := &clock.Clock{}
	c.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	devnet, err := database.NewInMemory(ctx, database.Options{Clock: c})
	require.NoError(t, err)
	t.Cleanup(devnet.Close)

	l := ledger.New(devnet, ledger.Options{Clock: c})
	gate := warmup.NewGate(warmup.DefaultPeriod)
	agg := prerequisite.New(common.NewWallet("0xaaaa"), devnet, prerequisite.LedgerSource{Ledger: l}, gate, c)
	return api.NewLockService(l, exitqueue.New(l, 100), agg)
}

func TestStatusHandler(t *testing.T) {
	handler := statusHandler(newService(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?account=0xaaaa", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.PrerequisiteStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "0xaaaa", status.Account)
	require.Equal(t, models.RequirementMet, status.Wallet.State)
	require.Equal(t, models.RequirementUnmet, status.TokenLock.State)
	require.False(t, status.IsAllRequirementsMet)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?min_power=lots", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?require_warmup=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeViewer struct{ view models.LockView }

func (f fakeViewer) LockView(_ context.Context, owner string) (models.LockView, error) {
	v := f.view
	v.Owner = owner
	return v, nil
}

func TestLocksHandler(t *testing.T) {
	handler := locksHandler(fakeViewer{view: models.LockView{Loading: true}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/locks", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/locks?owner=0xbbbb", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.LockView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "0xbbbb", view.Owner)
	require.True(t, view.Loading)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(newService(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestParseOwners(t *testing.T) {
	require.Equal(t, []string{"0xa", "0xb"}, parseOwners(" 0xa, ,0xb,"))
	require.Empty(t, parseOwners(""))
}
