package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *StateStore {
	t.Helper()
	return NewStateStore(filepath.Join(t.TempDir(), "bot_state.json"))
}

func TestStateRoundTrip(t *testing.T) {
	store := tempStore(t)
	now := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

	st := store.Load(now)
	assert.Equal(t, "2026-06-02", st.Date)
	assert.Zero(t, st.TradesToday)
	assert.Nil(t, st.OpenPosition)

	entry := time.Date(2026, 6, 2, 14, 5, 0, 0, time.UTC)
	st.TradesToday = 1
	st.OpenPosition = &OpenPosition{Symbol: "AAPL", Qty: 71, EntryPrice: 100.5, EntryTime: entry, OrderID: 42}
	require.NoError(t, store.Save(st))

	got := store.Load(now)
	assert.Equal(t, st.TradesToday, got.TradesToday)
	require.NotNil(t, got.OpenPosition)
	assert.Equal(t, "AAPL", got.OpenPosition.Symbol)
	assert.True(t, got.OpenPosition.EntryTime.Equal(entry))
}

func TestStateDayRollover(t *testing.T) {
	store := tempStore(t)
	yesterday := time.Date(2026, 6, 1, 23, 50, 0, 0, time.UTC)
	st := store.Load(yesterday)
	st.TradesToday = 2
	require.NoError(t, store.Save(st))

	today := time.Date(2026, 6, 2, 0, 5, 0, 0, time.UTC)
	got := store.Load(today)
	assert.Equal(t, "2026-06-02", got.Date)
	assert.Zero(t, got.TradesToday, "counter resets on new UTC day")

	// Idempotent: a second check on the same day rolls nothing.
	assert.False(t, resetIfNewDay(&got, today))
	assert.Zero(t, got.TradesToday)
}

func TestStateCorruptFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	now := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	st := NewStateStore(path).Load(now)
	assert.Equal(t, "2026-06-02", st.Date)
	assert.Zero(t, st.TradesToday)
	assert.Nil(t, st.OpenPosition)
}

// ---- reconciliation ----

func openState(entry time.Time) TradeState {
	return TradeState{
		Date:        "2026-06-02",
		TradesToday: 1,
		OpenPosition: &OpenPosition{
			Symbol: "AAPL", Qty: 71, EntryPrice: 100.0, EntryTime: entry, OrderID: 42,
		},
	}
}

func TestReconcileNoopWithoutPosition(t *testing.T) {
	st := TradeState{Date: "2026-06-02"}
	outcome, rec := reconcileClose(&st, nil, nil, nil, time.Now())
	assert.Equal(t, ReconcileNoop, outcome)
	assert.Nil(t, rec)
}

func TestReconcileStillOpen(t *testing.T) {
	entry := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	st := openState(entry)

	outcome, _ := reconcileClose(&st, []PositionReport{{Symbol: "AAPL", Qty: 71}}, nil, nil, entry.Add(time.Hour))
	assert.Equal(t, ReconcileStillOpen, outcome)
	assert.NotNil(t, st.OpenPosition)

	outcome, _ = reconcileClose(&st, nil, []OpenOrderReport{{OrderID: 43, Symbol: "AAPL"}}, nil, entry.Add(time.Hour))
	assert.Equal(t, ReconcileStillOpen, outcome, "live orders also keep the trade active")
}

func TestReconcileClosedAdvancesWatermark(t *testing.T) {
	entry := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	exit := entry.Add(30 * time.Minute)
	st := openState(entry)
	now := entry.Add(time.Hour)

	execs := []ExecutionReport{
		{ExecID: "old", Symbol: "AAPL", Side: SideSell, Qty: 71, Price: 95, Time: entry.Add(-time.Hour)},
		{ExecID: "fill", Symbol: "AAPL", Side: SideSell, Qty: 71, Price: 101.2, Time: exit},
		{ExecID: "buy", Symbol: "AAPL", Side: SideBuy, Qty: 71, Price: 100, Time: exit},
		{ExecID: "other", Symbol: "MSFT", Side: SideSell, Qty: 5, Price: 300, Time: exit},
	}

	outcome, rec := reconcileClose(&st, nil, nil, execs, now)
	require.Equal(t, ReconcileClosed, outcome)
	require.NotNil(t, rec)
	assert.InDelta(t, (101.2-100.0)*71, rec.PnL, 1e-9)
	assert.True(t, rec.ExitTime.Equal(exit))
	assert.Nil(t, st.OpenPosition)
	require.NotNil(t, st.LastCloseTime)
	assert.True(t, st.LastCloseTime.Equal(exit))

	// Idempotent: the same snapshots against the cleared state do nothing.
	outcome, rec = reconcileClose(&st, nil, nil, execs, now)
	assert.Equal(t, ReconcileNoop, outcome)
	assert.Nil(t, rec)
}

func TestReconcilePicksMostRecentExecution(t *testing.T) {
	entry := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	st := openState(entry)

	execs := []ExecutionReport{
		{ExecID: "a", Symbol: "AAPL", Side: SideSell, Qty: 40, Price: 100.5, Time: entry.Add(10 * time.Minute)},
		{ExecID: "b", Symbol: "AAPL", Side: SideSell, Qty: 31, Price: 101.0, Time: entry.Add(20 * time.Minute)},
	}
	outcome, rec := reconcileClose(&st, nil, nil, execs, entry.Add(time.Hour))
	require.Equal(t, ReconcileClosed, outcome)
	assert.Equal(t, 101.0, rec.ExitPrice)
}

func TestReconcileWatermarkExcludesProcessedCloses(t *testing.T) {
	entry := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	prevClose := entry.Add(15 * time.Minute)
	st := openState(entry)
	st.LastCloseTime = &prevClose

	// Only an execution at/before the watermark exists: treated as already
	// attributed, so the position clears without a close record.
	execs := []ExecutionReport{
		{ExecID: "seen", Symbol: "AAPL", Side: SideSell, Qty: 71, Price: 101, Time: prevClose},
	}
	outcome, rec := reconcileClose(&st, nil, nil, execs, entry.Add(time.Hour))
	assert.Equal(t, ReconcileClearedNoFill, outcome)
	assert.Nil(t, rec)
	assert.Nil(t, st.OpenPosition)
	assert.True(t, st.LastCloseTime.Equal(prevClose), "watermark unchanged")
}

func TestReconcileClearedWhenBrokerFlat(t *testing.T) {
	entry := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	st := openState(entry)

	outcome, rec := reconcileClose(&st, nil, nil, nil, entry.Add(time.Hour))
	assert.Equal(t, ReconcileClearedNoFill, outcome)
	assert.Nil(t, rec, "no close record for a cancelled-without-fill order")
	assert.Nil(t, st.OpenPosition)
	assert.Nil(t, st.LastCloseTime)
}

// ---- CSV logs ----

func TestCSVHeaderAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	require.NoError(t, ensureCSVHeader(path, entryLogHeader))
	require.NoError(t, ensureCSVHeader(path, entryLogHeader), "second call must not duplicate")

	require.NoError(t, appendCSV(path, []string{"2026-06-02T14:00:00Z", "AAPL", "71", "100.5", "fill", "102", "99.8", "42"}))
	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "timestamp_utc,symbol")
	assert.Contains(t, string(bs), "AAPL,71")

	// Header appears exactly once.
	assert.Equal(t, 1, countOccurrences(string(bs), "timestamp_utc"))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
