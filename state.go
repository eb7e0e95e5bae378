// FILE: state.go
// Package main – Persisted trade state, day rollover, close reconciliation,
// and the append-only entry/close CSV logs.
//
// TradeState is the restart-safe record: UTC calendar date, today's trade
// counter, the tracked open position (at most one), and the last reconciled
// close time (the watermark that stops an already-processed close from being
// attributed to a new cycle).
//
// Persistence rules:
//   • written whole after every mutation, atomically (tmp + rename)
//   • reloaded at process start; unreadable/malformed state degrades to a
//     fresh default rather than halting — losing bookkeeping is preferable
//     to blocking all trading
//   • day rollover (trades_today -> 0) happens on load and is idempotent
//
// reconcileClose is a pure function over (state, gateway snapshots); the
// Trader owns calling it and persisting the result.

package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OpenPosition is the tracked open trade. At most one exists at a time.
type OpenPosition struct {
	Symbol     string    `json:"symbol"`
	Qty        int       `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	OrderID    int64     `json:"order_id"`
}

// TradeState is the persisted engine state.
type TradeState struct {
	Date          string        `json:"date"` // UTC calendar day, YYYY-MM-DD
	TradesToday   int           `json:"trades_today"`
	OpenPosition  *OpenPosition `json:"open_position"`
	LastCloseTime *time.Time    `json:"last_close_time"`
}

func todayUTC(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func defaultState(now time.Time) TradeState {
	return TradeState{Date: todayUTC(now)}
}

// resetIfNewDay advances the date and zeroes the counter when the stored
// calendar day differs from now's UTC day. Returns true when it rolled.
// Calling it repeatedly on the same day is a no-op.
func resetIfNewDay(st *TradeState, now time.Time) bool {
	today := todayUTC(now)
	if st.Date == today {
		return false
	}
	st.Date = today
	st.TradesToday = 0
	return true
}

// StateStore persists TradeState to a single JSON document.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore { return &StateStore{path: path} }

// Load reads the state file, applying the day-rollover rule. Missing or
// corrupt files yield a fresh default state.
func (s *StateStore) Load(now time.Time) TradeState {
	bs, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("[STATE] unreadable %s, starting fresh: %v", s.path, err)
		}
		return defaultState(now)
	}
	var st TradeState
	if err := json.Unmarshal(bs, &st); err != nil {
		logrus.Warnf("[STATE] malformed %s, starting fresh: %v", s.path, err)
		return defaultState(now)
	}
	if st.Date == "" {
		st.Date = todayUTC(now)
	}
	if resetIfNewDay(&st, now) {
		logrus.Infof("[STATE] new UTC day, trades_today reset")
	}
	return st
}

// Save writes the state atomically. An I/O failure here is the one
// non-connectivity condition the engine treats as fatal upstream.
func (s *StateStore) Save(st TradeState) error {
	bs, err := json.MarshalIndent(st, "", " ")
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, s.path), "rename %s", s.path)
}

// ---- Close reconciliation ----

// ReconcileOutcome tells the caller what reconcileClose decided.
type ReconcileOutcome int

const (
	ReconcileNoop           ReconcileOutcome = iota // nothing tracked
	ReconcileStillOpen                              // broker still shows position/orders
	ReconcileClosed                                 // qualifying sell execution found
	ReconcileClearedNoFill                          // broker flat, no matching execution
)

// CloseRecord is one realized close, destined for the close log.
type CloseRecord struct {
	Timestamp  time.Time
	Symbol     string
	Qty        int
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ExitTime   time.Time
}

// reconcileClose checks the tracked open position against gateway snapshots.
//
// If the gateway still reports any position or live order, the trade is
// considered active and nothing changes. Otherwise the most recent SELL
// execution on the tracked symbol strictly after both the entry time and the
// last_close_time watermark determines the realized exit. With no qualifying
// execution the position is cleared without a close record: the broker's
// absence of a position is trusted over the absence of a matching execution
// (a cancelled-without-fill order looks exactly like this). That path drops
// P/L accounting for the trade; it is logged so the gap is visible.
func reconcileClose(st *TradeState, positions []PositionReport, openOrders []OpenOrderReport, execs []ExecutionReport, now time.Time) (ReconcileOutcome, *CloseRecord) {
	pos := st.OpenPosition
	if pos == nil {
		return ReconcileNoop, nil
	}
	if len(positions) > 0 || len(openOrders) > 0 {
		return ReconcileStillOpen, nil
	}

	var best *ExecutionReport
	for i := range execs {
		e := &execs[i]
		if e.Side != SideSell || e.Symbol != pos.Symbol {
			continue
		}
		if !e.Time.After(pos.EntryTime) {
			continue
		}
		if st.LastCloseTime != nil && !e.Time.After(*st.LastCloseTime) {
			continue
		}
		if best == nil || e.Time.After(best.Time) {
			best = e
		}
	}

	if best == nil {
		logrus.Warnf("[RECON] %s cleared without close record (no open pos/orders, no sell execution)", pos.Symbol)
		st.OpenPosition = nil
		return ReconcileClearedNoFill, nil
	}

	rec := &CloseRecord{
		Timestamp:  now.UTC(),
		Symbol:     pos.Symbol,
		Qty:        pos.Qty,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  best.Price,
		PnL:        (best.Price - pos.EntryPrice) * float64(pos.Qty),
		ExitTime:   best.Time.UTC(),
	}
	st.OpenPosition = nil
	t := best.Time.UTC()
	st.LastCloseTime = &t
	return ReconcileClosed, rec
}

// ---- Append-only CSV logs ----

var (
	entryLogHeader = []string{"timestamp_utc", "symbol", "qty", "entry_price", "entry_price_source", "tp_price", "sl_price", "order_id"}
	closeLogHeader = []string{"timestamp_utc", "symbol", "qty", "entry_price", "exit_price", "pnl", "exit_time_utc"}
	scanLogHeader  = []string{"timestamp_utc", "symbol", "region", "score", "reason", "price", "atr_pct"}
)

// ensureCSVHeader writes header to path only when the file is missing or
// empty, so a crash between cycles never duplicates it.
func ensureCSVHeader(path string, header []string) error {
	fi, err := os.Stat(path)
	if err == nil && fi.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "header %s", path)
	}
	w.Flush()
	return w.Error()
}

// appendCSV appends one row. Rows are written whole; O_APPEND keeps them
// intact even after a previous crash mid-cycle.
func appendCSV(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return errors.Wrapf(err, "append %s", path)
	}
	w.Flush()
	return w.Error()
}
