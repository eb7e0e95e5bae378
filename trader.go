// FILE: trader.go
// Package main – The decision loop scheduler: one Cycle() per tick.
//
// A cycle runs strictly sequentially:
//   1) drain async gateway error events -> blacklist classification
//   2) day rollover check (idempotent)
//   3) snapshot positions / open orders / executions
//   4) reconcile any tracked open position against the snapshots
//   5) global caps (daily trades, open positions)
//   6) session gate; closed markets -> sleep-and-retry, not an error
//   7) score every visible candidate (not suppressed, not positioned)
//   8) rank by score descending (stable: universe order breaks ties)
//   9) dispatch brackets up to the per-cycle cap, re-checking the position
//      cap after every dispatch
//
// Concurrency design: the Trader is the sole driver of all mutations to the
// blacklist and the persisted state. Network calls are the only suspension
// points and each carries its own timeout. No two cycles ever overlap.

package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Trader composes the gateway, blacklist, state store, sessions and universe
// into the decision loop.
type Trader struct {
	cfg        Config
	gw         Gateway
	bl         *Blacklist
	store      *StateStore
	state      TradeState
	sessions   []*MarketSession
	candidates []*Candidate

	realizedPnL float64

	// injectable for tests
	now     func() time.Time
	sleepFn func(ctx context.Context, d time.Duration)
}

// NewTrader loads persisted state (applying day rollover) and wires the loop.
func NewTrader(cfg Config, gw Gateway, store *StateStore, sessions []*MarketSession, candidates []*Candidate) *Trader {
	t := &Trader{
		cfg:        cfg,
		gw:         gw,
		bl:         NewBlacklist(),
		store:      store,
		sessions:   sessions,
		candidates: candidates,
		now:        func() time.Time { return time.Now().UTC() },
		sleepFn:    pause,
	}
	t.state = store.Load(t.now())
	mtxTradesToday.Set(float64(t.state.TradesToday))
	return t
}

// State returns a copy of the current persisted state.
func (t *Trader) State() TradeState { return t.state }

// Blacklist exposes the suppression registry (scan mode reads it).
func (t *Trader) Blacklist() *Blacklist { return t.bl }

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// persist writes state after a mutation. Per the error design this is the
// only non-connectivity fatal: losing the ability to record state makes every
// later decision unsafe.
func (t *Trader) persist() {
	if err := t.store.Save(t.state); err != nil {
		logrus.Fatalf("[STATE] persist failed: %v", err)
	}
}

// CycleSummary reports what one cycle did; live.go uses MarketsOpen to pick
// the sleep interval.
type CycleSummary struct {
	MarketsOpen bool
	Evaluated   int
	Ranked      int
	Dispatched  int
	Msg         string
}

// scoredCandidate pairs a candidate with its evaluation for ranking.
type scoredCandidate struct {
	cand *Candidate
	res  ScoreResult
}

// Cycle executes one scheduler tick. Per-candidate failures never abort the
// rest of the cycle; only snapshot failures end it early (as a skipped tick).
func (t *Trader) Cycle(ctx context.Context) (CycleSummary, error) {
	defer mtxCycles.Inc()
	now := t.now()

	t.drainEvents(now)

	if resetIfNewDay(&t.state, now) {
		logrus.Infof("[CYCLE] new UTC day, trades_today reset")
		t.persist()
		mtxTradesToday.Set(0)
	}

	positions, openOrders, execs, err := t.snapshots(ctx)
	if err != nil {
		// A failed snapshot fails this tick, not the process.
		return CycleSummary{MarketsOpen: true, Msg: "snapshot failed"}, err
	}
	mtxOpenPositions.Set(float64(countOpenSymbols(positions)))

	t.reconcile(positions, openOrders, execs, now)

	if t.state.TradesToday >= t.cfg.MaxTradesPerDay {
		return CycleSummary{MarketsOpen: true, Msg: "daily trade cap reached"}, nil
	}
	openCount := countOpenSymbols(positions)
	if t.state.OpenPosition != nil && !symbolPositioned(positions, t.state.OpenPosition.Symbol) {
		// Tracked but not yet visible in the snapshot; count it anyway.
		openCount++
	}
	if openCount >= t.cfg.MaxOpenPositions {
		return CycleSummary{MarketsOpen: true, Msg: "max open positions reached"}, nil
	}
	if t.cfg.MaxOpenPositions == 1 && len(openOrders) > 0 {
		// Strict single-position mode: any live order means a bracket is
		// still working; never stack a second one.
		return CycleSummary{MarketsOpen: true, Msg: "live orders present"}, nil
	}

	if !anySessionOpen(t.sessions, now) {
		return CycleSummary{MarketsOpen: false, Msg: "all sessions closed"}, nil
	}

	scored, evaluated := t.evaluate(ctx, positions, openOrders, now)

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].res.Score > scored[j].res.Score })

	dispatched := t.dispatch(ctx, scored, openCount, now)

	sum := CycleSummary{
		MarketsOpen: true,
		Evaluated:   evaluated,
		Ranked:      len(scored),
		Dispatched:  dispatched,
	}
	sum.Msg = fmt.Sprintf("evaluated=%d ranked=%d dispatched=%d trades_today=%d",
		evaluated, len(scored), dispatched, t.state.TradesToday)
	return sum, nil
}

// drainEvents consumes pending async gateway errors and classifies them into
// the blacklist. Permission and contract failures get the long TTL.
func (t *Trader) drainEvents(now time.Time) {
	for {
		select {
		case ev := <-t.gw.Events():
			cl := classifyCode(ev.Code)
			if ev.Contract != nil {
				logrus.Warnf("[EVENT] code=%d req=%d %s contract=%s", ev.Code, ev.ReqID, ev.Message, ev.Contract.Symbol)
			} else {
				logrus.Warnf("[EVENT] code=%d req=%d %s", ev.Code, ev.ReqID, ev.Message)
			}
			if cl == ErrClassTransient || ev.Contract == nil {
				continue
			}
			key := SuppressKey{
				Symbol:   ev.Contract.Symbol,
				Currency: ev.Contract.Currency,
				Exchange: ev.Contract.PrimaryExchange,
			}
			t.bl.Block(key, t.cfg.LongBlock, classReason(cl, ev.Code), now)
		default:
			return
		}
	}
}

// snapshots fetches the three point-in-time views reconciliation and the
// caps need. Each call gets its own timeout.
func (t *Trader) snapshots(ctx context.Context) ([]PositionReport, []OpenOrderReport, []ExecutionReport, error) {
	pctx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout)
	positions, err := t.gw.Positions(pctx)
	cancel()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "positions snapshot")
	}
	octx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout)
	openOrders, err := t.gw.OpenOrders(octx)
	cancel()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "open orders snapshot")
	}
	ectx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout)
	execs, err := t.gw.Executions(ectx)
	cancel()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "executions snapshot")
	}
	return positions, openOrders, execs, nil
}

// reconcile applies close reconciliation and persists/logs the outcome.
func (t *Trader) reconcile(positions []PositionReport, openOrders []OpenOrderReport, execs []ExecutionReport, now time.Time) {
	outcome, rec := reconcileClose(&t.state, positions, openOrders, execs, now)
	switch outcome {
	case ReconcileClosed:
		logrus.Infof("[RECON] closed %s qty=%d entry=%.2f exit=%.2f pnl=%.2f",
			rec.Symbol, rec.Qty, rec.EntryPrice, rec.ExitPrice, rec.PnL)
		if err := appendCSV(t.cfg.CloseLog, []string{
			rec.Timestamp.Format(time.RFC3339),
			rec.Symbol,
			strconv.Itoa(rec.Qty),
			fmt.Sprintf("%g", rec.EntryPrice),
			fmt.Sprintf("%g", rec.ExitPrice),
			fmt.Sprintf("%.4f", rec.PnL),
			rec.ExitTime.Format(time.RFC3339),
		}); err != nil {
			logrus.Warnf("[RECON] close log append: %v", err)
		}
		t.realizedPnL += rec.PnL
		mtxRealizedPnL.Set(t.realizedPnL)
		mtxCloses.Inc()
		t.persist()
	case ReconcileClearedNoFill:
		t.persist()
	}
}

// evaluate scores every candidate visible this cycle and returns those above
// the threshold, in universe order.
func (t *Trader) evaluate(ctx context.Context, positions []PositionReport, openOrders []OpenOrderReport, now time.Time) ([]scoredCandidate, int) {
	var scored []scoredCandidate
	evaluated := 0
	for _, c := range t.candidates {
		sess := sessionFor(t.sessions, c.Region)
		if sess == nil || !sess.IsOpen(now) {
			continue
		}
		key := c.SuppressKey()
		if t.bl.IsBlocked(key, now) {
			continue
		}
		if symbolPositioned(positions, c.Spec.Symbol) || symbolHasOpenOrder(openOrders, c.Spec.Symbol) {
			continue
		}
		if t.state.OpenPosition != nil && t.state.OpenPosition.Symbol == c.Spec.Symbol {
			continue
		}

		evaluated++
		bctx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout)
		series, err := t.gw.FetchBars(bctx, c.Ref, t.cfg.BarDuration, t.cfg.BarSize, t.cfg.UseRTH)
		cancel()
		if err != nil {
			t.suppressFetchError(key, err, now)
			t.sleepFn(ctx, t.cfg.EvalPause)
			continue
		}

		res := scoreSeries(series, t.cfg.ScoreConfig())
		mtxEvaluations.WithLabelValues(string(res.Reason)).Inc()
		if res.Reason != ReasonOK {
			logrus.Debugf("[CYCLE] %s rejected: %s", c.Spec.Symbol, res.Reason)
			if dataQualityReasons[res.Reason] {
				t.bl.Block(key, t.cfg.ShortBlock, string(res.Reason), now)
			}
			t.sleepFn(ctx, t.cfg.EvalPause)
			continue
		}
		if res.Score >= t.cfg.MinScore {
			scored = append(scored, scoredCandidate{cand: c, res: res})
		}
		t.sleepFn(ctx, t.cfg.EvalPause)
	}
	return scored, evaluated
}

// suppressFetchError classifies a history-fetch failure into the blacklist.
func (t *Trader) suppressFetchError(key SuppressKey, err error, now time.Time) {
	mtxEvaluations.WithLabelValues("fetch_error").Inc()
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		cl := classifyCode(gwErr.Code)
		if cl != ErrClassTransient {
			t.bl.Block(key, t.cfg.LongBlock, classReason(cl, gwErr.Code), now)
			return
		}
	}
	logrus.Warnf("[CYCLE] fetch %s: %v", key.Symbol, err)
	t.bl.Block(key, t.cfg.ShortBlock, "fetch_failed", now)
}

// dispatch submits brackets for the ranked candidates, honoring the per-cycle
// cap and re-checking the global position and daily caps after every dispatch.
func (t *Trader) dispatch(ctx context.Context, ranked []scoredCandidate, openCount int, now time.Time) int {
	dispatched := 0
	for _, sc := range ranked {
		if dispatched >= t.cfg.MaxNewTradesPerCycle {
			break
		}
		if openCount >= t.cfg.MaxOpenPositions {
			break
		}
		if t.state.TradesToday >= t.cfg.MaxTradesPerDay {
			break
		}

		c := sc.cand
		params := t.cfg.BracketParams()
		stopPct := stopDistancePct(sc.res.Price, sc.res.ATR, params)
		qty := positionSize(t.cfg, sc.res.Price, stopPct)
		if qty <= 0 {
			logrus.Infof("[ORDER] skip %s: no viable size at price %.2f", c.Spec.Symbol, sc.res.Price)
			continue
		}

		logrus.Infof("[ORDER] BUY %s (%s) score=%.2f price=%.2f qty=%d",
			c.Spec.Symbol, c.Region, sc.res.Score, sc.res.Price, qty)
		octx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout+params.FillWait)
		b, err := placeBracket(octx, t.gw, c.Ref, qty, sc.res.Price, sc.res.ATR, params)
		cancel()
		if err != nil {
			logrus.Warnf("[ORDER] bracket %s failed: %v", c.Spec.Symbol, err)
			mtxOrders.WithLabelValues("failed").Inc()
			t.bl.Block(c.SuppressKey(), t.cfg.ShortBlock, "place_failed", now)
			continue
		}

		mtxOrders.WithLabelValues("placed").Inc()
		dispatched++
		openCount++ // the bracket is working; treat the slot as taken

		if b.State == BracketFilled {
			t.recordEntry(c, b, now)
		} else {
			logrus.Infof("[ORDER] %s released, no fill yet; reconciliation will pick it up", c.Spec.Symbol)
		}
		t.sleepFn(ctx, t.cfg.DispatchPause)
	}
	return dispatched
}

// recordEntry persists the filled bracket as the tracked open position and
// appends the entry log row.
func (t *Trader) recordEntry(c *Candidate, b *Bracket, now time.Time) {
	mtxOrders.WithLabelValues("filled").Inc()
	if err := appendCSV(t.cfg.EntryLog, []string{
		now.Format(time.RFC3339),
		c.Spec.Symbol,
		strconv.Itoa(b.Qty),
		fmt.Sprintf("%g", b.EntryFill),
		"fill",
		fmt.Sprintf("%g", b.TPPrice),
		fmt.Sprintf("%g", b.SLPrice),
		strconv.FormatInt(b.Parent.OrderID, 10),
	}); err != nil {
		logrus.Warnf("[ORDER] entry log append: %v", err)
	}

	if t.state.OpenPosition == nil {
		t.state.OpenPosition = &OpenPosition{
			Symbol:     c.Spec.Symbol,
			Qty:        b.Qty,
			EntryPrice: b.EntryFill,
			EntryTime:  b.FillTime,
			OrderID:    b.Parent.OrderID,
		}
	}
	t.state.TradesToday++
	t.persist()
	mtxTradesToday.Set(float64(t.state.TradesToday))
	logrus.Infof("[ORDER] filled %s qty=%d entry=%.2f tp=%.2f sl=%.2f order=%d trades_today=%d",
		c.Spec.Symbol, b.Qty, b.EntryFill, b.TPPrice, b.SLPrice, b.Parent.OrderID, t.state.TradesToday)
}

// ---- snapshot helpers ----

func countOpenSymbols(positions []PositionReport) int {
	n := 0
	for _, p := range positions {
		if p.Qty != 0 {
			n++
		}
	}
	return n
}

func symbolPositioned(positions []PositionReport, symbol string) bool {
	for _, p := range positions {
		if p.Symbol == symbol && p.Qty != 0 {
			return true
		}
	}
	return false
}

func symbolHasOpenOrder(orders []OpenOrderReport, symbol string) bool {
	for _, o := range orders {
		if o.Symbol == symbol {
			return true
		}
	}
	return false
}
