// FILE: orders.go
// Package main – Bracket order construction, submission, and fill wait.
//
// A bracket is a parent market BUY plus two linked exits: a take-profit limit
// and a stop-loss stop, sharing one OCA group so the first fill cancels the
// other. Submission order matters:
//
//	parent (transmit=false)  -> gateway assigns the parent order id
//	take-profit (transmit=false, parentId, ocaGroup)
//	stop-loss  (transmit=true,  parentId, ocaGroup)   <- releases the bracket
//
// The lifecycle is tracked as a small state machine so tests can assert it:
//
//	Created -> ChildrenLinked -> Released -> Filled | Cancelled
//
// After release, awaitFill polls the parent's status for a bounded window.
// No fill inside the window is NOT an error and must NOT create tracked
// state: the order may still be pending, and reconciliation picks it up on a
// later cycle.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BracketState is the lifecycle stage of one bracket.
type BracketState int

const (
	BracketCreated BracketState = iota
	BracketChildrenLinked
	BracketReleased
	BracketFilled
	BracketCancelled
)

func (s BracketState) String() string {
	switch s {
	case BracketCreated:
		return "Created"
	case BracketChildrenLinked:
		return "ChildrenLinked"
	case BracketReleased:
		return "Released"
	case BracketFilled:
		return "Filled"
	case BracketCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// BracketParams carries the bracket construction knobs (see Config).
type BracketParams struct {
	Mode          string // "atr" or "pct"
	TakeProfitATR float64
	StopLossATR   float64
	TakeProfitPct float64
	StopLossPct   float64
	PriceTick     float64
	FillWait      time.Duration
	StatusPoll    time.Duration
}

// Bracket tracks one submitted bracket and its leg handles.
type Bracket struct {
	Contract *ContractRef
	Qty      int
	EntryRef float64
	TPPrice  float64
	SLPrice  float64
	OCAGroup string
	State    BracketState

	Parent     OrderHandle
	TakeProfit OrderHandle
	StopLoss   OrderHandle

	// Populated only when State == BracketFilled.
	EntryFill float64
	FillTime  time.Time
}

var errStopBelowZero = errors.New("computed stop price <= 0")

// bracketPrices computes the exit prices from the entry reference and the
// volatility measure, per the configured mode, rounded to the price tick.
func bracketPrices(entryRef, atrVal float64, p BracketParams) (tp, sl float64) {
	if p.Mode == "pct" {
		tp = entryRef * (1 + p.TakeProfitPct)
		sl = entryRef * (1 - p.StopLossPct)
	} else {
		tp = entryRef + p.TakeProfitATR*atrVal
		sl = entryRef - p.StopLossATR*atrVal
	}
	return roundToTick(tp, p.PriceTick), roundToTick(sl, p.PriceTick)
}

// stopDistancePct is the stop distance as a fraction of the entry reference,
// used by the risk sizer.
func stopDistancePct(entryRef, atrVal float64, p BracketParams) float64 {
	if p.Mode == "pct" {
		return p.StopLossPct
	}
	if entryRef <= 0 {
		return 0
	}
	return p.StopLossATR * atrVal / entryRef
}

// roundToTick snaps px to the nearest multiple of tick. Exact decimal
// arithmetic avoids the float drift that a mod/floor dance accumulates at
// the wire boundary.
func roundToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	d := decimal.NewFromFloat(px)
	t := decimal.NewFromFloat(tick)
	steps := d.Div(t).Round(0)
	out, _ := steps.Mul(t).Float64()
	return out
}

// placeBracket submits a full bracket for qty shares of c and waits a bounded
// window for the parent fill. The returned bracket's State tells the caller
// what is safe to record: only BracketFilled may create a tracked position.
func placeBracket(ctx context.Context, gw Gateway, c *ContractRef, qty int, entryRef, atrVal float64, p BracketParams) (*Bracket, error) {
	tp, sl := bracketPrices(entryRef, atrVal, p)
	if sl <= 0 {
		return nil, errStopBelowZero
	}

	b := &Bracket{
		Contract: c,
		Qty:      qty,
		EntryRef: entryRef,
		TPPrice:  tp,
		SLPrice:  sl,
		State:    BracketCreated,
	}

	parent, err := gw.PlaceOrder(ctx, c, OrderSpec{
		ClientKey: uuid.New().String(),
		Side:      SideBuy,
		Type:      TypeMarket,
		Qty:       qty,
		Transmit:  false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "parent order %s", c.Symbol)
	}
	b.Parent = parent
	b.OCAGroup = fmt.Sprintf("OCA_%d", parent.OrderID)

	tpHandle, err := gw.PlaceOrder(ctx, c, OrderSpec{
		ClientKey:  uuid.New().String(),
		Side:       SideSell,
		Type:       TypeLimit,
		Qty:        qty,
		LimitPrice: tp,
		ParentID:   parent.OrderID,
		OCAGroup:   b.OCAGroup,
		OCAType:    1,
		Transmit:   false,
	})
	if err != nil {
		return b, errors.Wrapf(err, "take-profit %s", c.Symbol)
	}
	b.TakeProfit = tpHandle
	b.State = BracketChildrenLinked

	slHandle, err := gw.PlaceOrder(ctx, c, OrderSpec{
		ClientKey: uuid.New().String(),
		Side:      SideSell,
		Type:      TypeStop,
		Qty:       qty,
		StopPrice: sl,
		ParentID:  parent.OrderID,
		OCAGroup:  b.OCAGroup,
		OCAType:   1,
		Transmit:  true,
	})
	if err != nil {
		return b, errors.Wrapf(err, "stop-loss %s", c.Symbol)
	}
	b.StopLoss = slHandle
	b.State = BracketReleased

	logrus.Infof("[ORDER] bracket released %s qty=%d entryRef=%.2f tp=%.2f sl=%.2f parent=%d",
		c.Symbol, qty, entryRef, tp, sl, parent.OrderID)

	awaitFill(ctx, gw, b, p)
	return b, nil
}

// awaitFill polls the parent's order status until it fills, the wait budget
// runs out, or the context is cancelled. Leaves State at BracketReleased on
// timeout; flips to Filled/Cancelled when the gateway says so.
func awaitFill(ctx context.Context, gw Gateway, b *Bracket, p BracketParams) {
	deadline := time.Now().Add(p.FillWait)
	for {
		sctx, cancel := context.WithTimeout(ctx, p.StatusPoll*4)
		st, err := gw.OrderStatus(sctx, b.Parent.OrderID)
		cancel()
		if err == nil {
			switch {
			case st.Filled():
				b.State = BracketFilled
				b.EntryFill = st.AvgFillPrice
				b.FillTime = st.FillTime
				if b.FillTime.IsZero() {
					b.FillTime = time.Now().UTC()
				}
				return
			case st.Status == "Cancelled":
				b.State = BracketCancelled
				return
			}
		}
		if time.Now().After(deadline) {
			logrus.Warnf("[ORDER] %s parent=%d not filled within %s; leaving for reconciliation",
				b.Contract.Symbol, b.Parent.OrderID, p.FillWait)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.StatusPoll):
		}
	}
}
