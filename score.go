// FILE: score.go
// Package main – Composite signal scorer.
//
// scoreSeries maps a bar series to a bounded [0,1] score plus a categorical
// reason. It is a pure function over (series, config): no network, no clocks,
// no shared state, so it is trivially unit-testable.
//
// Gate order (each failure short-circuits with score 0 and its reason):
//   1. history length      -> insufficient_history
//   2. latest close band   -> price_out_of_range
//   3. ATR availability    -> volatility_missing
//   4. ATR% band           -> volatility_pct_out_of_range
//   5. SMA pair            -> trend_missing
//   6. RSI                 -> oscillator_missing
//
// Composite = 0.35·momentum + 0.35·oscillator + 0.30·volatility (weights
// configurable), clamped to [0,1].

package main

import "math"

// ScoreReason classifies the outcome of one evaluation. Anything other than
// ReasonOK forces a zero score; it is terminal for that evaluation, never an
// error.
type ScoreReason string

const (
	ReasonOK                  ScoreReason = "ok"
	ReasonInsufficientHistory ScoreReason = "insufficient_history"
	ReasonPriceOutOfRange     ScoreReason = "price_out_of_range"
	ReasonVolatilityMissing   ScoreReason = "volatility_missing"
	ReasonVolatilityPctRange  ScoreReason = "volatility_pct_out_of_range"
	ReasonTrendMissing        ScoreReason = "trend_missing"
	ReasonOscillatorMissing   ScoreReason = "oscillator_missing"
)

// dataQualityReasons are the gate failures that earn a short blacklist entry:
// they indicate the symbol structurally cannot produce a signal this session,
// so re-querying it every cycle only burns request budget.
var dataQualityReasons = map[ScoreReason]bool{
	ReasonInsufficientHistory: true,
	ReasonVolatilityMissing:   true,
	ReasonTrendMissing:        true,
	ReasonOscillatorMissing:   true,
}

// ScoreConfig carries the scorer's tunables (see Config.ScoreConfig).
type ScoreConfig struct {
	MinBars      int
	MinPrice     float64
	MaxPrice     float64
	MinATRPct    float64
	MaxATRPct    float64
	TargetATRPct float64
	FastSMA      int
	SlowSMA      int
	ATRLength    int
	RSILength    int
	WMomentum    float64
	WOscillator  float64
	WVolatility  float64
}

// ScoreResult is the scorer output. Price and ATR are populated as soon as
// they are known, even on rejection, so callers can log them.
type ScoreResult struct {
	Score  float64
	Reason ScoreReason
	Price  float64
	ATR    float64
}

func rejected(reason ScoreReason, price, atrVal float64) ScoreResult {
	return ScoreResult{Score: 0, Reason: reason, Price: price, ATR: atrVal}
}

// scoreSeries evaluates one symbol's bar series against the composite model.
func scoreSeries(s BarSeries, sc ScoreConfig) ScoreResult {
	if s.Len() < sc.MinBars {
		return rejected(ReasonInsufficientHistory, 0, 0)
	}

	closes := s.Closes()
	price := closes[len(closes)-1]
	if price < sc.MinPrice || price > sc.MaxPrice {
		return rejected(ReasonPriceOutOfRange, price, 0)
	}

	atrVal, ok := atrLast(s, sc.ATRLength)
	if !ok || atrVal <= 0 {
		return rejected(ReasonVolatilityMissing, price, 0)
	}
	atrPct := atrVal / price
	if atrPct < sc.MinATRPct || atrPct > sc.MaxATRPct {
		return rejected(ReasonVolatilityPctRange, price, atrVal)
	}

	fast, okFast := smaLast(closes, sc.FastSMA)
	slow, okSlow := smaLast(closes, sc.SlowSMA)
	if !okFast || !okSlow {
		return rejected(ReasonTrendMissing, price, atrVal)
	}
	mom := 0.0
	if fast > slow {
		mom = 1.0
	}

	r, ok := rsiLast(closes, sc.RSILength)
	if !ok {
		return rejected(ReasonOscillatorMissing, price, atrVal)
	}
	oscScore := oscillatorScore(r)

	// Volatility sub-score prefers ATR% near the target ratio.
	volScore := clamp(1.0-math.Abs(atrPct-sc.TargetATRPct)/sc.TargetATRPct, 0, 1)

	score := sc.WMomentum*mom + sc.WOscillator*oscScore + sc.WVolatility*volScore
	return ScoreResult{Score: clamp(score, 0, 1), Reason: ReasonOK, Price: price, ATR: atrVal}
}

// oscillatorScore maps RSI to [0,1] with a sweet spot at 60. The mapping is
// piecewise linear through (0,0) (40,0.4) (60,1.0) (70,0.5) (100,0), which
// keeps it continuous at the 40 and 70 boundaries.
func oscillatorScore(r float64) float64 {
	var v float64
	switch {
	case r < 40:
		v = (r / 40.0) * 0.4
	case r <= 60:
		v = 0.4 + (r-40.0)/20.0*0.6
	case r <= 70:
		v = 1.0 - (r-60.0)/20.0
	default:
		v = 0.5 * (100.0 - r) / 30.0
	}
	return clamp(v, 0, 1)
}
