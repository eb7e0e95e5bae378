// FILE: risk.go
// Package main – Position sizing.
//
// Two sizing modes, both pure functions that floor to an integer share count.
// A result of 0 means "no viable size, skip" — it is not an error.
//
//   • risk mode:     qty = floor(equity × riskFraction / (price × stopLossPct))
//   • notional mode: qty = floor(capitalPerTrade / price)
//
// The notional mode optionally keeps the old floor-at-1-share behavior
// (SIZE_MIN_ONE_SHARE); risk mode never does, because a stop that wide on a
// single share can still exceed the risk budget.

package main

import "math"

// sizeRiskBased sizes so the loss at the stop equals the per-trade risk
// budget. stopLossPct is the stop distance as a fraction of entry price.
func sizeRiskBased(equity, riskFraction, price, stopLossPct float64) int {
	riskAmt := equity * riskFraction
	riskPerShare := price * stopLossPct
	if riskPerShare <= 0 {
		return 0
	}
	qty := int(math.Floor(riskAmt / riskPerShare))
	if qty < 0 {
		return 0
	}
	return qty
}

// sizeFixedNotional spends a fixed capital amount per trade.
func sizeFixedNotional(capitalPerTrade, price float64, minOneShare bool) int {
	if price <= 0 {
		return 0
	}
	qty := int(math.Floor(capitalPerTrade / price))
	if qty < 1 && minOneShare {
		return 1
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// positionSize dispatches on the configured sizing mode. stopLossPct is the
// effective stop distance fraction for the bracket being sized (ATR-based
// brackets pass atr·mult/price).
func positionSize(cfg Config, price, stopLossPct float64) int {
	if cfg.SizingMode == "notional" {
		return sizeFixedNotional(cfg.CapitalPerTrade, price, cfg.SizeMinOneShare)
	}
	return sizeRiskBased(cfg.AccountEquity, cfg.RiskPerTradePct, price, stopLossPct)
}
