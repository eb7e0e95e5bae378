// FILE: live.go
// Package main – The live polling loop.
//
// runLive drives Cycle() at a fixed cadence until the context is cancelled:
//   • sessions open   -> LoopInterval between cycles (default 20s)
//   • sessions closed -> ClosedSleep (default 60s)
//
// Shutdown is cooperative: the signal is observed between cycles and during
// the inter-cycle sleep, never mid-cycle, so state is always fully written
// when the process exits.

package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

func runLive(ctx context.Context, t *Trader) {
	logrus.Infof("[BOOT] %s loop started — universe=%d max_open=%d max_daily=%d per_cycle=%d min_score=%.2f",
		t.gw.Name(), len(t.candidates), t.cfg.MaxOpenPositions, t.cfg.MaxTradesPerDay,
		t.cfg.MaxNewTradesPerCycle, t.cfg.MinScore)
	logrus.Infof("[SAFETY] SIZING_MODE=%s | ACCOUNT_EQUITY=%.2f | RISK_PER_TRADE_PCT=%.4f | CAPITAL_PER_TRADE=%.2f | BRACKET_MODE=%s | TP=%.3f/%.2f SL=%.3f/%.2f",
		t.cfg.SizingMode, t.cfg.AccountEquity, t.cfg.RiskPerTradePct, t.cfg.CapitalPerTrade,
		t.cfg.BracketMode, t.cfg.TakeProfitPct, t.cfg.TakeProfitATR, t.cfg.StopLossPct, t.cfg.StopLossATR)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("[BOOT] shutdown")
			return
		default:
		}

		sum, err := t.Cycle(ctx)
		if err != nil {
			logrus.Warnf("[CYCLE] skipped: %v", err)
		} else if sum.Msg != "" {
			logrus.Infof("[CYCLE] %s", sum.Msg)
		}

		sleep := t.cfg.LoopInterval
		if !sum.MarketsOpen {
			sleep = t.cfg.ClosedSleep
		}
		t.sleepFn(ctx, sleep)
	}
}
