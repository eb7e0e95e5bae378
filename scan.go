// FILE: scan.go
// Package main – One-shot universe scan.
//
// runScan scores every qualified candidate right now, prints a ranked table,
// and appends one row per symbol to the scan CSV. It ignores session gates
// and caps — it is a read-only snapshot tool, useful outside market hours to
// sanity-check the universe and the scorer. Nothing here mutates state or
// places orders.

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

type scanRow struct {
	cand *Candidate
	res  ScoreResult
	err  error
}

func runScan(ctx context.Context, t *Trader) error {
	if err := ensureCSVHeader(t.cfg.ScanLog, scanLogHeader); err != nil {
		return err
	}
	now := t.now()
	logrus.Infof("[SCAN] scoring %d symbols", len(t.candidates))

	rows := make([]scanRow, 0, len(t.candidates))
	for _, c := range t.candidates {
		bctx, cancel := context.WithTimeout(ctx, t.cfg.ReqTimeout)
		series, err := t.gw.FetchBars(bctx, c.Ref, t.cfg.BarDuration, t.cfg.BarSize, t.cfg.UseRTH)
		cancel()
		if err != nil {
			rows = append(rows, scanRow{cand: c, err: err})
			t.sleepFn(ctx, t.cfg.EvalPause)
			continue
		}
		rows = append(rows, scanRow{cand: c, res: scoreSeries(series, t.cfg.ScoreConfig())})
		t.sleepFn(ctx, t.cfg.EvalPause)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].res.Score > rows[j].res.Score })

	fmt.Printf("%-8s %-4s %7s  %-28s %10s %9s\n", "symbol", "reg", "score", "reason", "price", "atr%")
	for _, r := range rows {
		if r.err != nil {
			fmt.Printf("%-8s %-4s %7s  %-28s\n", r.cand.Spec.Symbol, r.cand.Region, "-", fmt.Sprintf("fetch: %v", r.err))
			continue
		}
		atrPct := 0.0
		if r.res.Price > 0 {
			atrPct = r.res.ATR / r.res.Price
		}
		fmt.Printf("%-8s %-4s %7.3f  %-28s %10.2f %8.4f%%\n",
			r.cand.Spec.Symbol, r.cand.Region, r.res.Score, r.res.Reason, r.res.Price, atrPct*100)

		if err := appendCSV(t.cfg.ScanLog, []string{
			now.Format(time.RFC3339),
			r.cand.Spec.Symbol,
			r.cand.Region,
			fmt.Sprintf("%.4f", r.res.Score),
			string(r.res.Reason),
			fmt.Sprintf("%g", r.res.Price),
			fmt.Sprintf("%.5f", atrPct),
		}); err != nil {
			logrus.Warnf("[SCAN] log append: %v", err)
		}
	}
	logrus.Infof("[SCAN] saved to %s", t.cfg.ScanLog)
	return nil
}
