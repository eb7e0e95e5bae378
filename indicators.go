// FILE: indicators.go
// Package main – Technical indicators for the scorer.
//
// This file implements the lightweight TA helpers the composite scorer needs:
//   • smaLast(closes, n)  – simple moving average of the last n closes
//   • rsiLast(closes, n)  – RSI over the last n close deltas (simple averages)
//   • atrLast(series, n)  – average true range over the last n bars
//
// Notes
//   - All functions return (value, ok); ok=false means not enough history.
//   - These are latest-value forms, not aligned series: the scorer only ever
//     looks at the newest bar, so there is no point materializing columns.
//   - Keep these fast and allocation-free; they run per symbol per cycle.

package main

import "math"

// smaLast returns the n-period simple moving average of the last n closes.
func smaLast(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n {
		return 0, false
	}
	var sum float64
	for _, c := range closes[len(closes)-n:] {
		sum += c
	}
	return sum / float64(n), true
}

// rsiLast returns the RSI over the last n consecutive close deltas using
// simple (non-smoothed) averages. When the average loss is exactly zero the
// oscillator saturates at 100.
func rsiLast(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	var gains, losses float64
	for i := len(closes) - n; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		if ch >= 0 {
			gains += ch
		} else {
			losses -= ch
		}
	}
	if losses == 0 {
		return 100.0, true
	}
	rs := (gains / float64(n)) / (losses / float64(n))
	return 100.0 - (100.0 / (1.0 + rs)), true
}

// atrLast returns the mean true range of the last n bars. True range of bar i
// is max(high-low, |high-prevClose|, |low-prevClose|), so n+1 bars are needed.
func atrLast(s BarSeries, n int) (float64, bool) {
	if n <= 0 || s.Len() < n+1 {
		return 0, false
	}
	var sum float64
	for i := s.Len() - n; i < s.Len(); i++ {
		b := s.Bar(i)
		pc := s.Bar(i - 1).Close
		tr := math.Max(b.High-b.Low, math.Max(math.Abs(b.High-pc), math.Abs(b.Low-pc)))
		sum += tr
	}
	return sum / float64(n), true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
