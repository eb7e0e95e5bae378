// FILE: sessions.go
// Package main – Market session gate.
//
// Each supported market has a fixed weekday + local-time-of-day window:
//   • US: 09:30–16:00 America/New_York
//   • EU: 09:00–17:30 Europe/Copenhagen (covers most EU cash sessions)
//
// Weekends are always closed. No holiday calendar is modeled; a holiday shows
// up as a day of empty evaluations, which the scorer gates handle anyway.

package main

import (
	"time"

	"github.com/pkg/errors"
)

// MarketSession answers "is this market open at instant t".
type MarketSession struct {
	Region    string // matches Candidate.Region
	loc       *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
}

func newMarketSession(region, tz string, openHour, openMin, closeHour, closeMin int) (*MarketSession, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "load tz %s", tz)
	}
	return &MarketSession{
		Region:    region,
		loc:       loc,
		openHour:  openHour,
		openMin:   openMin,
		closeHour: closeHour,
		closeMin:  closeMin,
	}, nil
}

func usSession() (*MarketSession, error) {
	return newMarketSession("US", "America/New_York", 9, 30, 16, 0)
}

func euSession() (*MarketSession, error) {
	return newMarketSession("EU", "Europe/Copenhagen", 9, 0, 17, 30)
}

// IsOpen reports whether the session window contains t. The window is
// half-open: [open, close).
func (m *MarketSession) IsOpen(t time.Time) bool {
	lt := t.In(m.loc)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open := time.Date(lt.Year(), lt.Month(), lt.Day(), m.openHour, m.openMin, 0, 0, m.loc)
	close := time.Date(lt.Year(), lt.Month(), lt.Day(), m.closeHour, m.closeMin, 0, 0, m.loc)
	return !lt.Before(open) && lt.Before(close)
}

// anySessionOpen reports whether at least one session is open at t.
func anySessionOpen(sessions []*MarketSession, t time.Time) bool {
	for _, s := range sessions {
		if s.IsOpen(t) {
			return true
		}
	}
	return false
}

// sessionFor returns the session gating a region, or nil if none is
// configured (unknown regions are treated as never open).
func sessionFor(sessions []*MarketSession, region string) *MarketSession {
	for _, s := range sessions {
		if s.Region == region {
			return s
		}
	}
	return nil
}
