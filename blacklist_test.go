package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlacklistExpiry(t *testing.T) {
	bl := NewBlacklist()
	key := SuppressKey{Symbol: "AAPL", Currency: "USD", Exchange: ""}
	t0 := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

	assert.False(t, bl.IsBlocked(key, t0))

	bl.Block(key, 60*time.Minute, "insufficient_history", t0)
	assert.True(t, bl.IsBlocked(key, t0))
	assert.True(t, bl.IsBlocked(key, t0.Add(59*time.Minute)))
	assert.False(t, bl.IsBlocked(key, t0.Add(61*time.Minute)), "lazy expiry on read")
}

func TestBlacklistLastWriteWins(t *testing.T) {
	bl := NewBlacklist()
	key := SuppressKey{Symbol: "ASML", Currency: "EUR", Exchange: "AEB"}
	t0 := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

	bl.Block(key, 180*time.Minute, "permission_denied_354", t0)
	// Re-blocking with a shorter TTL replaces the expiry; durations never stack.
	bl.Block(key, 10*time.Minute, "place_failed", t0)
	assert.True(t, bl.IsBlocked(key, t0.Add(9*time.Minute)))
	assert.False(t, bl.IsBlocked(key, t0.Add(11*time.Minute)))
}

func TestBlacklistKeysAreDistinct(t *testing.T) {
	bl := NewBlacklist()
	t0 := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

	bl.Block(SuppressKey{Symbol: "SAP", Currency: "EUR", Exchange: "IBIS"}, time.Hour, "x", t0)
	assert.False(t, bl.IsBlocked(SuppressKey{Symbol: "SAP", Currency: "USD", Exchange: ""}, t0),
		"same symbol on another venue is a different key")

	assert.Equal(t, 1, bl.ActiveCount(t0))
	assert.Equal(t, 0, bl.ActiveCount(t0.Add(2*time.Hour)))
}
