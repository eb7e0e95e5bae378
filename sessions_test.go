package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-06-02 is a Tuesday; 2026-06-06 a Saturday.

func TestUSSessionWindow(t *testing.T) {
	us, err := usSession()
	require.NoError(t, err)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.True(t, us.IsOpen(time.Date(2026, 6, 2, 10, 0, 0, 0, ny)))
	assert.True(t, us.IsOpen(time.Date(2026, 6, 2, 9, 30, 0, 0, ny)), "open boundary inclusive")
	assert.False(t, us.IsOpen(time.Date(2026, 6, 2, 16, 0, 0, 0, ny)), "close boundary exclusive")
	assert.False(t, us.IsOpen(time.Date(2026, 6, 2, 9, 29, 0, 0, ny)))
	assert.False(t, us.IsOpen(time.Date(2026, 6, 6, 12, 0, 0, 0, ny)), "Saturday")
}

func TestEUSessionWindow(t *testing.T) {
	eu, err := euSession()
	require.NoError(t, err)
	cph, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	assert.True(t, eu.IsOpen(time.Date(2026, 6, 2, 9, 0, 0, 0, cph)))
	assert.True(t, eu.IsOpen(time.Date(2026, 6, 2, 17, 29, 0, 0, cph)))
	assert.False(t, eu.IsOpen(time.Date(2026, 6, 2, 17, 30, 0, 0, cph)))
	assert.False(t, eu.IsOpen(time.Date(2026, 6, 7, 12, 0, 0, 0, cph)), "Sunday")
}

func TestSessionConvertsInstant(t *testing.T) {
	us, err := usSession()
	require.NoError(t, err)
	// 14:00 UTC in June is 10:00 in New York (EDT).
	assert.True(t, us.IsOpen(time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)))
	// 03:00 UTC is the prior NY evening.
	assert.False(t, us.IsOpen(time.Date(2026, 6, 2, 3, 0, 0, 0, time.UTC)))
}

func TestAnySessionOpen(t *testing.T) {
	us, err := usSession()
	require.NoError(t, err)
	eu, err := euSession()
	require.NoError(t, err)
	sessions := []*MarketSession{us, eu}

	// 08:00 UTC Tuesday: EU open (10:00 CPH), US closed.
	at := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	assert.True(t, anySessionOpen(sessions, at))
	assert.True(t, eu.IsOpen(at))
	assert.False(t, us.IsOpen(at))

	// 02:00 UTC: everything closed.
	assert.False(t, anySessionOpen(sessions, time.Date(2026, 6, 2, 2, 0, 0, 0, time.UTC)))

	assert.Equal(t, eu, sessionFor(sessions, "EU"))
	assert.Nil(t, sessionFor(sessions, "JP"))
}
