package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeRiskBased(t *testing.T) {
	// floor(5000×0.01 / (100×0.007)) = floor(71.43) = 71
	assert.Equal(t, 71, sizeRiskBased(5000, 0.01, 100, 0.007))

	// Zero stop distance: no viable size.
	assert.Equal(t, 0, sizeRiskBased(5000, 0.01, 100, 0))

	// Budget smaller than one share's risk.
	assert.Equal(t, 0, sizeRiskBased(100, 0.01, 500, 0.01))
}

func TestSizeFixedNotional(t *testing.T) {
	assert.Equal(t, 20, sizeFixedNotional(2000, 100, false))
	assert.Equal(t, 0, sizeFixedNotional(50, 100, false))
	assert.Equal(t, 1, sizeFixedNotional(50, 100, true), "min-one-share floor")
	assert.Equal(t, 0, sizeFixedNotional(2000, 0, false), "bad price")
}

func TestPositionSizeDispatch(t *testing.T) {
	cfg := Config{
		SizingMode:      "risk",
		AccountEquity:   5000,
		RiskPerTradePct: 0.01,
		CapitalPerTrade: 2000,
	}
	assert.Equal(t, 71, positionSize(cfg, 100, 0.007))

	cfg.SizingMode = "notional"
	assert.Equal(t, 20, positionSize(cfg, 100, 0.007))
}
