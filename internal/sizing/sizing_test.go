package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSizer() *Manager {
	return NewManager(nil, DefaultConfig())
}

// TestLevel_Tiers tests the confidence tier boundaries
func TestLevel_Tiers(t *testing.T) {
	m := newTestSizer()

	assert.Equal(t, ConfidenceHigh, m.Level(0.9))
	assert.Equal(t, ConfidenceHigh, m.Level(0.7)) // boundary is inclusive
	assert.Equal(t, ConfidenceMedium, m.Level(0.5))
	assert.Equal(t, ConfidenceMedium, m.Level(0.4))
	assert.Equal(t, ConfidenceLow, m.Level(0.39))
	assert.Equal(t, ConfidenceLow, m.Level(0))
}

// TestCalculate_TierFractions tests the balance fraction per tier
func TestCalculate_TierFractions(t *testing.T) {
	m := newTestSizer()

	high := m.Calculate(10000, 50, 0.9)
	assert.Equal(t, 1000.0, high.SizeUSD) // 10%
	assert.Equal(t, 20, high.SizeShares)

	medium := m.Calculate(10000, 50, 0.5)
	assert.Equal(t, 600.0, medium.SizeUSD) // 6%
	assert.Equal(t, 12, medium.SizeShares)

	low := m.Calculate(10000, 50, 0.1)
	assert.Equal(t, 300.0, low.SizeUSD) // 3%
	assert.Equal(t, 6, low.SizeShares)
}

// TestCalculate_SharesFloorNotRound tests that fractional shares round down
func TestCalculate_SharesFloorNotRound(t *testing.T) {
	m := newTestSizer()

	// 3% of 10000 = 300; 300/70 = 4.28 -> 4 shares
	res := m.Calculate(10000, 70, 0.1)
	assert.Equal(t, 4, res.SizeShares)
	assert.LessOrEqual(t, float64(res.SizeShares)*70, res.SizeUSD)
}

// TestCalculate_MaxPositionCap tests the hard cap when a tier exceeds it
func TestCalculate_MaxPositionCap(t *testing.T) {
	m := NewManager(nil, Config{
		HighConfidence:   0.7,
		MediumConfidence: 0.4,
		HighPct:          0.20, // above the cap
		MediumPct:        0.06,
		LowPct:           0.03,
		MaxPositionPct:   0.10,
		MinShares:        1,
	})

	res := m.Calculate(10000, 50, 0.9)
	assert.True(t, res.MaxSizeHit)
	assert.Equal(t, 1000.0, res.SizeUSD)
	assert.InDelta(t, 0.10, res.ActualPct, 1e-9)
}

// TestCalculate_BelowMinSharesIsZero tests expensive symbols on small balances
func TestCalculate_BelowMinSharesIsZero(t *testing.T) {
	m := newTestSizer()

	// 3% of 1000 = $30, below one $500 share
	res := m.Calculate(1000, 500, 0.1)
	assert.Equal(t, 0, res.SizeShares)
	assert.Equal(t, 0.0, res.SizeUSD)
}

func TestCalculate_DegenerateInputs(t *testing.T) {
	m := newTestSizer()

	assert.Equal(t, 0, m.Calculate(0, 50, 0.9).SizeShares)
	assert.Equal(t, 0, m.Calculate(-100, 50, 0.9).SizeShares)
	assert.Equal(t, 0, m.Calculate(10000, 0, 0.9).SizeShares)
}

// TestCalculateSettled_CapsAtSettledCash tests the cash-account mode cap
func TestCalculateSettled_CapsAtSettledCash(t *testing.T) {
	m := newTestSizer()

	res := m.CalculateSettled(10000, 400, 50, 0.9, true)
	assert.True(t, res.SettledCap)
	assert.Equal(t, 400.0, res.SizeUSD)
	assert.Equal(t, 8, res.SizeShares)
}

// TestCalculateSettled_IgnoredForMarginAccounts tests the mode gate
func TestCalculateSettled_IgnoredForMarginAccounts(t *testing.T) {
	m := newTestSizer()

	res := m.CalculateSettled(10000, 400, 50, 0.9, false)
	assert.False(t, res.SettledCap)
	assert.Equal(t, 20, res.SizeShares)
}

func TestCalculateSettled_ZeroWhenSettledBelowMinShare(t *testing.T) {
	m := newTestSizer()

	res := m.CalculateSettled(10000, 30, 50, 0.9, true)
	assert.Equal(t, 0, res.SizeShares)
	assert.Equal(t, 0.0, res.SizeUSD)
}
