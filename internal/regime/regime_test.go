package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// countingDetector tracks how often the inner detector actually runs
type countingDetector struct {
	regime Type
	calls  int
}

func (d *countingDetector) Detect() Type {
	d.calls++
	return d.regime
}

func TestStaticDetector_DefaultsToSideways(t *testing.T) {
	assert.Equal(t, Sideways, StaticDetector{}.Detect())
	assert.Equal(t, Bear, StaticDetector{Regime: Bear}.Detect())
}

func TestRiskReducing(t *testing.T) {
	assert.True(t, Bear.RiskReducing())
	assert.True(t, HighVolatility.RiskReducing())
	assert.False(t, Bull.RiskReducing())
	assert.False(t, Sideways.RiskReducing())
}

// TestCachedDetector_MemoizesWithinTTL tests that detection runs once per TTL
func TestCachedDetector_MemoizesWithinTTL(t *testing.T) {
	inner := &countingDetector{regime: Bull}
	d := NewCached(inner, time.Hour)

	assert.Equal(t, Bull, d.Detect())
	assert.Equal(t, Bull, d.Detect())
	assert.Equal(t, Bull, d.Detect())
	assert.Equal(t, 1, inner.calls)
}

// TestCachedDetector_InvalidateForcesRedetect tests cache invalidation
func TestCachedDetector_InvalidateForcesRedetect(t *testing.T) {
	inner := &countingDetector{regime: Bull}
	d := NewCached(inner, time.Hour)

	d.Detect()
	inner.regime = HighVolatility
	d.Invalidate()
	assert.Equal(t, HighVolatility, d.Detect())
	assert.Equal(t, 2, inner.calls)
}
