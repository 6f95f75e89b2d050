package regime

import (
	"sync"
	"time"
)

// Type is a coarse classification of current market conditions.
type Type string

const (
	Bull           Type = "BULL"
	Bear           Type = "BEAR"
	Sideways       Type = "SIDEWAYS"
	HighVolatility Type = "HIGH_VOLATILITY"
)

// RiskReducing reports whether the regime should scale position risk down.
func (t Type) RiskReducing() bool {
	return t == Bear || t == HighVolatility
}

// Detector classifies the current market regime. Implementations should be
// cheap to call; expensive ones belong behind CachedDetector.
type Detector interface {
	Detect() Type
}

// StaticDetector always returns a fixed regime. It is the placeholder signal
// until a real indicator-driven detector replaces it.
// TODO: replace with an ADX/ATR-driven detector once intraday index data is
// plumbed in.
type StaticDetector struct {
	Regime Type
}

func (d StaticDetector) Detect() Type {
	if d.Regime == "" {
		return Sideways
	}
	return d.Regime
}

// CachedDetector memoizes another detector's answer for a TTL so repeated
// risk checks do not re-run detection.
type CachedDetector struct {
	inner Detector
	ttl   time.Duration

	mu       sync.Mutex
	regime   Type
	cachedAt time.Time
}

// NewCached wraps a detector with a cache. A zero TTL defaults to 15 minutes.
func NewCached(inner Detector, ttl time.Duration) *CachedDetector {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &CachedDetector{inner: inner, ttl: ttl}
}

func (d *CachedDetector) Detect() Type {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.regime != "" && time.Since(d.cachedAt) < d.ttl {
		return d.regime
	}
	d.regime = d.inner.Detect()
	d.cachedAt = time.Now()
	return d.regime
}

// Invalidate clears the cache so the next Detect re-runs the inner detector.
func (d *CachedDetector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regime = ""
}
