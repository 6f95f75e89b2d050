package sizing

import (
	"context"
	"math"

	"equity-risk-engine/internal/account"
)

// ConfidenceLevel is the tier a signal's confidence score maps to.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceHigh   ConfidenceLevel = "HIGH"
)

// Config holds the confidence tiers and their balance fractions.
type Config struct {
	HighConfidence   float64 `json:"high_confidence"`
	MediumConfidence float64 `json:"medium_confidence"`
	HighPct          float64 `json:"high_pct"`
	MediumPct        float64 `json:"medium_pct"`
	LowPct           float64 `json:"low_pct"`
	MaxPositionPct   float64 `json:"max_position_pct"`
	MinShares        int     `json:"min_shares"`
}

// DefaultConfig returns conservative tiering: 10%/6%/3% of balance with a
// 10% hard cap.
func DefaultConfig() Config {
	return Config{
		HighConfidence:   0.7,
		MediumConfidence: 0.4,
		HighPct:          0.10,
		MediumPct:        0.06,
		LowPct:           0.03,
		MaxPositionPct:   0.10,
		MinShares:        1,
	}
}

// Result is a sizing recommendation. SizeShares*price never exceeds SizeUSD.
type Result struct {
	SizeUSD    float64         `json:"size_usd"`
	SizeShares int             `json:"size_shares"`
	Confidence ConfidenceLevel `json:"confidence_level"`
	BasePct    float64         `json:"base_pct"`
	ActualPct  float64         `json:"actual_pct"`
	MaxSizeHit bool            `json:"max_size_hit"`
	SettledCap bool            `json:"settled_cap,omitempty"` // settled cash bound the size
}

// Manager computes confidence-tiered position sizes.
type Manager struct {
	monitor *account.Monitor
	cfg     Config
}

// NewManager creates a position sizing manager.
func NewManager(monitor *account.Monitor, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.HighConfidence == 0 {
		cfg.HighConfidence = def.HighConfidence
	}
	if cfg.MediumConfidence == 0 {
		cfg.MediumConfidence = def.MediumConfidence
	}
	if cfg.HighPct == 0 {
		cfg.HighPct = def.HighPct
	}
	if cfg.MediumPct == 0 {
		cfg.MediumPct = def.MediumPct
	}
	if cfg.LowPct == 0 {
		cfg.LowPct = def.LowPct
	}
	if cfg.MaxPositionPct == 0 {
		cfg.MaxPositionPct = def.MaxPositionPct
	}
	if cfg.MinShares == 0 {
		cfg.MinShares = def.MinShares
	}
	return &Manager{monitor: monitor, cfg: cfg}
}

// Level maps a confidence score to its tier.
func (m *Manager) Level(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= m.cfg.HighConfidence:
		return ConfidenceHigh
	case confidence >= m.cfg.MediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (m *Manager) basePct(level ConfidenceLevel) float64 {
	switch level {
	case ConfidenceHigh:
		return m.cfg.HighPct
	case ConfidenceMedium:
		return m.cfg.MediumPct
	default:
		return m.cfg.LowPct
	}
}

// Calculate sizes a position from the balance, share price and confidence
// score. Sizes under the minimum-shares floor come back as zero.
func (m *Manager) Calculate(balance, price, confidence float64) Result {
	level := m.Level(confidence)
	basePct := m.basePct(level)

	res := Result{
		Confidence: level,
		BasePct:    basePct,
	}
	if balance <= 0 || price <= 0 {
		return res
	}

	sizeUSD := balance * basePct
	maxUSD := balance * m.cfg.MaxPositionPct
	if sizeUSD > maxUSD {
		sizeUSD = maxUSD
		res.MaxSizeHit = true
	}

	shares := int(math.Floor(sizeUSD / price))
	if shares < m.cfg.MinShares {
		return res
	}

	res.SizeUSD = sizeUSD
	res.SizeShares = shares
	res.ActualPct = sizeUSD / balance
	return res
}

// CalculateSettled is the settlement-aware variant: in cash-account mode the
// dollar size is additionally capped at available settled cash.
func (m *Manager) CalculateSettled(balance, settledCash, price, confidence float64, cashAccountMode bool) Result {
	res := m.Calculate(balance, price, confidence)
	if !cashAccountMode || res.SizeShares == 0 {
		return res
	}
	if settledCash >= res.SizeUSD {
		return res
	}

	res.SettledCap = true
	res.SizeUSD = math.Max(settledCash, 0)
	res.SizeShares = int(math.Floor(res.SizeUSD / price))
	if res.SizeShares < m.cfg.MinShares {
		res.SizeShares = 0
		res.SizeUSD = 0
		res.ActualPct = 0
		return res
	}
	res.ActualPct = res.SizeUSD / balance
	return res
}

// CalculateForAccount fetches the account status and sizes against the live
// balance.
func (m *Manager) CalculateForAccount(ctx context.Context, accountID string, price, confidence float64) Result {
	status := m.monitor.CheckBalance(ctx, accountID)
	return m.Calculate(status.Balance, price, confidence)
}
