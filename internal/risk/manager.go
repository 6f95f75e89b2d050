package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"equity-risk-engine/internal/account"
	"equity-risk-engine/internal/compliance"
	"equity-risk-engine/internal/portfolio"
	"equity-risk-engine/internal/regime"
	"equity-risk-engine/internal/sizing"
	"equity-risk-engine/pkg/types"
)

// Validation is the single risk verdict the executor consumes. Compliance
// blocks and portfolio failures both land here; the executor never talks to
// the sub-managers directly.
type Validation struct {
	Approved       bool                  `json:"approved"`
	Reason         string                `json:"reason,omitempty"`
	Compliance     *compliance.Decision  `json:"compliance,omitempty"`
	Portfolio      *portfolio.Decision   `json:"portfolio,omitempty"`
	Sizing         *sizing.Result        `json:"sizing,omitempty"`
	RecommendedQty int                   `json:"recommended_qty"`
	Advisories     []string              `json:"advisories,omitempty"`
	Degraded       bool                  `json:"degraded,omitempty"`
}

// Status is the operator-facing snapshot for one account.
type Status struct {
	AccountID       string        `json:"account_id"`
	Balance         float64       `json:"balance"`
	CashAccountMode bool          `json:"cash_account_mode"`
	SettledCash     float64       `json:"settled_cash"`
	DayTradesUsed   int           `json:"day_trades_used"`
	DayTradeLimit   int           `json:"day_trade_limit"`
	DailyTrades     int           `json:"daily_trades"`
	DailyLimit      int           `json:"daily_limit"`
	WeeklyTrades    int           `json:"weekly_trades"`
	WeeklyLimit     int           `json:"weekly_limit"`
	BreakerActive   bool          `json:"breaker_active"`
	BreakerCooldown time.Duration `json:"breaker_cooldown,omitempty"`
	MarketRegime    regime.Type   `json:"market_regime"`
	Degraded        bool          `json:"degraded,omitempty"`
}

// Manager is the facade over account monitoring, compliance, sizing and
// portfolio risk. Trades for the same account are serialized so two signals
// cannot both pass a limit check and then both consume the same headroom.
type Manager struct {
	Monitor    *account.Monitor
	Compliance *compliance.Manager
	Sizing     *sizing.Manager
	Portfolio  *portfolio.Checker

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewManager wires the facade from its sub-managers.
func NewManager(monitor *account.Monitor, comp *compliance.Manager, sz *sizing.Manager, pf *portfolio.Checker) *Manager {
	return &Manager{
		Monitor:    monitor,
		Compliance: comp,
		Sizing:     sz,
		Portfolio:  pf,
		accounts:   make(map[string]*sync.Mutex),
	}
}

// accountLock returns the serialization mutex for one account, creating it on
// first use.
func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.accounts[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.accounts[accountID] = lock
	}
	return lock
}

// LockAccount serializes callers touching the same account. The executor
// holds this across validate-and-place so check and consumption are atomic.
func (m *Manager) LockAccount(accountID string) func() {
	lock := m.accountLock(accountID)
	lock.Lock()
	return lock.Unlock
}

// recommendSize computes the confidence-tiered size, capped at settled cash
// when the account is in cash-account mode.
func (m *Manager) recommendSize(ctx context.Context, accountID string, price, confidence float64) sizing.Result {
	status := m.Monitor.CheckBalance(ctx, accountID)
	if status.CashAccountMode {
		if settled, err := m.Compliance.AvailableSettledCash(ctx, accountID, time.Now()); err == nil {
			return m.Sizing.CalculateSettled(status.Balance, settled, price, confidence, true)
		}
	}
	return m.Sizing.Calculate(status.Balance, price, confidence)
}

// ValidateTrade runs the full pre-trade gauntlet for a signal: sizing when no
// quantity was requested, then compliance (short-circuit on block), then
// portfolio risk. The returned RecommendedQty is what the executor should
// place.
func (m *Manager) ValidateTrade(ctx context.Context, accountID string, signal *types.TradingSignal) *Validation {
	v := &Validation{}

	qty := signal.Quantity
	if qty <= 0 && signal.Type == types.SignalBuy {
		res := m.recommendSize(ctx, accountID, signal.Price, signal.Confidence)
		v.Sizing = &res
		if res.SizeShares <= 0 {
			v.Reason = "position size below minimum shares, no trade"
			return v
		}
		qty = res.SizeShares
	}

	if qty <= 0 {
		v.Reason = "no quantity to trade"
		return v
	}

	decision := m.Compliance.CheckCompliance(ctx, compliance.CheckRequest{
		AccountID: accountID,
		Symbol:    signal.Symbol,
		Side:      signal.Type,
		Quantity:  qty,
		Price:     signal.Price,
	})
	v.Compliance = decision
	v.Degraded = v.Degraded || decision.Degraded
	if !decision.CanProceed {
		v.Reason = decision.Message
		return v
	}
	if decision.Result == compliance.ResultWarning {
		v.Advisories = append(v.Advisories, decision.Message)
	}

	// A requested quantity above the recommendation is capped to it, with an
	// advisory so the caller knows the trim happened.
	if signal.Quantity > 0 && signal.Type == types.SignalBuy && m.Sizing != nil {
		res := m.recommendSize(ctx, accountID, signal.Price, signal.Confidence)
		v.Sizing = &res
		if res.SizeShares > 0 && signal.Quantity > res.SizeShares {
			v.Advisories = append(v.Advisories, fmt.Sprintf(
				"requested %d shares trimmed to the %d-share recommendation for %.2f confidence",
				signal.Quantity, res.SizeShares, signal.Confidence))
			qty = res.SizeShares
		}
	}

	if signal.Price > 0 && m.Portfolio != nil {
		pf := m.Portfolio.Evaluate(ctx, accountID, signal.Symbol, signal.Type, qty, signal.Price)
		v.Portfolio = pf
		if !pf.Approved {
			v.Reason = portfolioRejectReason(pf)
			return v
		}
		if pf.AdjustedSize > 0 && pf.AdjustedSize < qty {
			v.Advisories = append(v.Advisories, fmt.Sprintf(
				"position reduced from %d to %d shares by portfolio risk", qty, pf.AdjustedSize))
			qty = pf.AdjustedSize
		}
	}

	v.Approved = true
	v.RecommendedQty = qty
	return v
}

func portfolioRejectReason(d *portfolio.Decision) string {
	for _, check := range d.Checks {
		if check.Result == portfolio.CheckFailed {
			return check.Message
		}
	}
	for _, check := range d.Checks {
		if check.Result == portfolio.CheckWarning {
			return check.Message
		}
	}
	return "portfolio risk rejected the trade"
}

// GetRiskStatus assembles the operator snapshot: balance and mode, settled
// cash, PDT and frequency usage, breaker state and regime. Lookup failures
// degrade individual fields instead of failing the whole snapshot.
func (m *Manager) GetRiskStatus(ctx context.Context, accountID string) *Status {
	now := time.Now()
	st := m.Monitor.CheckBalance(ctx, accountID)

	status := &Status{
		AccountID:       accountID,
		Balance:         st.Balance,
		CashAccountMode: st.CashAccountMode,
		Degraded:        st.Degraded,
	}

	if settled, err := m.Compliance.AvailableSettledCash(ctx, accountID, now); err == nil {
		status.SettledCash = settled
	} else {
		status.Degraded = true
	}

	cfg := m.Compliance.Limits()
	status.DayTradeLimit = cfg.MaxDayTrades
	status.DailyLimit = cfg.MaxDailyTrades
	status.WeeklyLimit = cfg.MaxWeeklyTrades

	if count, err := m.Compliance.CountDayTrades(ctx, accountID, now); err == nil {
		status.DayTradesUsed = count
	} else {
		status.Degraded = true
	}

	if daily, weekly, err := m.Compliance.FrequencyCounts(ctx, accountID, now); err == nil {
		status.DailyTrades = daily
		status.WeeklyTrades = weekly
	} else {
		status.Degraded = true
	}

	if m.Portfolio != nil {
		status.BreakerActive, status.BreakerCooldown = m.Portfolio.BreakerActive()
		status.MarketRegime = m.Portfolio.Regime()
	}

	return status
}
