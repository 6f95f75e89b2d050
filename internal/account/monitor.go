package account

import (
	"context"
	"sync"
	"time"

	"equity-risk-engine/internal/broker"
	"equity-risk-engine/internal/logger"
)

// Status is the cached balance snapshot for one account.
type Status struct {
	AccountID       string    `json:"account_id"`
	Balance         float64   `json:"balance"`
	CashAccountMode bool      `json:"cash_account_mode"`
	Threshold       float64   `json:"threshold"`
	LastChecked     time.Time `json:"last_checked"`
	Degraded        bool      `json:"degraded"` // true when served from stale cache or fail-open zero
}

// Config controls the monitor's cache and mode threshold.
type Config struct {
	CashModeThreshold float64       `json:"cash_mode_threshold"`
	CacheTTL          time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns the standard margin-eligibility threshold and cache TTL.
func DefaultConfig() Config {
	return Config{
		CashModeThreshold: 25000.0,
		CacheTTL:          5 * time.Minute,
	}
}

// Monitor owns the per-account balance cache. It fails open: broker errors
// are logged and the last known (or zero) status is returned, never an error.
type Monitor struct {
	broker broker.Broker
	log    *logger.Logger
	cfg    Config

	mu    sync.Mutex
	cache map[string]*Status
}

// NewMonitor creates an account monitor.
func NewMonitor(b broker.Broker, log *logger.Logger, cfg Config) *Monitor {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.CashModeThreshold == 0 {
		cfg.CashModeThreshold = DefaultConfig().CashModeThreshold
	}
	return &Monitor{
		broker: b,
		log:    log,
		cfg:    cfg,
		cache:  make(map[string]*Status),
	}
}

// CheckBalance returns the account status, refreshing from the broker when
// the cached value has expired. The mutex spans the whole check-then-refresh
// so concurrent callers never observe a half-updated status.
func (m *Monitor) CheckBalance(ctx context.Context, accountID string) *Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached := m.cache[accountID]
	if cached != nil && time.Since(cached.LastChecked) < m.cfg.CacheTTL {
		return cached.clone()
	}

	summary, err := m.broker.GetAccountSummary(ctx, accountID)
	if err != nil {
		m.log.LogError("account balance check failed", err)
		if cached != nil {
			// Serve the stale value rather than freezing trading.
			degraded := *cached
			degraded.Degraded = true
			m.log.Degraded("account %s: serving stale balance from %s",
				accountID, cached.LastChecked.Format(time.RFC3339))
			return &degraded
		}
		m.log.Degraded("account %s: no cached balance, treating as $0 cash account", accountID)
		return &Status{
			AccountID:       accountID,
			Balance:         0,
			CashAccountMode: true,
			Threshold:       m.cfg.CashModeThreshold,
			LastChecked:     time.Now(),
			Degraded:        true,
		}
	}

	status := &Status{
		AccountID:       accountID,
		Balance:         summary.Balance,
		CashAccountMode: summary.Balance < m.cfg.CashModeThreshold,
		Threshold:       m.cfg.CashModeThreshold,
		LastChecked:     time.Now(),
	}

	if cached != nil && cached.CashAccountMode != status.CashAccountMode {
		m.log.LogModeFlip(accountID, status.CashAccountMode, status.Balance, status.Threshold)
	}

	m.cache[accountID] = status
	return status.clone()
}

// Invalidate drops the cached status so the next check hits the broker.
func (m *Monitor) Invalidate(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, accountID)
}

func (s *Status) clone() *Status {
	out := *s
	return &out
}
