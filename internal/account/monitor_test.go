package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"equity-risk-engine/internal/logger"
	"equity-risk-engine/pkg/types"
)

// fakeBroker counts summary calls and can be flipped into a failing state
type fakeBroker struct {
	balance float64
	fail    bool
	calls   int
}

func (b *fakeBroker) GetAccountSummary(context.Context, string) (*types.AccountSummary, error) {
	b.calls++
	if b.fail {
		return nil, assert.AnError
	}
	return &types.AccountSummary{AccountID: "acct-1", Balance: b.balance, Equity: b.balance}, nil
}

func (b *fakeBroker) GetPositions(context.Context, string) ([]types.Position, error) {
	return nil, nil
}

func (b *fakeBroker) PlaceMarketOrder(context.Context, string, string, types.SignalType, int) (*types.Order, error) {
	return nil, nil
}

func (b *fakeBroker) PlaceLimitOrder(context.Context, string, string, types.SignalType, int, float64) (*types.Order, error) {
	return nil, nil
}

// TestCheckBalance_ModeFromThreshold tests cash-mode classification
func TestCheckBalance_ModeFromThreshold(t *testing.T) {
	b := &fakeBroker{balance: 10000}
	m := NewMonitor(b, logger.NewNop(), DefaultConfig())

	status := m.CheckBalance(context.Background(), "acct-1")
	assert.Equal(t, 10000.0, status.Balance)
	assert.True(t, status.CashAccountMode)
	assert.False(t, status.Degraded)

	b.balance = 30000
	m.Invalidate("acct-1")
	status = m.CheckBalance(context.Background(), "acct-1")
	assert.False(t, status.CashAccountMode)
}

// TestCheckBalance_CachesWithinTTL tests that repeated checks skip the broker
func TestCheckBalance_CachesWithinTTL(t *testing.T) {
	b := &fakeBroker{balance: 10000}
	m := NewMonitor(b, logger.NewNop(), Config{CacheTTL: time.Hour})

	m.CheckBalance(context.Background(), "acct-1")
	m.CheckBalance(context.Background(), "acct-1")
	m.CheckBalance(context.Background(), "acct-1")
	assert.Equal(t, 1, b.calls)
}

// TestCheckBalance_InvalidateForcesRefresh tests cache invalidation
func TestCheckBalance_InvalidateForcesRefresh(t *testing.T) {
	b := &fakeBroker{balance: 10000}
	m := NewMonitor(b, logger.NewNop(), Config{CacheTTL: time.Hour})

	m.CheckBalance(context.Background(), "acct-1")
	m.Invalidate("acct-1")
	m.CheckBalance(context.Background(), "acct-1")
	assert.Equal(t, 2, b.calls)
}

// TestCheckBalance_ServesStaleOnBrokerFault tests the fail-open cache path
func TestCheckBalance_ServesStaleOnBrokerFault(t *testing.T) {
	b := &fakeBroker{balance: 30000}
	m := NewMonitor(b, logger.NewNop(), Config{CacheTTL: time.Nanosecond})

	first := m.CheckBalance(context.Background(), "acct-1")
	assert.False(t, first.Degraded)

	b.fail = true
	time.Sleep(time.Millisecond)
	second := m.CheckBalance(context.Background(), "acct-1")
	assert.True(t, second.Degraded)
	assert.Equal(t, 30000.0, second.Balance)
	assert.False(t, second.CashAccountMode) // mode preserved from the cached value
}

// TestCheckBalance_ZeroCashModeWithoutCache tests fail-open with nothing cached
func TestCheckBalance_ZeroCashModeWithoutCache(t *testing.T) {
	b := &fakeBroker{fail: true}
	m := NewMonitor(b, logger.NewNop(), DefaultConfig())

	status := m.CheckBalance(context.Background(), "acct-1")
	assert.True(t, status.Degraded)
	assert.Equal(t, 0.0, status.Balance)
	assert.True(t, status.CashAccountMode)
}

// TestCheckBalance_DegradedResultIsNotCached tests that the next healthy call
// replaces the fail-open answer
func TestCheckBalance_DegradedResultIsNotCached(t *testing.T) {
	b := &fakeBroker{fail: true}
	m := NewMonitor(b, logger.NewNop(), DefaultConfig())

	m.CheckBalance(context.Background(), "acct-1")

	b.fail = false
	b.balance = 30000
	status := m.CheckBalance(context.Background(), "acct-1")
	assert.False(t, status.Degraded)
	assert.Equal(t, 30000.0, status.Balance)
}
