package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/regime"
	"equity-risk-engine/pkg/types"
)

// stubBroker serves fixed account data for checker tests
type stubBroker struct {
	summary   types.AccountSummary
	positions []types.Position
	err       error
}

func (b *stubBroker) GetAccountSummary(context.Context, string) (*types.AccountSummary, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := b.summary
	return &s, nil
}

func (b *stubBroker) GetPositions(context.Context, string) ([]types.Position, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.positions, nil
}

func (b *stubBroker) PlaceMarketOrder(context.Context, string, string, types.SignalType, int) (*types.Order, error) {
	return nil, nil
}

func (b *stubBroker) PlaceLimitOrder(context.Context, string, string, types.SignalType, int, float64) (*types.Order, error) {
	return nil, nil
}

func findCheck(t *testing.T, d *Decision, name string) RiskCheck {
	t.Helper()
	for _, c := range d.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return RiskCheck{}
}

func newTestChecker(b *stubBroker, cfg Config) *Checker {
	return NewChecker(b, logger.NewNop(), cfg, nil, regime.StaticDetector{})
}

// TestEvaluate_SmallBuyPasses tests a trade well inside every limit
func TestEvaluate_SmallBuyPasses(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 10, 100)
	assert.True(t, d.Approved)
	assert.Equal(t, 0.0, d.RiskScore)
	assert.Equal(t, 0, d.AdjustedSize)
}

// TestEvaluate_ConcentrationBlocksAtLimit tests the 10% single-trade cap
func TestEvaluate_ConcentrationBlocksAtLimit(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{})

	// 100 shares * $120 = $12k of a $100k portfolio
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 100, 120)
	assert.False(t, d.Approved)
	assert.Equal(t, CheckFailed, findCheck(t, d, "concentration").Result)
	assert.Greater(t, d.RiskScore, 0.0)
}

// TestEvaluate_ConcentrationWarnsNearLimit tests the 80%-of-limit warning band
func TestEvaluate_ConcentrationWarnsNearLimit(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{})

	// $9k of a $100k portfolio = 9%, inside the [8%, 10%) warning band
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 90, 100)
	check := findCheck(t, d, "concentration")
	assert.Equal(t, CheckWarning, check.Result)
	assert.True(t, d.Approved) // warnings only block in strict mode
}

// TestEvaluate_StrictModeWarningsBlock tests strict-mode handling of warnings
func TestEvaluate_StrictModeWarningsBlock(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{StrictMode: true})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 90, 100)
	assert.False(t, d.Approved)
}

// TestEvaluate_SymbolExposureCountsExistingPosition tests per-symbol stacking
func TestEvaluate_SymbolExposureCountsExistingPosition(t *testing.T) {
	b := &stubBroker{
		summary: types.AccountSummary{Balance: 80000, Equity: 100000},
		positions: []types.Position{
			{Symbol: "AAPL", Quantity: 100, AvgPrice: 100, MarketPrice: 120},
		},
	}
	c := newTestChecker(b, Config{})

	// existing $12k + new $5k = $17k of $92k > 15%
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 50, 100)
	assert.Equal(t, CheckFailed, findCheck(t, d, "symbol_exposure").Result)
	assert.False(t, d.Approved)
}

// TestEvaluate_SectorExposureAcrossSymbols tests sector stacking across holdings
func TestEvaluate_SectorExposureAcrossSymbols(t *testing.T) {
	b := &stubBroker{
		summary: types.AccountSummary{Balance: 60000, Equity: 100000},
		positions: []types.Position{
			{Symbol: "MSFT", Quantity: 100, MarketPrice: 150}, // $15k Technology
			{Symbol: "NVDA", Quantity: 100, MarketPrice: 120}, // $12k Technology
		},
	}
	c := newTestChecker(b, Config{})

	// $27k existing tech + $3k new = $30k of $87k > 30%
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 30, 100)
	assert.Equal(t, CheckFailed, findCheck(t, d, "sector_exposure").Result)
}

// TestEvaluate_UnknownSectorWarns tests symbols outside the sector table
func TestEvaluate_UnknownSectorWarns(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{})

	d := c.Evaluate(context.Background(), "acct-1", "ZZZZ", types.SignalBuy, 10, 100)
	assert.Equal(t, CheckWarning, findCheck(t, d, "sector_exposure").Result)
	assert.True(t, d.Approved)
}

// TestEvaluate_CorrelationWarnsSameSector tests the sector-proxy estimate
func TestEvaluate_CorrelationWarnsSameSector(t *testing.T) {
	b := &stubBroker{
		summary: types.AccountSummary{Balance: 95000, Equity: 100000},
		positions: []types.Position{
			{Symbol: "MSFT", Quantity: 10, MarketPrice: 100},
		},
	}
	c := newTestChecker(b, Config{})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 10, 100)
	check := findCheck(t, d, "correlation")
	assert.Equal(t, CheckWarning, check.Result)
	assert.InDelta(t, 0.7, check.Value, 1e-9)
	assert.True(t, d.Approved)
}

// TestEvaluate_SellSkipsExposureChecks tests that sells pass sizing checks
func TestEvaluate_SellSkipsExposureChecks(t *testing.T) {
	b := &stubBroker{
		summary: types.AccountSummary{Balance: 1000, Equity: 20000},
		positions: []types.Position{
			{Symbol: "AAPL", Quantity: 150, MarketPrice: 120},
		},
	}
	c := newTestChecker(b, Config{})

	// the same quantities as a buy would breach every exposure limit
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalSell, 150, 120)
	assert.True(t, d.Approved)
	assert.Equal(t, CheckPassed, findCheck(t, d, "concentration").Result)
	assert.Equal(t, CheckPassed, findCheck(t, d, "symbol_exposure").Result)
}

// TestEvaluate_CircuitBreakerTripsAndHolds tests the daily-loss halt and cooldown
func TestEvaluate_CircuitBreakerTripsAndHolds(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 96000, Equity: 96000, DailyPnL: -4000}}
	c := newTestChecker(b, Config{BreakerCooldown: time.Hour})

	// -4.17% daily loss trips the 3% breaker
	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 1, 100)
	require.False(t, d.Approved)
	assert.Equal(t, CheckFailed, findCheck(t, d, "circuit_breaker").Result)

	active, remaining := c.BreakerActive()
	assert.True(t, active)
	assert.Greater(t, remaining, time.Duration(0))

	// still halted even after the P&L recovers
	b.summary.DailyPnL = 0
	d = c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 1, 100)
	assert.False(t, d.Approved)
	assert.Equal(t, CheckFailed, findCheck(t, d, "circuit_breaker").Result)
}

// TestEvaluate_TrippedBreakerHoldsThroughBrokerOutage tests that losing the
// broker does not lift an active halt
func TestEvaluate_TrippedBreakerHoldsThroughBrokerOutage(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 96000, Equity: 96000, DailyPnL: -4000}}
	c := newTestChecker(b, Config{BreakerCooldown: time.Hour})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 1, 100)
	require.False(t, d.Approved)

	// the halt lives in memory, so a broker outage must not bypass it
	b.err = assert.AnError
	d = c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 1, 100)
	assert.False(t, d.Approved)
	assert.Equal(t, CheckWarning, findCheck(t, d, "portfolio_data").Result)
	assert.Equal(t, CheckFailed, findCheck(t, d, "circuit_breaker").Result)
}

// TestEvaluate_CircuitBreakerWarnsNearLimit tests the 70% warning band
func TestEvaluate_CircuitBreakerWarnsNearLimit(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000, DailyPnL: -2500}}
	c := newTestChecker(b, Config{})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 1, 100)
	assert.Equal(t, CheckWarning, findCheck(t, d, "circuit_breaker").Result)
	assert.True(t, d.Approved)
}

// TestEvaluate_HighVolatilityReducesSize tests the regime-driven size cut
func TestEvaluate_HighVolatilityReducesSize(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := NewChecker(b, logger.NewNop(), Config{}, nil,
		regime.StaticDetector{Regime: regime.HighVolatility})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 40, 100)
	assert.True(t, d.Approved)
	assert.Equal(t, regime.HighVolatility, d.MarketRegime)
	assert.Equal(t, CheckWarning, findCheck(t, d, "market_regime").Result)
	assert.Equal(t, 20, d.AdjustedSize) // halved by the 0.5 reduction
}

// TestEvaluate_WarningsShaveAdjustedSize tests the per-warning 10% reduction
func TestEvaluate_WarningsShaveAdjustedSize(t *testing.T) {
	b := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	c := newTestChecker(b, Config{})

	// unknown sector produces exactly one warning
	d := c.Evaluate(context.Background(), "acct-1", "ZZZZ", types.SignalBuy, 50, 100)
	require.True(t, d.Approved)
	assert.Equal(t, 45, d.AdjustedSize)
}

// TestEvaluate_BrokerFaultFailsOpen tests the degraded warning path
func TestEvaluate_BrokerFaultFailsOpen(t *testing.T) {
	b := &stubBroker{err: assert.AnError}
	c := newTestChecker(b, Config{})

	d := c.Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 10, 100)
	assert.True(t, d.Approved)
	assert.Equal(t, CheckWarning, findCheck(t, d, "portfolio_data").Result)
	assert.Greater(t, d.RiskScore, 0.0)
}

// TestEvaluate_RiskScoreOrdersSeverity tests that failures outscore warnings
func TestEvaluate_RiskScoreOrdersSeverity(t *testing.T) {
	clean := &stubBroker{summary: types.AccountSummary{Balance: 100000, Equity: 100000}}
	warned := newTestChecker(clean, Config{}).
		Evaluate(context.Background(), "acct-1", "ZZZZ", types.SignalBuy, 10, 100)
	failed := newTestChecker(clean, Config{}).
		Evaluate(context.Background(), "acct-1", "AAPL", types.SignalBuy, 150, 100)

	assert.Greater(t, failed.RiskScore, warned.RiskScore)
	assert.LessOrEqual(t, failed.RiskScore, 1.0)
}
