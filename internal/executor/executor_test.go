package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-risk-engine/internal/account"
	"equity-risk-engine/internal/broker"
	"equity-risk-engine/internal/compliance"
	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/portfolio"
	"equity-risk-engine/internal/quotes"
	"equity-risk-engine/internal/regime"
	"equity-risk-engine/internal/risk"
	"equity-risk-engine/internal/sizing"
	"equity-risk-engine/internal/store"
	"equity-risk-engine/pkg/types"
)

type fixture struct {
	exec   *Executor
	broker *broker.PaperBroker
	store  *store.MemoryStore
	quotes *quotes.StaticProvider
}

// newFixture wires a full pipeline against the paper broker. balance seeds
// the account; prices seed the quote provider.
func newFixture(t *testing.T, balance float64, prices map[string]float64) *fixture {
	t.Helper()

	q := quotes.NewStatic(prices)
	pb := broker.NewPaper(q)
	pb.Fund("acct-1", balance)

	st := store.NewMemory()
	log := logger.NewNop()
	monitor := account.NewMonitor(pb, log, account.DefaultConfig())
	comp := compliance.NewManager(st, monitor, log, compliance.DefaultConfig())
	sz := sizing.NewManager(monitor, sizing.DefaultConfig())
	// concentration limit above the 10% sizing cap, so sized trades do not
	// sit inside the warning band
	pf := portfolio.NewChecker(pb, log, portfolio.Config{MaxPositionPct: 0.15}, nil, regime.StaticDetector{})
	rm := risk.NewManager(monitor, comp, sz, pf)

	return &fixture{
		exec:   New(pb, rm, st, log, nil),
		broker: pb,
		store:  st,
		quotes: q,
	}
}

func buySignal(symbol string, qty int, price, confidence float64) *types.TradingSignal {
	return &types.TradingSignal{
		Type:       types.SignalBuy,
		Symbol:     symbol,
		Price:      price,
		Quantity:   qty,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
}

func execCtx() types.ExecutionContext {
	return types.ExecutionContext{AccountID: "acct-1", OrderType: types.OrderTypeMarket}
}

func auditStatuses(t *testing.T, st *store.MemoryStore) []string {
	t.Helper()
	recs, err := st.AuditLogs(context.Background(), "acct-1", 0)
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Status
	}
	return out
}

// TestExecuteSignal_SizedBuyFills tests the happy path: a high-confidence
// signal with no quantity gets sized from the balance and filled
func TestExecuteSignal_SizedBuyFills(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 0, 150, 0.9), execCtx())

	assert.Equal(t, StatusSuccess, entry.Status)
	require.NotNil(t, entry.Order)
	// 10% of $10k at $150 = 6 shares
	assert.Equal(t, 6, entry.Order.Quantity)
	assert.Equal(t, 150.0, entry.Order.FillPrice)

	positions, err := f.broker.GetPositions(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 6.0, positions[0].Quantity)

	// fill bookkeeping: one unsettled buy, one trade counted
	unsettled, err := f.store.UnsettledSettlements(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	assert.Equal(t, -900.0, unsettled[0].Amount)

	assert.Equal(t, []string{"SUCCESS"}, auditStatuses(t, f.store))
}

// TestExecuteSignal_HoldRejected tests that non-actionable signals never execute
func TestExecuteSignal_HoldRejected(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	sig := buySignal("AAPL", 5, 150, 0.9)
	sig.Type = types.SignalHold
	entry := f.exec.ExecuteSignal(context.Background(), sig, execCtx())

	assert.Equal(t, StatusRejectedValidation, entry.Status)
	assert.Equal(t, []string{"REJECTED_VALIDATION"}, auditStatuses(t, f.store))
}

func TestExecuteSignal_NilSignalRejected(t *testing.T) {
	f := newFixture(t, 10000, nil)

	entry := f.exec.ExecuteSignal(context.Background(), nil, execCtx())
	assert.Equal(t, StatusRejectedValidation, entry.Status)
}

func TestExecuteSignal_MissingAccountRejected(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 5, 150, 0.9), types.ExecutionContext{})
	assert.Equal(t, StatusRejectedValidation, entry.Status)
}

// TestExecuteSignal_PDTBlockSkipsBroker tests that a compliance block stops
// the pipeline before any order reaches the broker
func TestExecuteSignal_PDTBlockSkipsBroker(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.RecordDayTrade(context.Background(), store.DayTradeRecord{
			AccountID: "acct-1", Symbol: "AAPL", TradeDate: time.Now(),
		}))
	}

	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 5, 150, 0.9), execCtx())

	assert.Equal(t, StatusRejectedCompliance, entry.Status)
	require.NotNil(t, entry.Validation)
	assert.Equal(t, compliance.ResultBlockedPDT, entry.Validation.Compliance.Result)
	assert.True(t, entry.ComplianceBlocked())

	positions, err := f.broker.GetPositions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, []string{"REJECTED_COMPLIANCE"}, auditStatuses(t, f.store))
}

// TestExecuteSignal_PortfolioRejection tests the symbol-exposure limit on a
// margin-eligible account where compliance passes
func TestExecuteSignal_PortfolioRejection(t *testing.T) {
	f := newFixture(t, 100000, map[string]float64{"AAPL": 150})
	f.broker.SetPosition("acct-1", types.Position{
		Symbol: "AAPL", Quantity: 80, AvgPrice: 150, MarketPrice: 150,
	})

	// existing $12k AAPL plus a sized ~$10k buy breaches the 15% symbol cap
	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 100, 150, 0.9), execCtx())

	assert.Equal(t, StatusRejectedRisk, entry.Status)
	assert.False(t, entry.ComplianceBlocked())
	require.NotNil(t, entry.Validation.Portfolio)
	assert.False(t, entry.Validation.Portfolio.Approved)
}

// TestExecuteSignal_DryRun tests that dry runs validate but never place orders
func TestExecuteSignal_DryRun(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	ctx := execCtx()
	ctx.DryRun = true
	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 0, 150, 0.9), ctx)

	assert.Equal(t, StatusRejectedDryRun, entry.Status)
	// the sized quantity still appears in the audit trail
	assert.Equal(t, 6, entry.Signal.Quantity)

	positions, err := f.broker.GetPositions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

// TestExecuteSignal_UnmarketableLimitFailsOrder tests the broker-rejected path
func TestExecuteSignal_UnmarketableLimitFailsOrder(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	ctx := execCtx()
	ctx.OrderType = types.OrderTypeLimit
	ctx.LimitPrice = 100 // buy limit below the $150 market never fills
	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 5, 150, 0.9), ctx)

	assert.Equal(t, StatusFailedOrder, entry.Status)
	require.NotNil(t, entry.Order)
	assert.Equal(t, types.OrderStatusRejected, entry.Order.Status)
}

// TestExecuteSignal_BrokerErrorFailsBroker tests infrastructure failures
func TestExecuteSignal_BrokerErrorFailsBroker(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	// selling a position the account does not hold errors at the broker
	sig := buySignal("AAPL", 5, 150, 1.0)
	sig.Type = types.SignalSell
	entry := f.exec.ExecuteSignal(context.Background(), sig, execCtx())

	assert.Equal(t, StatusFailedBroker, entry.Status)
	assert.Equal(t, []string{"FAILED_BROKER"}, auditStatuses(t, f.store))
}

// TestExecuteSignal_SellAfterBuyRecordsDayTrade tests the end-to-end round trip
func TestExecuteSignal_SellAfterBuyRecordsDayTrade(t *testing.T) {
	f := newFixture(t, 30000, map[string]float64{"AAPL": 150})

	buy := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 10, 150, 0.9), execCtx())
	require.Equal(t, StatusSuccess, buy.Status)

	// margin-eligible balance, so the same-day sell clears GFV and PDT
	sig := buySignal("AAPL", 10, 150, 1.0)
	sig.Type = types.SignalSell
	sell := f.exec.ExecuteSignal(context.Background(), sig, execCtx())

	require.Equal(t, StatusSuccess, sell.Status)
	assert.True(t, sell.DayTrade)

	count, err := f.store.CountDayTradesSince(context.Background(), "acct-1", time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestExecuteSignal_OversizedRequestTrimmed tests the canonical pipeline run:
// a requested 100 shares on a $10k margin-eligible account is trimmed to the
// 6-share recommendation and fills
func TestExecuteSignal_OversizedRequestTrimmed(t *testing.T) {
	q := quotes.NewStatic(map[string]float64{"AAPL": 150})
	pb := broker.NewPaper(q)
	pb.Fund("acct-1", 10000)

	st := store.NewMemory()
	log := logger.NewNop()
	monitor := account.NewMonitor(pb, log, account.Config{CashModeThreshold: 5000})
	comp := compliance.NewManager(st, monitor, log, compliance.DefaultConfig())
	sz := sizing.NewManager(monitor, sizing.DefaultConfig())
	pf := portfolio.NewChecker(pb, log, portfolio.Config{MaxPositionPct: 0.15}, nil, regime.StaticDetector{})
	exec := New(pb, risk.NewManager(monitor, comp, sz, pf), st, log, nil)

	entry := exec.ExecuteSignal(context.Background(), buySignal("AAPL", 100, 150, 0.8), execCtx())

	require.Equal(t, StatusSuccess, entry.Status)
	// 10% of $10k at $150 = 6 shares, down from the requested 100
	assert.Equal(t, 6, entry.Order.Quantity)
	require.NotEmpty(t, entry.Validation.Advisories)
	assert.Contains(t, entry.Validation.Advisories[0], "trimmed")
}

// TestExecuteSignal_NilRiskManagerDegrades tests fail-open without a risk core
func TestExecuteSignal_NilRiskManagerDegrades(t *testing.T) {
	q := quotes.NewStatic(map[string]float64{"AAPL": 150})
	pb := broker.NewPaper(q)
	pb.Fund("acct-1", 10000)
	st := store.NewMemory()
	exec := New(pb, nil, st, logger.NewNop(), nil)

	entry := exec.ExecuteSignal(context.Background(), buySignal("AAPL", 5, 150, 0.9), execCtx())
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Nil(t, entry.Validation)
}

// TestExecuteSignal_AuditPayloadRoundTrips tests that the persisted payload
// carries the full execution log
func TestExecuteSignal_AuditPayloadRoundTrips(t *testing.T) {
	f := newFixture(t, 10000, map[string]float64{"AAPL": 150})

	entry := f.exec.ExecuteSignal(context.Background(), buySignal("AAPL", 0, 150, 0.9), execCtx())
	require.Equal(t, StatusSuccess, entry.Status)

	recs, err := f.store.AuditLogs(context.Background(), "acct-1", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, entry.ID, recs[0].ID)
	assert.Equal(t, "AAPL", recs[0].Symbol)
	assert.Contains(t, string(recs[0].Payload), `"execution_time_ms"`)
	assert.Contains(t, string(recs[0].Payload), `"order"`)
}
