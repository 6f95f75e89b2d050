package compliance

import (
	"context"
	"fmt"
	"math"
	"time"

	"equity-risk-engine/internal/account"
	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/store"
	"equity-risk-engine/pkg/types"
)

// Config controls PDT, settlement, frequency and GFV enforcement.
type Config struct {
	MaxDayTrades           int  `json:"max_day_trades"`
	LookbackBusinessDays   int  `json:"lookback_business_days"`
	SettlementBusinessDays int  `json:"settlement_business_days"`
	MaxDailyTrades         int  `json:"max_daily_trades"`
	MaxWeeklyTrades        int  `json:"max_weekly_trades"`
	StrictPDT              bool `json:"strict_pdt"`
	StrictGFV              bool `json:"strict_gfv"`
}

// DefaultConfig returns strict enforcement with standard US-equities limits.
func DefaultConfig() Config {
	return Config{
		MaxDayTrades:           3,
		LookbackBusinessDays:   5,
		SettlementBusinessDays: 2,
		MaxDailyTrades:         10,
		MaxWeeklyTrades:        30,
		StrictPDT:              true,
		StrictGFV:              true,
	}
}

// CheckRequest describes the proposed trade being checked.
type CheckRequest struct {
	AccountID           string
	Symbol              string
	Side                types.SignalType
	Quantity            int
	Price               float64
	WouldCreateDayTrade bool
}

// Manager owns the settlement, day-trade and trade-frequency state and runs
// every regulatory pre-trade check. Broker or storage faults fail open with
// a degraded decision rather than freezing trading.
type Manager struct {
	store   store.Store
	monitor *account.Monitor
	log     *logger.Logger
	cfg     Config
}

// NewManager creates a compliance manager.
func NewManager(st store.Store, monitor *account.Monitor, log *logger.Logger, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxDayTrades == 0 {
		cfg.MaxDayTrades = def.MaxDayTrades
	}
	if cfg.LookbackBusinessDays == 0 {
		cfg.LookbackBusinessDays = def.LookbackBusinessDays
	}
	if cfg.SettlementBusinessDays == 0 {
		cfg.SettlementBusinessDays = def.SettlementBusinessDays
	}
	if cfg.MaxDailyTrades == 0 {
		cfg.MaxDailyTrades = def.MaxDailyTrades
	}
	if cfg.MaxWeeklyTrades == 0 {
		cfg.MaxWeeklyTrades = def.MaxWeeklyTrades
	}
	return &Manager{store: st, monitor: monitor, log: log, cfg: cfg}
}

// Limits exposes the configured caps for status reporting.
func (m *Manager) Limits() Config {
	return m.cfg
}

// FrequencyCounts returns the current daily and weekly trade counts.
func (m *Manager) FrequencyCounts(ctx context.Context, accountID string, now time.Time) (int, int, error) {
	counts, err := m.store.TradeCounts(ctx, accountID, now)
	if err != nil {
		return 0, 0, err
	}
	return counts.DailyCount, counts.WeeklyCount, nil
}

// SettlementDate returns when cash from a trade on tradeDate settles.
func (m *Manager) SettlementDate(tradeDate time.Time) time.Time {
	return settlementDate(tradeDate, m.cfg.SettlementBusinessDays)
}

// CountDayTrades counts day trades inside the rolling business-day window.
func (m *Manager) CountDayTrades(ctx context.Context, accountID string, now time.Time) (int, error) {
	cutoff := lookbackCutoff(now, m.cfg.LookbackBusinessDays)
	return m.store.CountDayTradesSince(ctx, accountID, cutoff)
}

// CheckPDT enforces the pattern-day-trading limit. It only applies to
// accounts in cash-account mode.
func (m *Manager) CheckPDT(ctx context.Context, accountID string, wouldCreateDayTrade bool, now time.Time) *Decision {
	status := m.monitor.CheckBalance(ctx, accountID)
	if !status.CashAccountMode {
		return allowed("account above cash-mode threshold, PDT rule not applicable")
	}

	count, err := m.CountDayTrades(ctx, accountID, now)
	if err != nil {
		m.log.LogError("PDT day-trade count failed", err)
		m.log.Degraded("account %s: allowing trade without PDT check", accountID)
		return degraded("day-trade lookup failed, proceeding without PDT check")
	}

	projected := count
	if wouldCreateDayTrade {
		projected++
	}

	details := map[string]interface{}{
		"day_trades_used": count,
		"projected":       projected,
		"limit":           m.cfg.MaxDayTrades,
		"window_days":     m.cfg.LookbackBusinessDays,
	}

	if projected >= m.cfg.MaxDayTrades {
		msg := fmt.Sprintf("pattern day trading limit: %d day trades in the last %d business days (limit %d)",
			projected, m.cfg.LookbackBusinessDays, m.cfg.MaxDayTrades)
		if m.cfg.StrictPDT {
			m.log.Risk("account %s blocked by PDT: %s", accountID, msg)
			return blocked(ResultBlockedPDT, msg, details)
		}
		return warning(msg, details)
	}

	return allowed(fmt.Sprintf("%d of %d day trades used", count, m.cfg.MaxDayTrades))
}

// CheckFrequency enforces the daily and weekly trade caps for cash-mode
// accounts.
func (m *Manager) CheckFrequency(ctx context.Context, accountID string, now time.Time) *Decision {
	status := m.monitor.CheckBalance(ctx, accountID)
	if !status.CashAccountMode {
		return allowed("account above cash-mode threshold, frequency caps not applicable")
	}

	counts, err := m.store.TradeCounts(ctx, accountID, now)
	if err != nil {
		m.log.LogError("trade frequency lookup failed", err)
		m.log.Degraded("account %s: allowing trade without frequency check", accountID)
		return degraded("frequency lookup failed, proceeding without frequency check")
	}

	details := map[string]interface{}{
		"daily_count":  counts.DailyCount,
		"daily_limit":  m.cfg.MaxDailyTrades,
		"weekly_count": counts.WeeklyCount,
		"weekly_limit": m.cfg.MaxWeeklyTrades,
	}

	if counts.DailyCount >= m.cfg.MaxDailyTrades {
		return blocked(ResultBlockedFrequency,
			fmt.Sprintf("daily trade cap reached (%d of %d)", counts.DailyCount, m.cfg.MaxDailyTrades), details)
	}
	if counts.WeeklyCount >= m.cfg.MaxWeeklyTrades {
		return blocked(ResultBlockedFrequency,
			fmt.Sprintf("weekly trade cap reached (%d of %d)", counts.WeeklyCount, m.cfg.MaxWeeklyTrades), details)
	}

	return allowed(fmt.Sprintf("%d trades today, %d this week", counts.DailyCount, counts.WeeklyCount))
}

// AvailableSettledCash sweeps due settlements, then returns the balance less
// every unsettled amount (buy costs and not-yet-settled sale proceeds).
func (m *Manager) AvailableSettledCash(ctx context.Context, accountID string, now time.Time) (float64, error) {
	if _, err := m.store.SweepSettlements(ctx, accountID, now); err != nil {
		return 0, err
	}

	status := m.monitor.CheckBalance(ctx, accountID)

	unsettled, err := m.store.UnsettledSettlements(ctx, accountID)
	if err != nil {
		return 0, err
	}

	settled := status.Balance
	for _, rec := range unsettled {
		if rec.Amount < 0 {
			settled -= math.Abs(rec.Amount) // open buy cost
		} else {
			settled -= rec.Amount // sale proceeds not yet settled
		}
	}
	if settled < 0 {
		settled = 0
	}
	return settled, nil
}

// checkBuyFunding verifies a BUY is covered by settled cash, or flags the
// good-faith-violation risk of funding it with unsettled proceeds.
func (m *Manager) checkBuyFunding(ctx context.Context, req CheckRequest, now time.Time) *Decision {
	tradeValue := float64(req.Quantity) * req.Price

	settledCash, err := m.AvailableSettledCash(ctx, req.AccountID, now)
	if err != nil {
		m.log.LogError("settled cash computation failed", err)
		m.log.Degraded("account %s: allowing buy without settlement check", req.AccountID)
		return degraded("settlement lookup failed, proceeding without settled-cash check")
	}

	if settledCash >= tradeValue {
		return allowed(fmt.Sprintf("settled cash $%.2f covers trade of $%.2f", settledCash, tradeValue))
	}

	unsettled, err := m.store.UnsettledSettlements(ctx, req.AccountID)
	if err != nil {
		m.log.LogError("unsettled record lookup failed", err)
		return degraded("settlement lookup failed, proceeding without settled-cash check")
	}

	shortfall := tradeValue - settledCash
	proceeds := 0.0
	holdsUnsettledFunded := false
	for _, rec := range unsettled {
		if rec.Amount > 0 {
			proceeds += rec.Amount
		}
		if rec.UnsettledFunded && rec.Symbol == req.Symbol {
			holdsUnsettledFunded = true
		}
	}

	details := map[string]interface{}{
		"trade_value":         tradeValue,
		"settled_cash":        settledCash,
		"unsettled_proceeds":  proceeds,
		"shortfall":           shortfall,
		"funded_by_unsettled": proceeds >= shortfall,
	}

	if proceeds >= shortfall {
		if holdsUnsettledFunded {
			return warning(fmt.Sprintf(
				"buy funded by unsettled proceeds while already holding unsettled-funded %s; selling before settlement would be a good faith violation",
				req.Symbol), details)
		}
		// Carry the details so the executor records the fill as
		// unsettled-funded; a repeat buy in the same symbol must warn.
		return allowedWith(fmt.Sprintf("buy funded by $%.2f of unsettled proceeds; hold until settlement to avoid a GFV", proceeds), details)
	}

	return blocked(ResultBlockedSettlement,
		fmt.Sprintf("insufficient settled cash: $%.2f available, $%.2f required", settledCash, tradeValue),
		details)
}

// checkSellGFV blocks (or warns about) selling shares bought with cash that
// has not settled yet.
func (m *Manager) checkSellGFV(ctx context.Context, req CheckRequest, now time.Time) *Decision {
	if _, err := m.store.SweepSettlements(ctx, req.AccountID, now); err != nil {
		m.log.LogError("settlement sweep failed", err)
		return degraded("settlement sweep failed, proceeding without GFV check")
	}

	unsettled, err := m.store.UnsettledSettlements(ctx, req.AccountID)
	if err != nil {
		m.log.LogError("unsettled record lookup failed", err)
		return degraded("settlement lookup failed, proceeding without GFV check")
	}

	var earliest time.Time
	found := false
	for _, rec := range unsettled {
		if rec.Symbol == req.Symbol && rec.Amount < 0 {
			if !found || rec.SettlementDate.Before(earliest) {
				earliest = rec.SettlementDate
			}
			found = true
		}
	}

	if !found {
		return allowed("no unsettled purchases of " + req.Symbol)
	}

	details := map[string]interface{}{
		"symbol":              req.Symbol,
		"earliest_settlement": earliest,
	}
	msg := fmt.Sprintf("selling %s before its purchase settles on %s risks a good faith violation",
		req.Symbol, earliest.Format("2006-01-02"))

	if m.cfg.StrictGFV {
		m.log.Risk("account %s blocked by GFV: %s", req.AccountID, msg)
		return blocked(ResultBlockedGFV, msg, details)
	}
	return warning(msg, details)
}

// CheckCompliance runs the composite pre-trade check: PDT, then frequency,
// then funding/GFV by side. The first blocking decision short-circuits.
// Settled-cash and GFV rules only bind cash accounts; margin-eligible
// accounts trade against buying power instead.
func (m *Manager) CheckCompliance(ctx context.Context, req CheckRequest) *Decision {
	now := time.Now()

	var firstWarning *Decision
	note := func(d *Decision) *Decision {
		if d.Result == ResultWarning && firstWarning == nil {
			firstWarning = d
		}
		return d
	}

	if d := note(m.CheckPDT(ctx, req.AccountID, req.WouldCreateDayTrade, now)); !d.CanProceed {
		return d
	}
	if d := note(m.CheckFrequency(ctx, req.AccountID, now)); !d.CanProceed {
		return d
	}

	if m.monitor.CheckBalance(ctx, req.AccountID).CashAccountMode {
		switch req.Side {
		case types.SignalBuy:
			if d := note(m.checkBuyFunding(ctx, req, now)); !d.CanProceed {
				return d
			}
		case types.SignalSell:
			if d := note(m.checkSellGFV(ctx, req, now)); !d.CanProceed {
				return d
			}
		}
	}

	if firstWarning != nil {
		return firstWarning
	}
	return allowed("all compliance checks passed")
}

// RecordFill persists the settlement record for a filled trade and bumps the
// trade-frequency counters. fundedByUnsettled marks buys paid for with
// unsettled proceeds so later GFV checks can find them.
func (m *Manager) RecordFill(ctx context.Context, accountID, symbol, tradeRef string, side types.SignalType, quantity int, price float64, fundedByUnsettled bool, now time.Time) error {
	amount := float64(quantity) * price
	if side == types.SignalBuy {
		amount = -amount
	}

	rec := store.SettlementRecord{
		TradeRef:        tradeRef,
		AccountID:       accountID,
		Symbol:          symbol,
		TradeDate:       now,
		SettlementDate:  m.SettlementDate(now),
		Amount:          amount,
		UnsettledFunded: fundedByUnsettled,
	}
	if err := m.store.RecordSettlement(ctx, rec); err != nil {
		return err
	}
	return m.store.IncrementTradeCounts(ctx, accountID, now)
}

/// DetectAndRecordDayTrade is evaluated for a filled SELL: it matches the
// most recent same-day filled BUY of the same symbol and appends a
// DayTradeRecord for the pair. Returns the record, or nil when the sell did
// not close a same-day round trip.
func (m *Manager) DetectAndRecordDayTrade(ctx context.Context, accountID, symbol, sellRef string, now time.Time) (*store.DayTradeRecord, error) {
	// A buy from today is by construction unsettled under T+2, so the
	// unsettled set contains every candidate.
	unsettled, err := m.store.UnsettledSettlements(ctx, accountID)
	if err != nil {
		return nil, err
	}

	today := dayOf(now)
	var match *store.SettlementRecord
	for i := range unsettled {
		rec := &unsettled[i]
		if rec.Symbol != symbol || rec.Amount >= 0 {
			continue
		}
		if !dayOf(rec.TradeDate).Equal(today) {
			continue
		}
		if match == nil || rec.TradeDate.After(match.TradeDate) {
			match = rec
		}
	}
	if match == nil {
		return nil, nil
	}

	dt := store.DayTradeRecord{
		AccountID: accountID,
		Symbol:    symbol,
		BuyRef:    match.TradeRef,
		SellRef:   sellRef,
		TradeDate: now,
	}
	if err := m.store.RecordDayTrade(ctx, dt); err != nil {
		return nil, err
	}
	m.log.Risk("account %s: day trade recorded for %s (buy %s, sell %s)", accountID, symbol, dt.BuyRef, dt.SellRef)
	return &dt, nil
}
