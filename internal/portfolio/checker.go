package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"equity-risk-engine/internal/broker"
	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/monitoring"
	"equity-risk-engine/internal/regime"
	"equity-risk-engine/pkg/types"
)

// CheckResult is the outcome of one portfolio risk check.
type CheckResult string

const (
	CheckPassed  CheckResult = "PASSED"
	CheckFailed  CheckResult = "FAILED"
	CheckWarning CheckResult = "WARNING"
)

// RiskCheck is one named check with its measured value and threshold.
type RiskCheck struct {
	Name      string      `json:"name"`
	Result    CheckResult `json:"result"`
	Message   string      `json:"message"`
	Value     float64     `json:"value"`
	Threshold float64     `json:"threshold"`
}

// Decision bundles every check into an approve/reject with a blended score.
type Decision struct {
	Approved     bool        `json:"approved"`
	Checks       []RiskCheck `json:"checks"`
	RiskScore    float64     `json:"risk_score"` // 0..1
	AdjustedSize int         `json:"adjusted_size,omitempty"`
	MarketRegime regime.Type `json:"market_regime"`
}

// Config controls the portfolio-level limits.
type Config struct {
	MaxPositionPct       float64       `json:"max_position_pct"`
	MaxSymbolExposurePct float64       `json:"max_symbol_exposure_pct"`
	MaxSectorExposurePct float64       `json:"max_sector_exposure_pct"`
	MaxCorrelation       float64       `json:"max_correlation"`
	MaxDailyLossPct      float64       `json:"max_daily_loss_pct"`
	BreakerCooldown      time.Duration `json:"breaker_cooldown"`
	RegimeCacheTTL       time.Duration `json:"regime_cache_ttl"`
	HighVolReduction     float64       `json:"high_vol_reduction"`
	StrictMode           bool          `json:"strict_mode"`
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:       0.10,
		MaxSymbolExposurePct: 0.15,
		MaxSectorExposurePct: 0.30,
		MaxCorrelation:       0.6,
		MaxDailyLossPct:      0.03,
		BreakerCooldown:      30 * time.Minute,
		RegimeCacheTTL:       15 * time.Minute,
		HighVolReduction:     0.5,
	}
}

// Risk-score weights per check. FAILED contributes the full weight, WARNING
// half.
var checkWeights = map[string]float64{
	"circuit_breaker": 1.0,
	"concentration":   0.8,
	"sector_exposure": 0.7,
	"symbol_exposure": 0.7,
	"correlation":     0.5,
	"market_regime":   0.4,
}

// Checker evaluates portfolio-level risk for a proposed trade against
// broker-reported positions. The circuit breaker is deliberately
// process-global: one daily-loss trip halts every account this checker
// serves.
type Checker struct {
	broker   broker.Broker
	log      *logger.Logger
	cfg      Config
	corr     CorrelationEstimator
	detector regime.Detector

	mu             sync.Mutex
	breakerTripped bool
	breakerAt      time.Time
}

// NewChecker creates a portfolio risk checker. A nil estimator gets the
// sector-proxy heuristic; a nil detector gets the cached sideways default.
func NewChecker(b broker.Broker, log *logger.Logger, cfg Config, corr CorrelationEstimator, detector regime.Detector) *Checker {
	def := DefaultConfig()
	if cfg.MaxPositionPct == 0 {
		cfg.MaxPositionPct = def.MaxPositionPct
	}
	if cfg.MaxSymbolExposurePct == 0 {
		cfg.MaxSymbolExposurePct = def.MaxSymbolExposurePct
	}
	if cfg.MaxSectorExposurePct == 0 {
		cfg.MaxSectorExposurePct = def.MaxSectorExposurePct
	}
	if cfg.MaxCorrelation == 0 {
		cfg.MaxCorrelation = def.MaxCorrelation
	}
	if cfg.MaxDailyLossPct == 0 {
		cfg.MaxDailyLossPct = def.MaxDailyLossPct
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if cfg.RegimeCacheTTL == 0 {
		cfg.RegimeCacheTTL = def.RegimeCacheTTL
	}
	if cfg.HighVolReduction == 0 {
		cfg.HighVolReduction = def.HighVolReduction
	}
	if corr == nil {
		corr = SectorProxyEstimator{}
	}
	if detector == nil {
		detector = regime.NewCached(regime.StaticDetector{}, cfg.RegimeCacheTTL)
	}
	return &Checker{broker: b, log: log, cfg: cfg, corr: corr, detector: detector}
}

// Evaluate runs every check for the proposed trade. Exposure checks only
// bind on the BUY side; sells reduce risk and pass them automatically.
func (c *Checker) Evaluate(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int, price float64) *Decision {
	decision := &Decision{MarketRegime: c.detector.Detect()}
	tradeValue := float64(quantity) * price

	summary, sumErr := c.broker.GetAccountSummary(ctx, accountID)
	positions, posErr := c.broker.GetPositions(ctx, accountID)
	if sumErr != nil || posErr != nil {
		// Fail open like the rest of the risk core: flag it, keep trading.
		err := sumErr
		if err == nil {
			err = posErr
		}
		c.log.LogError("portfolio data fetch failed", err)
		c.log.Degraded("account %s: evaluating portfolio risk without broker data", accountID)
		decision.Checks = append(decision.Checks, RiskCheck{
			Name:    "portfolio_data",
			Result:  CheckWarning,
			Message: "broker data unavailable, exposure checks skipped",
		})
		// The breaker hold lives in memory; an active halt still binds.
		if hold, held := c.breakerHold(); held {
			decision.Checks = append(decision.Checks, hold)
		}
		c.finalize(decision, side, quantity)
		return decision
	}

	portfolioValue := summary.Balance
	for _, pos := range positions {
		portfolioValue += pos.MarketValue()
	}

	decision.Checks = append(decision.Checks, c.checkConcentration(side, tradeValue, portfolioValue))
	decision.Checks = append(decision.Checks, c.checkSymbolExposure(side, symbol, tradeValue, portfolioValue, positions))
	decision.Checks = append(decision.Checks, c.checkSectorExposure(side, symbol, tradeValue, portfolioValue, positions))
	decision.Checks = append(decision.Checks, c.checkCorrelation(side, symbol, positions))
	decision.Checks = append(decision.Checks, c.checkCircuitBreaker(summary))
	decision.Checks = append(decision.Checks, c.checkRegime(decision.MarketRegime))

	c.finalize(decision, side, quantity)
	return decision
}

func sellPass(name string) RiskCheck {
	return RiskCheck{
		Name:    name,
		Result:  CheckPassed,
		Message: "sell order reduces exposure",
	}
}

func (c *Checker) checkConcentration(side types.SignalType, tradeValue, portfolioValue float64) RiskCheck {
	if side != types.SignalBuy {
		return sellPass("concentration")
	}

	check := RiskCheck{Name: "concentration", Threshold: c.cfg.MaxPositionPct}
	if portfolioValue <= 0 {
		check.Result = CheckWarning
		check.Message = "portfolio value unknown, cannot measure concentration"
		return check
	}

	pct := tradeValue / portfolioValue
	check.Value = pct
	switch {
	case pct >= c.cfg.MaxPositionPct:
		check.Result = CheckFailed
		check.Message = fmt.Sprintf("trade is %.1f%% of portfolio, limit %.1f%%", pct*100, c.cfg.MaxPositionPct*100)
	case pct >= c.cfg.MaxPositionPct*0.8:
		check.Result = CheckWarning
		check.Message = fmt.Sprintf("trade is %.1f%% of portfolio, approaching %.1f%% limit", pct*100, c.cfg.MaxPositionPct*100)
	default:
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("trade is %.1f%% of portfolio", pct*100)
	}
	return check
}

func (c *Checker) checkSymbolExposure(side types.SignalType, symbol string, tradeValue, portfolioValue float64, positions []types.Position) RiskCheck {
	if side != types.SignalBuy {
		return sellPass("symbol_exposure")
	}

	check := RiskCheck{Name: "symbol_exposure", Threshold: c.cfg.MaxSymbolExposurePct}
	if portfolioValue <= 0 {
		check.Result = CheckWarning
		check.Message = "portfolio value unknown, cannot measure symbol exposure"
		return check
	}

	existing := 0.0
	for _, pos := range positions {
		if pos.Symbol == symbol {
			existing += pos.MarketValue()
		}
	}

	pct := (existing + tradeValue) / portfolioValue
	check.Value = pct
	if pct >= c.cfg.MaxSymbolExposurePct {
		check.Result = CheckFailed
		check.Message = fmt.Sprintf("%s exposure would reach %.1f%%, limit %.1f%%", symbol, pct*100, c.cfg.MaxSymbolExposurePct*100)
	} else {
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("%s exposure %.1f%% within limit", symbol, pct*100)
	}
	return check
}

func (c *Checker) checkSectorExposure(side types.SignalType, symbol string, tradeValue, portfolioValue float64, positions []types.Position) RiskCheck {
	if side != types.SignalBuy {
		return sellPass("sector_exposure")
	}

	check := RiskCheck{Name: "sector_exposure", Threshold: c.cfg.MaxSectorExposurePct}
	sector := SectorOf(symbol)
	if sector == "" {
		check.Result = CheckWarning
		check.Message = fmt.Sprintf("unknown sector for %s, exposure not measurable", symbol)
		return check
	}
	if portfolioValue <= 0 {
		check.Result = CheckWarning
		check.Message = "portfolio value unknown, cannot measure sector exposure"
		return check
	}

	sectorValue := tradeValue
	for _, pos := range positions {
		if SectorOf(pos.Symbol) == sector {
			sectorValue += pos.MarketValue()
		}
	}

	pct := sectorValue / portfolioValue
	check.Value = pct
	if pct >= c.cfg.MaxSectorExposurePct {
		check.Result = CheckFailed
		check.Message = fmt.Sprintf("%s exposure would reach %.1f%%, limit %.1f%%", sector, pct*100, c.cfg.MaxSectorExposurePct*100)
	} else {
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("%s exposure %.1f%% within limit", sector, pct*100)
	}
	return check
}

func (c *Checker) checkCorrelation(side types.SignalType, symbol string, positions []types.Position) RiskCheck {
	if side != types.SignalBuy {
		return sellPass("correlation")
	}

	check := RiskCheck{Name: "correlation", Threshold: c.cfg.MaxCorrelation}
	est, with := c.corr.Estimate(symbol, positions)
	check.Value = est

	// Estimates, not measured correlations, so a breach warns instead of
	// failing.
	if est > c.cfg.MaxCorrelation {
		check.Result = CheckWarning
		check.Message = fmt.Sprintf("estimated correlation %.2f with %s exceeds %.2f", est, with, c.cfg.MaxCorrelation)
	} else {
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("estimated correlation %.2f within limit", est)
	}
	return check
}

// breakerHold reports whether a previously tripped breaker is still inside
// its cooldown window. It reads only in-memory state, so a broker outage
// cannot lift an active halt.
func (c *Checker) breakerHold() (RiskCheck, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	check := RiskCheck{Name: "circuit_breaker", Threshold: -c.cfg.MaxDailyLossPct}
	if !c.breakerTripped {
		return check, false
	}
	if remaining := c.cfg.BreakerCooldown - time.Since(c.breakerAt); remaining > 0 {
		check.Result = CheckFailed
		check.Message = fmt.Sprintf("circuit breaker active, %s of cooldown remaining", remaining.Round(time.Second))
		return check, true
	}
	c.breakerTripped = false
	monitoring.SetCircuitBreaker(false)
	c.log.Risk("circuit breaker cooldown elapsed, trading re-enabled")
	return check, false
}

func (c *Checker) checkCircuitBreaker(summary *types.AccountSummary) RiskCheck {
	if check, held := c.breakerHold(); held {
		return check
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	check := RiskCheck{Name: "circuit_breaker", Threshold: -c.cfg.MaxDailyLossPct}

	base := summary.Balance
	if summary.Equity > 0 {
		base = summary.Equity
	}
	if base <= 0 {
		check.Result = CheckPassed
		check.Message = "no equity to measure daily loss against"
		return check
	}

	pnlPct := summary.DailyPnL / base
	check.Value = pnlPct
	switch {
	case pnlPct <= -c.cfg.MaxDailyLossPct:
		c.breakerTripped = true
		c.breakerAt = time.Now()
		monitoring.SetCircuitBreaker(true)
		c.log.LogCircuitBreaker(pnlPct, c.cfg.MaxDailyLossPct, c.cfg.BreakerCooldown)
		check.Result = CheckFailed
		check.Message = fmt.Sprintf("daily loss %.2f%% tripped the circuit breaker (limit %.2f%%)", pnlPct*100, c.cfg.MaxDailyLossPct*100)
	case pnlPct <= -c.cfg.MaxDailyLossPct*0.7:
		check.Result = CheckWarning
		check.Message = fmt.Sprintf("daily loss %.2f%% approaching the %.2f%% halt", pnlPct*100, c.cfg.MaxDailyLossPct*100)
	default:
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("daily P&L %.2f%%", pnlPct*100)
	}
	return check
}

func (c *Checker) checkRegime(current regime.Type) RiskCheck {
	check := RiskCheck{Name: "market_regime"}
	if current.RiskReducing() {
		check.Result = CheckWarning
		check.Message = fmt.Sprintf("market regime %s, position risk scaled down", current)
	} else {
		check.Result = CheckPassed
		check.Message = fmt.Sprintf("market regime %s", current)
	}
	return check
}

// finalize computes approval, the blended risk score and any size
// adjustment.
func (c *Checker) finalize(d *Decision, side types.SignalType, quantity int) {
	failures, warnings := 0, 0
	weightSum, scoreSum := 0.0, 0.0

	for _, check := range d.Checks {
		weight, ok := checkWeights[check.Name]
		if !ok {
			weight = 0.5
		}
		weightSum += weight
		switch check.Result {
		case CheckFailed:
			failures++
			scoreSum += weight
		case CheckWarning:
			warnings++
			scoreSum += weight * 0.5
		case CheckPassed:
		}
	}

	if weightSum > 0 {
		d.RiskScore = scoreSum / weightSum
	}
	d.Approved = failures == 0 && (warnings == 0 || !c.cfg.StrictMode)

	if !d.Approved || quantity <= 0 || side != types.SignalBuy {
		return
	}

	factor := 1.0
	if d.MarketRegime == regime.HighVolatility {
		factor = c.cfg.HighVolReduction
	} else if warnings > 0 {
		factor = math.Max(0.5, 1-0.1*float64(warnings))
	}
	if factor < 1.0 {
		adjusted := int(math.Floor(float64(quantity) * factor))
		if adjusted < 1 {
			adjusted = 1
		}
		d.AdjustedSize = adjusted
	}
}

// BreakerActive reports whether the circuit breaker is currently halting
// trading, and the cooldown remaining.
func (c *Checker) BreakerActive() (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.breakerTripped {
		return false, 0
	}
	remaining := c.cfg.BreakerCooldown - time.Since(c.breakerAt)
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// Regime returns the (cached) current market regime.
func (c *Checker) Regime() regime.Type {
	return c.detector.Detect()
}
