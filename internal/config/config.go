package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PlatformConfig is the complete configuration for the risk/execution core
type PlatformConfig struct {
	Account    AccountConfig    `json:"account"`
	Compliance ComplianceConfig `json:"compliance"`
	Sizing     SizingConfig     `json:"sizing"`
	Profit     ProfitConfig     `json:"profit_taking"`
	Portfolio  PortfolioConfig  `json:"portfolio_risk"`
	Broker     BrokerConfig     `json:"broker"`
	Store      StoreConfig      `json:"store"`
	LogDir     string           `json:"log_dir"`
}

// AccountConfig controls the account monitor
type AccountConfig struct {
	CashModeThreshold float64       `json:"cash_mode_threshold"` // balance below this => cash-account mode
	CacheTTL          time.Duration `json:"cache_ttl"`           // balance cache duration
}

// ComplianceConfig controls PDT, settlement, frequency and GFV checks
type ComplianceConfig struct {
	MaxDayTrades           int  `json:"max_day_trades"`           // PDT limit in the lookback window
	LookbackBusinessDays   int  `json:"lookback_business_days"`   // rolling day-trade window
	SettlementBusinessDays int  `json:"settlement_business_days"` // T+N
	MaxDailyTrades         int  `json:"max_daily_trades"`         // frequency cap per day
	MaxWeeklyTrades        int  `json:"max_weekly_trades"`        // frequency cap per week
	StrictPDT              bool `json:"strict_pdt"`               // block vs warn on PDT
	StrictGFV              bool `json:"strict_gfv"`               // block vs warn on GFV
}

// SizingConfig controls confidence-tiered position sizing
type SizingConfig struct {
	HighConfidence   float64 `json:"high_confidence"`   // score >= this => HIGH
	MediumConfidence float64 `json:"medium_confidence"` // score >= this => MEDIUM
	HighPct          float64 `json:"high_pct"`          // balance fraction per tier
	MediumPct        float64 `json:"medium_pct"`
	LowPct           float64 `json:"low_pct"`
	MaxPositionPct   float64 `json:"max_position_pct"` // hard cap as balance fraction
	MinShares        int     `json:"min_shares"`       // below this the size is zero
}

// ProfitConfig controls the multi-level profit-taking plan
type ProfitConfig struct {
	LevelPercents [3]float64 `json:"level_percents"` // profit % per level
	ExitFractions [2]float64 `json:"exit_fractions"` // partial-exit fractions for levels 1-2
}

// PortfolioConfig controls portfolio-level risk checks
type PortfolioConfig struct {
	MaxPositionPct       float64       `json:"max_position_pct"`       // concentration limit
	MaxSymbolExposurePct float64       `json:"max_symbol_exposure_pct"`
	MaxSectorExposurePct float64       `json:"max_sector_exposure_pct"`
	MaxCorrelation       float64       `json:"max_correlation"`
	MaxDailyLossPct      float64       `json:"max_daily_loss_pct"` // circuit breaker threshold
	BreakerCooldown      time.Duration `json:"breaker_cooldown"`
	RegimeCacheTTL       time.Duration `json:"regime_cache_ttl"`
	HighVolReduction     float64       `json:"high_vol_reduction"` // size multiplier in HIGH_VOLATILITY
	StrictMode           bool          `json:"strict_mode"`        // warnings also block
}

// BrokerConfig selects and configures the broker adapter
type BrokerConfig struct {
	Name       string        `json:"name"`        // "paper" or "gateway"
	GatewayURL string        `json:"gateway_url"` // REST gateway base URL
	APIKey     string        `json:"api_key"`     // usually injected from env
	Timeout    time.Duration `json:"timeout"`
}

// StoreConfig configures record persistence
type StoreConfig struct {
	Path string `json:"path"` // SQLite database path; ":memory:" for tests
}

// LoadPlatformConfig loads configuration from a JSON file, applies defaults
// and validates it
func LoadPlatformConfig(configFile string) (*PlatformConfig, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg PlatformConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a fully-populated configuration with conservative limits
func Default() *PlatformConfig {
	cfg := &PlatformConfig{}
	cfg.setDefaults()
	return cfg
}

func (c *PlatformConfig) setDefaults() {
	if c.Account.CashModeThreshold == 0 {
		c.Account.CashModeThreshold = 25000.0
	}
	if c.Account.CacheTTL == 0 {
		c.Account.CacheTTL = 5 * time.Minute
	}

	if c.Compliance.MaxDayTrades == 0 {
		c.Compliance.MaxDayTrades = 3
	}
	if c.Compliance.LookbackBusinessDays == 0 {
		c.Compliance.LookbackBusinessDays = 5
	}
	if c.Compliance.SettlementBusinessDays == 0 {
		c.Compliance.SettlementBusinessDays = 2
	}
	if c.Compliance.MaxDailyTrades == 0 {
		c.Compliance.MaxDailyTrades = 10
	}
	if c.Compliance.MaxWeeklyTrades == 0 {
		c.Compliance.MaxWeeklyTrades = 30
	}

	if c.Sizing.HighConfidence == 0 {
		c.Sizing.HighConfidence = 0.7
	}
	if c.Sizing.MediumConfidence == 0 {
		c.Sizing.MediumConfidence = 0.4
	}
	if c.Sizing.HighPct == 0 {
		c.Sizing.HighPct = 0.10
	}
	if c.Sizing.MediumPct == 0 {
		c.Sizing.MediumPct = 0.06
	}
	if c.Sizing.LowPct == 0 {
		c.Sizing.LowPct = 0.03
	}
	if c.Sizing.MaxPositionPct == 0 {
		c.Sizing.MaxPositionPct = 0.10
	}
	if c.Sizing.MinShares == 0 {
		c.Sizing.MinShares = 1
	}

	if c.Profit.LevelPercents == [3]float64{} {
		c.Profit.LevelPercents = [3]float64{0.05, 0.10, 0.20}
	}
	if c.Profit.ExitFractions == [2]float64{} {
		c.Profit.ExitFractions = [2]float64{0.25, 0.50}
	}

	if c.Portfolio.MaxPositionPct == 0 {
		c.Portfolio.MaxPositionPct = 0.10
	}
	if c.Portfolio.MaxSymbolExposurePct == 0 {
		c.Portfolio.MaxSymbolExposurePct = 0.15
	}
	if c.Portfolio.MaxSectorExposurePct == 0 {
		c.Portfolio.MaxSectorExposurePct = 0.30
	}
	if c.Portfolio.MaxCorrelation == 0 {
		c.Portfolio.MaxCorrelation = 0.6
	}
	if c.Portfolio.MaxDailyLossPct == 0 {
		c.Portfolio.MaxDailyLossPct = 0.03
	}
	if c.Portfolio.BreakerCooldown == 0 {
		c.Portfolio.BreakerCooldown = 30 * time.Minute
	}
	if c.Portfolio.RegimeCacheTTL == 0 {
		c.Portfolio.RegimeCacheTTL = 15 * time.Minute
	}
	if c.Portfolio.HighVolReduction == 0 {
		c.Portfolio.HighVolReduction = 0.5
	}

	if c.Broker.Name == "" {
		c.Broker.Name = "paper"
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = 10 * time.Second
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/records.db"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}

// Validate checks the configuration for internally-inconsistent values
func (c *PlatformConfig) Validate() error {
	if c.Account.CashModeThreshold < 0 {
		return fmt.Errorf("cash_mode_threshold must be non-negative")
	}
	if c.Sizing.MediumConfidence >= c.Sizing.HighConfidence {
		return fmt.Errorf("medium_confidence (%.2f) must be below high_confidence (%.2f)",
			c.Sizing.MediumConfidence, c.Sizing.HighConfidence)
	}
	if c.Sizing.MaxPositionPct <= 0 || c.Sizing.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct must be in (0, 1], got %.2f", c.Sizing.MaxPositionPct)
	}
	for i := 1; i < len(c.Profit.LevelPercents); i++ {
		if c.Profit.LevelPercents[i] <= c.Profit.LevelPercents[i-1] {
			return fmt.Errorf("profit level percents must be strictly increasing")
		}
	}
	for _, f := range c.Profit.ExitFractions {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("exit fractions must be in (0, 1)")
		}
	}
	if c.Portfolio.MaxDailyLossPct <= 0 || c.Portfolio.MaxDailyLossPct >= 1 {
		return fmt.Errorf("max_daily_loss_pct must be in (0, 1), got %.2f", c.Portfolio.MaxDailyLossPct)
	}
	if c.Broker.Name != "paper" && c.Broker.Name != "gateway" {
		return fmt.Errorf("unknown broker %q", c.Broker.Name)
	}
	if c.Broker.Name == "gateway" && c.Broker.GatewayURL == "" {
		return fmt.Errorf("gateway broker requires gateway_url")
	}
	return nil
}

// ApplyEnvOverrides injects secrets from the environment when the config file
// leaves them unset or uses ${VAR} placeholders
func (c *PlatformConfig) ApplyEnvOverrides() {
	if c.Broker.APIKey == "" || strings.HasPrefix(c.Broker.APIKey, "${") {
		c.Broker.APIKey = os.Getenv("BROKER_API_KEY")
	}
	if url := os.Getenv("BROKER_GATEWAY_URL"); url != "" {
		c.Broker.GatewayURL = url
	}
}
