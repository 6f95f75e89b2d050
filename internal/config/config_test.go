package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_IsValid tests that the shipped defaults pass validation
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 25000.0, cfg.Account.CashModeThreshold)
	assert.Equal(t, 3, cfg.Compliance.MaxDayTrades)
	assert.Equal(t, 2, cfg.Compliance.SettlementBusinessDays)
	assert.Equal(t, [3]float64{0.05, 0.10, 0.20}, cfg.Profit.LevelPercents)
	assert.Equal(t, 30*time.Minute, cfg.Portfolio.BreakerCooldown)
	assert.Equal(t, "paper", cfg.Broker.Name)
}

// TestLoadPlatformConfig_MergesDefaults tests partial files getting defaults
func TestLoadPlatformConfig_MergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"account": {"cash_mode_threshold": 30000},
		"compliance": {"max_day_trades": 2}
	}`), 0644))

	cfg, err := LoadPlatformConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30000.0, cfg.Account.CashModeThreshold)
	assert.Equal(t, 2, cfg.Compliance.MaxDayTrades)
	// untouched fields fall back to defaults
	assert.Equal(t, 5, cfg.Compliance.LookbackBusinessDays)
	assert.Equal(t, 0.10, cfg.Sizing.MaxPositionPct)
}

func TestLoadPlatformConfig_MissingFile(t *testing.T) {
	_, err := LoadPlatformConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

// TestValidate_RejectsInvertedConfidenceTiers tests tier ordering validation
func TestValidate_RejectsInvertedConfidenceTiers(t *testing.T) {
	cfg := Default()
	cfg.Sizing.MediumConfidence = 0.8
	cfg.Sizing.HighConfidence = 0.7
	assert.Error(t, cfg.Validate())
}

// TestValidate_RejectsNonIncreasingProfitLevels tests ladder validation
func TestValidate_RejectsNonIncreasingProfitLevels(t *testing.T) {
	cfg := Default()
	cfg.Profit.LevelPercents = [3]float64{0.10, 0.05, 0.20}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownBroker(t *testing.T) {
	cfg := Default()
	cfg.Broker.Name = "alpaca"
	assert.Error(t, cfg.Validate())
}

func TestValidate_GatewayRequiresURL(t *testing.T) {
	cfg := Default()
	cfg.Broker.Name = "gateway"
	cfg.Broker.GatewayURL = ""
	assert.Error(t, cfg.Validate())

	cfg.Broker.GatewayURL = "https://gateway.internal"
	assert.NoError(t, cfg.Validate())
}

// TestApplyEnvOverrides_InjectsSecrets tests env-var injection for secrets
func TestApplyEnvOverrides_InjectsSecrets(t *testing.T) {
	t.Setenv("BROKER_API_KEY", "key-from-env")
	t.Setenv("BROKER_GATEWAY_URL", "https://env.gateway")

	cfg := Default()
	cfg.Broker.APIKey = "${BROKER_API_KEY}"
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "key-from-env", cfg.Broker.APIKey)
	assert.Equal(t, "https://env.gateway", cfg.Broker.GatewayURL)
}
