package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// StrategyConfig is the immutable per-run configuration of a simulation.
// It is validated once, up front; the engine never probes for missing keys.
type StrategyConfig struct {
	Markets                   []string           `json:"markets" mapstructure:"markets"`
	EntryDonchianPeriod       int                `json:"entry_donchian_period" mapstructure:"entry_donchian_period"`
	TakeProfitLongExitPeriod  int                `json:"take_profit_long_exit_period" mapstructure:"take_profit_long_exit_period"`
	TakeProfitShortExitPeriod int                `json:"take_profit_short_exit_period" mapstructure:"take_profit_short_exit_period"`
	ATRPeriod                 int                `json:"atr_period" mapstructure:"atr_period"`
	StopLossATRMultiplier     float64            `json:"stop_loss_atr_multiplier" mapstructure:"stop_loss_atr_multiplier"`
	RiskPerTrade              float64            `json:"risk_per_trade" mapstructure:"risk_per_trade"`
	TotalPortfolioRiskLimit   float64            `json:"total_portfolio_risk_limit" mapstructure:"total_portfolio_risk_limit"`
	SlippagePips              float64            `json:"slippage_pips" mapstructure:"slippage_pips"`
	CommissionPerLot          float64            `json:"commission_per_lot" mapstructure:"commission_per_lot"`
	PipPointValue             map[string]float64 `json:"pip_point_value" mapstructure:"pip_point_value"`
	LotSize                   map[string]int64   `json:"lot_size" mapstructure:"lot_size"`
	MaxUnitsPerMarket         map[string]int64   `json:"max_units_per_market" mapstructure:"max_units_per_market"`
	InitialCapital            float64            `json:"initial_capital" mapstructure:"initial_capital"`
	RiskFreeRateAnnual        float64            `json:"risk_free_rate_annual" mapstructure:"risk_free_rate_annual"`
	EmergencyStop             bool               `json:"emergency_stop" mapstructure:"emergency_stop"`
}

// PipValuePerLot is the monetary value of one pip for one standard lot of a
// symbol, derived from its pip point value and lot size.
func (c *StrategyConfig) PipValuePerLot(symbol string) float64 {
	return c.PipPointValue[symbol] * float64(c.LotSize[symbol])
}

// Validate checks every required field and fails fast with an error naming
// the offending key and value.
func (c *StrategyConfig) Validate() error {
	if len(c.Markets) == 0 {
		return fmt.Errorf("config: markets must list at least one symbol")
	}
	if c.EntryDonchianPeriod <= 0 {
		return fmt.Errorf("config: entry_donchian_period must be positive, got %d", c.EntryDonchianPeriod)
	}
	if c.TakeProfitLongExitPeriod <= 0 {
		return fmt.Errorf("config: take_profit_long_exit_period must be positive, got %d", c.TakeProfitLongExitPeriod)
	}
	if c.TakeProfitShortExitPeriod <= 0 {
		return fmt.Errorf("config: take_profit_short_exit_period must be positive, got %d", c.TakeProfitShortExitPeriod)
	}
	if c.ATRPeriod <= 0 {
		return fmt.Errorf("config: atr_period must be positive, got %d", c.ATRPeriod)
	}
	if c.StopLossATRMultiplier <= 0 {
		return fmt.Errorf("config: stop_loss_atr_multiplier must be positive, got %g", c.StopLossATRMultiplier)
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return fmt.Errorf("config: risk_per_trade must be in (0, 1), got %g", c.RiskPerTrade)
	}
	if c.TotalPortfolioRiskLimit <= 0 || c.TotalPortfolioRiskLimit > 1 {
		return fmt.Errorf("config: total_portfolio_risk_limit must be in (0, 1], got %g", c.TotalPortfolioRiskLimit)
	}
	if c.SlippagePips < 0 {
		return fmt.Errorf("config: slippage_pips must not be negative, got %g", c.SlippagePips)
	}
	if c.CommissionPerLot < 0 {
		return fmt.Errorf("config: commission_per_lot must not be negative, got %g", c.CommissionPerLot)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("config: initial_capital must be positive, got %g", c.InitialCapital)
	}
	for _, m := range c.Markets {
		if v, ok := c.PipPointValue[m]; !ok || v <= 0 {
			return fmt.Errorf("config: pip_point_value missing or non-positive for market %q", m)
		}
		if v, ok := c.LotSize[m]; !ok || v <= 0 {
			return fmt.Errorf("config: lot_size missing or non-positive for market %q", m)
		}
		if v, ok := c.MaxUnitsPerMarket[m]; !ok || v < 0 {
			return fmt.Errorf("config: max_units_per_market missing or negative for market %q", m)
		}
	}
	return nil
}

// LoadStrategyConfig reads and validates a strategy configuration JSON file.
func LoadStrategyConfig(path string) (*StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg StrategyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
