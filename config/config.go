// Package config loads and validates the bot's typed configuration from
// YAML or JSON. Parsing is strict: unknown keys are an error, so a typoed
// field fails at startup instead of silently running with a default.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rmorgan/tradecore/market"
)

type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Pairs     []PairConfig    `json:"pairs" yaml:"pairs"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Dashboard DashboardConfig `json:"dashboard" yaml:"dashboard"`
}

type AccountConfig struct {
	ID            string  `json:"id" yaml:"id"`
	QuoteCurrency string  `json:"quote_currency" yaml:"quote_currency"`
	Equity        float64 `json:"equity" yaml:"equity"`
}

// PairConfig is one traded pair with its strategy parameters.
type PairConfig struct {
	Pair       string  `json:"pair" yaml:"pair"`
	FastWindow int     `json:"fast_window" yaml:"fast_window"`
	SlowWindow int     `json:"slow_window" yaml:"slow_window"`
	RSIPeriod  int     `json:"rsi_period" yaml:"rsi_period"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	CycleMS    int     `json:"cycle_ms" yaml:"cycle_ms"`
	TickMS     int     `json:"tick_ms" yaml:"tick_ms"`
}

func (p PairConfig) Cycle() time.Duration { return time.Duration(p.CycleMS) * time.Millisecond }
func (p PairConfig) TickEvery() time.Duration {
	return time.Duration(p.TickMS) * time.Millisecond
}

type RiskConfig struct {
	RiskFraction         float64 `json:"risk_fraction" yaml:"risk_fraction"`
	MaxPositionUnits     float64 `json:"max_position_units" yaml:"max_position_units"`
	MaxAggregateExposure float64 `json:"max_aggregate_exposure" yaml:"max_aggregate_exposure"`
	DrawdownLimit        float64 `json:"drawdown_limit" yaml:"drawdown_limit"`
	DrawdownWindowHours  int     `json:"drawdown_window_hours" yaml:"drawdown_window_hours"`
	StopMode             string  `json:"stop_mode" yaml:"stop_mode"`
	StopLossPct          float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct        float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	ATRMultiple          float64 `json:"atr_multiple" yaml:"atr_multiple"`
	RewardRisk           float64 `json:"reward_risk" yaml:"reward_risk"`
}

type ExecutionConfig struct {
	RetryMaxAttempts int     `json:"retry_max_attempts" yaml:"retry_max_attempts"`
	BackoffBaseMS    int     `json:"backoff_base_ms" yaml:"backoff_base_ms"`
	BackoffCapMS     int     `json:"backoff_cap_ms" yaml:"backoff_cap_ms"`
	CycleTimeoutMS   int     `json:"cycle_timeout_ms" yaml:"cycle_timeout_ms"`
	FillWaitMS       int     `json:"fill_wait_ms" yaml:"fill_wait_ms"`
	PollIntervalMS   int     `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	RatePerSec       float64 `json:"rate_per_sec" yaml:"rate_per_sec"`
	RateBurst        int     `json:"rate_burst" yaml:"rate_burst"`
}

func (e ExecutionConfig) BackoffBase() time.Duration {
	return time.Duration(e.BackoffBaseMS) * time.Millisecond
}
func (e ExecutionConfig) BackoffCap() time.Duration {
	return time.Duration(e.BackoffCapMS) * time.Millisecond
}
func (e ExecutionConfig) CycleTimeout() time.Duration {
	return time.Duration(e.CycleTimeoutMS) * time.Millisecond
}
func (e ExecutionConfig) FillWait() time.Duration {
	return time.Duration(e.FillWaitMS) * time.Millisecond
}
func (e ExecutionConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalMS) * time.Millisecond
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
}

type DashboardConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile reads YAML first and falls back to JSON. Both decoders
// reject unknown fields.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	ydec := yaml.NewDecoder(bytes.NewReader(data))
	ydec.KnownFields(true)
	yerr := ydec.Decode(cfg)
	if yerr != nil {
		*cfg = Config{}
		jdec := json.NewDecoder(bytes.NewReader(data))
		jdec.DisallowUnknownFields()
		if jerr := jdec.Decode(cfg); jerr != nil {
			return nil, fmt.Errorf("parse config: %w", yerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate fails fast on the first bad field.
func (c *Config) Validate() error {
	if c.Account.Equity <= 0 {
		return fmt.Errorf("account.equity must be positive")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.Pair == "" {
			return fmt.Errorf("pairs[%d].pair is required", i)
		}
		if _, ok := market.Lookup(p.Pair); !ok {
			return fmt.Errorf("unknown pair: %s", p.Pair)
		}
		if seen[p.Pair] {
			return fmt.Errorf("pair %s configured twice", p.Pair)
		}
		seen[p.Pair] = true
		if p.FastWindow <= 0 || p.SlowWindow <= 0 {
			return fmt.Errorf("%s: fast_window and slow_window must be positive", p.Pair)
		}
		if p.FastWindow >= p.SlowWindow {
			return fmt.Errorf("%s: fast_window must be less than slow_window", p.Pair)
		}
		if p.RSIPeriod <= 0 {
			return fmt.Errorf("%s: rsi_period must be positive", p.Pair)
		}
		if p.Overbought <= 0 || p.Overbought > 100 {
			return fmt.Errorf("%s: overbought must be in (0, 100]", p.Pair)
		}
		if p.Oversold < 0 || p.Oversold >= p.Overbought {
			return fmt.Errorf("%s: oversold must be in [0, overbought)", p.Pair)
		}
		if p.CycleMS <= 0 {
			return fmt.Errorf("%s: cycle_ms must be positive", p.Pair)
		}
	}

	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction > 1 {
		return fmt.Errorf("risk.risk_fraction must be in (0, 1]")
	}
	if c.Risk.MaxPositionUnits <= 0 {
		return fmt.Errorf("risk.max_position_units must be positive")
	}
	if c.Risk.MaxAggregateExposure <= 0 {
		return fmt.Errorf("risk.max_aggregate_exposure must be positive")
	}
	if c.Risk.DrawdownLimit <= 0 || c.Risk.DrawdownLimit >= 1 {
		return fmt.Errorf("risk.drawdown_limit must be in (0, 1)")
	}
	switch c.Risk.StopMode {
	case "percent":
		if c.Risk.StopLossPct <= 0 || c.Risk.TakeProfitPct <= 0 {
			return fmt.Errorf("risk: stop_loss_pct and take_profit_pct must be positive")
		}
	case "atr":
		if c.Risk.ATRMultiple <= 0 || c.Risk.RewardRisk <= 0 {
			return fmt.Errorf("risk: atr_multiple and reward_risk must be positive")
		}
		if c.Risk.StopLossPct <= 0 || c.Risk.TakeProfitPct <= 0 {
			return fmt.Errorf("risk: percent stops are required as the atr cold-start fallback")
		}
	default:
		return fmt.Errorf("risk.stop_mode must be 'percent' or 'atr'")
	}

	if c.Execution.RetryMaxAttempts <= 0 {
		return fmt.Errorf("execution.retry_max_attempts must be positive")
	}
	if c.Execution.RatePerSec <= 0 {
		return fmt.Errorf("execution.rate_per_sec must be positive")
	}
	if c.Execution.RateBurst <= 0 {
		return fmt.Errorf("execution.rate_burst must be positive")
	}
	if c.Execution.CycleTimeoutMS <= 0 {
		return fmt.Errorf("execution.cycle_timeout_ms must be positive")
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" || c.Journal.OrdersFile == "" {
			return fmt.Errorf("journal trades_file, equity_file and orders_file required for csv")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}

	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		return fmt.Errorf("dashboard.addr required when dashboard is enabled")
	}
	return nil
}

// DrawdownWindow returns the rolling realized-loss window, defaulting to
// 24 hours.
func (c *Config) DrawdownWindow() time.Duration {
	if c.Risk.DrawdownWindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Risk.DrawdownWindowHours) * time.Hour
}

// Default returns a ready-to-run paper trading configuration.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:            "PAPER-001",
			QuoteCurrency: "USDT",
			Equity:        10000,
		},
		Pairs: []PairConfig{
			{
				Pair:       "BTC/USDT",
				FastWindow: 20,
				SlowWindow: 50,
				RSIPeriod:  14,
				Overbought: 70,
				Oversold:   30,
				CycleMS:    1000,
				TickMS:     250,
			},
		},
		Risk: RiskConfig{
			RiskFraction:         0.01,
			MaxPositionUnits:     1,
			MaxAggregateExposure: 30000,
			DrawdownLimit:        0.15,
			DrawdownWindowHours:  24,
			StopMode:             "percent",
			StopLossPct:          0.02,
			TakeProfitPct:        0.04,
		},
		Execution: ExecutionConfig{
			RetryMaxAttempts: 5,
			BackoffBaseMS:    250,
			BackoffCapMS:     5000,
			CycleTimeoutMS:   800,
			FillWaitMS:       30000,
			PollIntervalMS:   500,
			RatePerSec:       10,
			RateBurst:        20,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradecore.db",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Addr:    ":8080",
		},
	}
}
