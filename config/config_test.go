package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
account:
  id: PAPER-001
  quote_currency: USDT
  equity: 10000
pairs:
  - pair: BTC/USDT
    fast_window: 20
    slow_window: 50
    rsi_period: 14
    overbought: 70
    oversold: 30
    cycle_ms: 1000
    tick_ms: 250
risk:
  risk_fraction: 0.01
  max_position_units: 1
  max_aggregate_exposure: 30000
  drawdown_limit: 0.15
  drawdown_window_hours: 24
  stop_mode: percent
  stop_loss_pct: 0.02
  take_profit_pct: 0.04
execution:
  retry_max_attempts: 5
  backoff_base_ms: 250
  backoff_cap_ms: 5000
  cycle_timeout_ms: 800
  fill_wait_ms: 30000
  poll_interval_ms: 500
  rate_per_sec: 10
  rate_burst: 20
journal:
  type: sqlite
  db_path: ./tradecore.db
dashboard:
  enabled: true
  addr: ":8080"
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeFile(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, "PAPER-001", cfg.Account.ID)
	require.Len(t, cfg.Pairs, 1)
	assert.Equal(t, "BTC/USDT", cfg.Pairs[0].Pair)
	assert.Equal(t, time.Second, cfg.Pairs[0].Cycle())
	assert.Equal(t, 250*time.Millisecond, cfg.Pairs[0].TickEvery())
	assert.Equal(t, 800*time.Millisecond, cfg.Execution.CycleTimeout())
	assert.Equal(t, 24*time.Hour, cfg.DrawdownWindow())
}

func TestLoadJSONFallback(t *testing.T) {
	t.Parallel()

	js := `{
		"account": {"id": "PAPER-001", "quote_currency": "USDT", "equity": 10000},
		"pairs": [{
			"pair": "ETH/USDT", "fast_window": 20, "slow_window": 50,
			"rsi_period": 14, "overbought": 70, "oversold": 30,
			"cycle_ms": 1000, "tick_ms": 250
		}],
		"risk": {
			"risk_fraction": 0.01, "max_position_units": 10,
			"max_aggregate_exposure": 30000, "drawdown_limit": 0.15,
			"stop_mode": "percent", "stop_loss_pct": 0.02, "take_profit_pct": 0.04
		},
		"execution": {
			"retry_max_attempts": 5, "backoff_base_ms": 250, "backoff_cap_ms": 5000,
			"cycle_timeout_ms": 800, "fill_wait_ms": 30000, "poll_interval_ms": 500,
			"rate_per_sec": 10, "rate_burst": 20
		},
		"journal": {"type": "sqlite", "db_path": "./t.db"},
		"dashboard": {"enabled": false}
	}`

	cfg, err := LoadFromFile(writeFile(t, "config.json", js))
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", cfg.Pairs[0].Pair)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeFile(t, "config.yaml", validYAML+"\nextra_section:\n  x: 1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	mutate := func(fn func(*Config)) error {
		cfg := Default()
		fn(cfg)
		return cfg.Validate()
	}

	assert.NoError(t, mutate(func(*Config) {}))

	cases := map[string]func(*Config){
		"zero equity":           func(c *Config) { c.Account.Equity = 0 },
		"no pairs":              func(c *Config) { c.Pairs = nil },
		"unknown pair":          func(c *Config) { c.Pairs[0].Pair = "DOGE/USDT" },
		"fast not below slow":   func(c *Config) { c.Pairs[0].FastWindow = 50 },
		"bad rsi":               func(c *Config) { c.Pairs[0].RSIPeriod = 0 },
		"oversold >= overbought": func(c *Config) { c.Pairs[0].Oversold = 70 },
		"zero cycle":            func(c *Config) { c.Pairs[0].CycleMS = 0 },
		"risk fraction > 1":     func(c *Config) { c.Risk.RiskFraction = 1.5 },
		"drawdown >= 1":         func(c *Config) { c.Risk.DrawdownLimit = 1 },
		"bad stop mode":         func(c *Config) { c.Risk.StopMode = "fixed" },
		"zero retries":          func(c *Config) { c.Execution.RetryMaxAttempts = 0 },
		"zero rate":             func(c *Config) { c.Execution.RatePerSec = 0 },
		"bad journal type":      func(c *Config) { c.Journal.Type = "mongo" },
		"sqlite without path":   func(c *Config) { c.Journal.DBPath = "" },
		"dashboard without addr": func(c *Config) {
			c.Dashboard.Enabled = true
			c.Dashboard.Addr = ""
		},
	}
	for name, fn := range cases {
		assert.Error(t, mutate(fn), name)
	}
}

func TestValidateDuplicatePair(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Pairs = append(cfg.Pairs, cfg.Pairs[0])
	assert.Error(t, cfg.Validate())
}

func TestValidateATRModeNeedsFallback(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Risk.StopMode = "atr"
	cfg.Risk.ATRMultiple = 2
	cfg.Risk.RewardRisk = 2
	assert.NoError(t, cfg.Validate())

	cfg.Risk.StopLossPct = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadCredentials(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "creds.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"EXCHANGE_API_KEY=k-123\nEXCHANGE_API_SECRET=s-456\n",
	), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("EXCHANGE_API_KEY")
		os.Unsetenv("EXCHANGE_API_SECRET")
	})

	creds, err := LoadCredentials(envFile, true)
	require.NoError(t, err)
	assert.Equal(t, "k-123", creds.APIKey)
	assert.Equal(t, "s-456", creds.APISecret)
}

func TestLoadCredentialsMissingRequired(t *testing.T) {
	os.Unsetenv("EXCHANGE_API_KEY")
	os.Unsetenv("EXCHANGE_API_SECRET")

	_, err := LoadCredentials("", true)
	assert.Error(t, err)

	creds, err := LoadCredentials("", false)
	require.NoError(t, err)
	assert.Empty(t, creds.APIKey)
}
