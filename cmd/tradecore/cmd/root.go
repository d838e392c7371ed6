package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradecore",
	Short: "An automated crypto trading bot with risk controls and a live dashboard",
	Long: `Tradecore runs a moving-average crossover strategy with RSI filtering
across multiple trading pairs.

It provides:
  - Per-pair trading loops with cycle deadlines
  - Risk-based position sizing with exposure and drawdown limits
  - Idempotent order execution with bounded retries
  - Tick-driven stop-loss and take-profit enforcement
  - SQLite or CSV trade journaling
  - A read-only HTTP dashboard
  - Offline indicator analysis over historical candles`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
