package cmd

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/spf13/cobra"

	"github.com/rmorgan/tradecore/pricing"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <candles.csv>",
	Short: "Compute indicators over a historical candle file",
	Long: `Analyze a CSV file of historical candles offline.

Computes SMA crossover points, RSI, and MACD over the close prices and
prints a summary. Useful for sanity-checking strategy parameters against
real history before a paper run.

Example:
  tradecore analyze data/btcusdt_1m.csv --pair BTC/USDT --fast 20 --slow 50`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzePair       string
	analyzeFast       int
	analyzeSlow       int
	analyzeRSI        int
	analyzeOverbought float64
	analyzeOversold   float64
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzePair, "pair", "BTC/USDT", "pair name for the candle file")
	analyzeCmd.Flags().IntVar(&analyzeFast, "fast", 20, "fast SMA window")
	analyzeCmd.Flags().IntVar(&analyzeSlow, "slow", 50, "slow SMA window")
	analyzeCmd.Flags().IntVar(&analyzeRSI, "rsi", 14, "RSI period")
	analyzeCmd.Flags().Float64Var(&analyzeOverbought, "overbought", 70, "RSI overbought threshold")
	analyzeCmd.Flags().Float64Var(&analyzeOversold, "oversold", 30, "RSI oversold threshold")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFast >= analyzeSlow {
		return fmt.Errorf("fast window %d must be less than slow window %d", analyzeFast, analyzeSlow)
	}

	candles, err := pricing.LoadCSV(args[0], analyzePair)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	if len(candles) < analyzeSlow+1 {
		return fmt.Errorf("need at least %d candles, got %d", analyzeSlow+1, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := talib.Sma(closes, analyzeFast)
	slow := talib.Sma(closes, analyzeSlow)
	rsi := talib.Rsi(closes, analyzeRSI)
	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)

	var crossUps, crossDowns, overbought, oversold int
	for i := analyzeSlow; i < len(closes); i++ {
		prev := fast[i-1] - slow[i-1]
		cur := fast[i] - slow[i]
		switch {
		case prev < 0 && cur > 0:
			crossUps++
		case prev > 0 && cur < 0:
			crossDowns++
		}
		if rsi[i] >= analyzeOverbought {
			overbought++
		} else if rsi[i] <= analyzeOversold {
			oversold++
		}
	}

	last := len(closes) - 1
	fmt.Printf("Analyzed %d candles for %s (%s to %s)\n",
		len(candles), analyzePair,
		candles[0].Time.Format("2006-01-02 15:04"),
		candles[last].Time.Format("2006-01-02 15:04"))
	fmt.Printf("  Last close:    %.2f\n", closes[last])
	fmt.Printf("  SMA(%d):       %.2f\n", analyzeFast, fast[last])
	fmt.Printf("  SMA(%d):       %.2f\n", analyzeSlow, slow[last])
	fmt.Printf("  RSI(%d):       %.1f\n", analyzeRSI, rsi[last])
	fmt.Printf("  MACD:          %.4f (signal %.4f)\n", macd[last], macdSignal[last])
	fmt.Printf("  Crosses:       %d up, %d down\n", crossUps, crossDowns)
	fmt.Printf("  RSI extremes:  %d candles >= %.0f, %d candles <= %.0f\n",
		overbought, analyzeOverbought, oversold, analyzeOversold)
	return nil
}
