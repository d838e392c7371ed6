package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmorgan/tradecore/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Query and display records from the SQLite trade journal.

Subcommands:
  stats   - Aggregate performance over all recorded trades
  recent  - List the most recent trades
  orders  - List orders left in a non-terminal state

Examples:
  tradecore journal stats
  tradecore journal recent -n 20
  tradecore journal orders`,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate performance over all recorded trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalStats,
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecent,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders left in a non-terminal state",
	Args:  cobra.NoArgs,
	RunE:  runJournalOrders,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalStatsCmd)
	journalCmd.AddCommand(journalRecentCmd)
	journalCmd.AddCommand(journalOrdersCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./tradecore.db", "path to SQLite journal DB")
	journalRecentCmd.Flags().IntVarP(&journalLimit, "limit", "n", 10, "number of trades to list")
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	s, err := j.TradeStats()
	if err != nil {
		return fmt.Errorf("query stats: %w", err)
	}

	fmt.Printf("Trades:        %d (%d winning, %d losing)\n", s.TotalTrades, s.Winning, s.Losing)
	fmt.Printf("Total PnL:     $%.2f\n", s.TotalPnL)
	fmt.Printf("Total fees:    $%.2f\n", s.TotalFees)
	fmt.Printf("Win rate:      %.1f%%\n", s.WinRate*100)
	if s.ProfitFactor > 0 {
		fmt.Printf("Profit factor: %.2f\n", s.ProfitFactor)
	}
	return nil
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	trades, err := j.RecentTrades(journalLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	for _, t := range trades {
		fmt.Printf("%s  %-10s  %10.6f @ %.2f -> %.2f  pnl $%+.2f  (%s)\n",
			t.CloseTime.Format("2006-01-02 15:04:05"),
			t.Pair, t.Units, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Reason)
	}
	return nil
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	open, err := j.OpenOrders()
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	if len(open) == 0 {
		fmt.Println("No open orders.")
		return nil
	}

	for _, o := range open {
		fmt.Printf("%s  %-10s  %-4s  %10.6f  %-16s  attempts=%d  %s\n",
			o.ClientOrderID, o.Pair, o.Side, o.Units, o.Status,
			o.Attempts, o.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
