package cmd

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/broker"
	"github.com/rmorgan/tradecore/broker/sim"
	"github.com/rmorgan/tradecore/config"
	"github.com/rmorgan/tradecore/dashboard"
	"github.com/rmorgan/tradecore/executor"
	"github.com/rmorgan/tradecore/journal"
	"github.com/rmorgan/tradecore/loop"
	"github.com/rmorgan/tradecore/market"
	"github.com/rmorgan/tradecore/position"
	"github.com/rmorgan/tradecore/risk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop from a config file",
	Long: `Run the bot using settings from a configuration file.

The config file specifies account equity, traded pairs with their strategy
parameters, risk limits, execution pacing, journaling, and the dashboard.

Example:
  tradecore run -f configs/paper.yaml --paper`,
	RunE: runRun,
}

var (
	runConfigPath string
	runEnvFile    string
	runPaper      bool
	runSeed       int64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runEnvFile, "env-file", "", "path to .env file with venue credentials")
	runCmd.Flags().BoolVar(&runPaper, "paper", true, "trade against the built-in paper venue")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "paper feed seed (0 seeds from the clock)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Credentials are only mandatory against a real venue.
	if _, err := config.LoadCredentials(runEnvFile, !runPaper); err != nil {
		return err
	}
	if !runPaper {
		return fmt.Errorf("no live venue adapter is wired in yet; run with --paper")
	}

	jnl, store, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jnl.Close()

	ledger := account.NewLedger(cfg.Account.Equity, cfg.DrawdownWindow())
	tracker := position.NewTracker(ledger)

	riskMgr, err := risk.NewManager(risk.Policy{
		RiskFraction:         cfg.Risk.RiskFraction,
		MaxPositionUnits:     cfg.Risk.MaxPositionUnits,
		MaxAggregateExposure: cfg.Risk.MaxAggregateExposure,
		DrawdownLimit:        cfg.Risk.DrawdownLimit,
		StopMode:             risk.StopMode(cfg.Risk.StopMode),
		StopLossPct:          cfg.Risk.StopLossPct,
		TakeProfitPct:        cfg.Risk.TakeProfitPct,
		ATRMultiple:          cfg.Risk.ATRMultiple,
		RewardRisk:           cfg.Risk.RewardRisk,
	}, ledger)
	if err != nil {
		return fmt.Errorf("risk policy: %w", err)
	}

	feedCfg := sim.DefaultFeedConfig()
	feedCfg.Seed = runSeed
	feed := sim.NewFeed(feedCfg)
	venue := sim.NewVenue(feed, sim.VenueConfig{FillPolls: 2})

	limiter := broker.NewRateLimiter(cfg.Execution.RatePerSec, cfg.Execution.RateBurst)
	exec := executor.New(venue, limiter, executor.Config{
		MaxAttempts:  cfg.Execution.RetryMaxAttempts,
		BackoffBase:  cfg.Execution.BackoffBase(),
		BackoffCap:   cfg.Execution.BackoffCap(),
		FillWait:     cfg.Execution.FillWait(),
		PollInterval: cfg.Execution.PollInterval(),
	}, orderRecorder(jnl))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	board := loop.NewBoard()
	runners := make(map[string]*loop.Runner, len(cfg.Pairs))
	for _, pc := range cfg.Pairs {
		meta, _ := market.Lookup(pc.Pair)
		feed.Warm(pc.Pair, pc.SlowWindow*2)

		r, err := loop.NewRunner(loop.Settings{
			Meta:         meta,
			FastWindow:   pc.FastWindow,
			SlowWindow:   pc.SlowWindow,
			RSIPeriod:    pc.RSIPeriod,
			Overbought:   pc.Overbought,
			Cycle:        pc.Cycle(),
			TickEvery:    pc.TickEvery(),
			CycleTimeout: cfg.Execution.CycleTimeout(),
		}, feed, riskMgr, exec, tracker, ledger, jnl, board)
		if err != nil {
			return fmt.Errorf("runner %s: %w", pc.Pair, err)
		}
		runners[pc.Pair] = r
	}

	// Resolve orders a previous run left in flight before trading resumes.
	if store != nil {
		fills, err := loop.Reconcile(ctx, exec, store)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		for _, f := range fills {
			if f.Side != broker.SideBuy {
				continue
			}
			stop, take := riskMgr.Stops(f.AvgFillPrice, 0)
			if _, err := tracker.Open(f.Pair, f.AvgFillPrice, f.Units, stop, take, f.At); err != nil {
				return fmt.Errorf("recover position %s: %w", f.Pair, err)
			}
			if r, ok := runners[f.Pair]; ok {
				r.AdoptPosition()
			}
			fmt.Printf("Recovered open position: %s %.6f @ %.2f\n", f.Pair, f.Units, f.AvgFillPrice)
		}
	}

	fmt.Printf("Starting %d pair loop(s), equity $%.2f\n", len(runners), cfg.Account.Equity)

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *loop.Runner) {
			defer wg.Done()
			_ = r.Run(ctx)
		}(r)
	}

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(cfg.Dashboard.Addr, board, tracker, ledger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				fmt.Printf("dashboard: %v\n", err)
			}
		}()
	}

	wg.Wait()

	fmt.Printf("\nFinal equity: $%.2f (PnL $%+.2f)\n",
		ledger.Equity(), ledger.Equity()-cfg.Account.Equity)
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, loop.OrderStore, error) {
	if jc.Type == "csv" {
		j, err := journal.NewCSV(jc.TradesFile, jc.EquityFile, jc.OrdersFile)
		return j, nil, err
	}
	j, err := journal.NewSQLite(jc.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return j, j, nil
}

func orderRecorder(jnl journal.Journal) executor.Recorder {
	return func(o executor.Order) {
		_ = jnl.RecordOrder(journal.OrderRecord{
			ClientOrderID:   o.ClientOrderID,
			ExchangeOrderID: o.ExchangeOrderID,
			Pair:            o.Pair,
			Side:            string(o.Side),
			Units:           o.Units,
			FilledUnits:     o.FilledUnits,
			AvgFillPrice:    o.AvgFillPrice,
			Status:          string(o.Status),
			Attempts:        o.Attempts,
			UpdatedAt:       o.UpdatedAt,
		})
	}
}
