package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/runner"
	"github.com/amishk599/a11yjobs/internal/scheduler"
)

var (
	watchEvery       time.Duration
	watchWithSummary bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run analysis passes on an interval until interrupted",
	Long: "Runs one analysis pass immediately and then one per interval; blocks until " +
		"SIGINT/SIGTERM. Each pass locks, reads and writes the ledger on its own, so " +
		"cron-driven `analysis` runs cannot interleave with it.",
	Args: cobra.NoArgs,
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().DurationVar(&watchEvery, "every", 0, "interval between passes (default: watch.interval from config)")
	watchCmd.Flags().BoolVar(&watchWithSummary, "with-summary", false, "run a summary pass before each analysis pass")
	rootCmd.AddCommand(watchCmd)
}

// jobFunc adapts a function to scheduler.Job.
type jobFunc func(ctx context.Context) error

func (f jobFunc) Run(ctx context.Context) error { return f(ctx) }

func runWatchCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	interval := cfg.Watch.Interval
	if watchEvery > 0 {
		interval = watchEvery
	}

	httpClient := newHTTPClient()
	history, closeHistory := setupHistory(cfg, false, logger)
	defer closeHistory()
	n := setupNotifier(cfg, httpClient, false, logger)

	var tasks []scheduler.Task
	if watchWithSummary {
		summary := newSummaryRunner(cfg, httpClient, n, history, logger.With("mode", runner.ModeSummary))
		tasks = append(tasks, scheduler.Task{Name: runner.ModeSummary, Job: summary})
	}
	tasks = append(tasks, scheduler.Task{
		Name: runner.ModeAnalysis,
		Job: jobFunc(func(ctx context.Context) error {
			passLogger := logger.With("mode", runner.ModeAnalysis, "pass_id", uuid.NewString())
			return runAnalysisOnce(ctx, cfg, httpClient, n, history, false, passLogger)
		}),
	})
	tasks = append(tasks, scheduler.Task{
		Name: "history-cleanup",
		Job: jobFunc(func(ctx context.Context) error {
			return history.Cleanup(cfg.History.Retention)
		}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(tasks, interval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
