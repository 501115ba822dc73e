package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/ai"
	"github.com/amishk599/a11yjobs/internal/config"
	"github.com/amishk599/a11yjobs/internal/ledger"
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/posting"
	"github.com/amishk599/a11yjobs/internal/runner"
)

var analysisDryRun bool

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Analyze the next unseen company from the summary file",
	Long: "Reads the summary file written by `summary`, picks the first posting whose company " +
		"is not yet in the ledger, posts a Gemini company analysis to Slack, and records it " +
		"in the ledger. One company per run; exits 0 when there is nothing left to do.",
	Args: cobra.NoArgs,
	RunE: runAnalysisCmd,
}

func init() {
	analysisCmd.Flags().BoolVar(&analysisDryRun, "dry-run", false, "log the analysis instead of posting it and leave the ledger untouched")
	rootCmd.AddCommand(analysisCmd)
}

func runAnalysisCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug, "mode", runner.ModeAnalysis)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := newHTTPClient()
	history, closeHistory := setupHistory(cfg, analysisDryRun, logger)
	defer closeHistory()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := setupNotifier(cfg, httpClient, analysisDryRun, logger)
	if err := runAnalysisOnce(ctx, cfg, httpClient, n, history, analysisDryRun, logger); err != nil {
		logger.Error("analysis run failed", "error", err)
		return err
	}
	return nil
}

// runAnalysisOnce holds the ledger lock for exactly one analysis pass.
func runAnalysisOnce(ctx context.Context, cfg *config.Config, httpClient *http.Client, n model.Notifier, history model.DeliveryLog, dryRun bool, logger *slog.Logger) error {
	identifier, err := posting.NewIdentifier(cfg.Identity.Strategy)
	if err != nil {
		return err
	}

	fileStore, err := ledger.Open(cfg.Files.Ledger)
	if err != nil {
		return err
	}
	defer fileStore.Close()
	logger.Debug("ledger locked", "path", fileStore.Path())

	var ledgerStore model.LedgerStore = fileStore
	if dryRun {
		ledgerStore = ledger.NewReadOnlyStore(fileStore)
	}

	provider := setupProvider(cfg, httpClient)
	r := runner.NewAnalysisRunner(
		ledgerStore,
		identifier,
		setupFilter(cfg),
		ai.NewCompanyAnalyzer(provider, ai.CompanyAnalysisTemplate, logger),
		n,
		history,
		cfg.Files.Summary,
		cfg.Location,
		logger,
	)
	return r.Run(ctx)
}
