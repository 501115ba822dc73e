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
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/runner"
)

var summaryDryRun bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Search today's postings, write the summary file, post the digest",
	Long: "Asks Gemini (with Google Search grounding) for today's postings, rewrites them " +
		"into the digest format, writes the digest to the summary file read by `analysis`, " +
		"and posts it with resolved source links to every configured Slack channel.",
	Args: cobra.NoArgs,
	RunE: runSummaryCmd,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryDryRun, "dry-run", false, "log the message instead of posting it (summary file is still written)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummaryCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug, "mode", runner.ModeSummary)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := newHTTPClient()
	history, closeHistory := setupHistory(cfg, summaryDryRun, logger)
	defer closeHistory()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := setupNotifier(cfg, httpClient, summaryDryRun, logger)
	if err := newSummaryRunner(cfg, httpClient, n, history, logger).Run(ctx); err != nil {
		logger.Error("summary run failed", "error", err)
		return err
	}
	logger.Info("summary run complete")
	return nil
}

func newSummaryRunner(cfg *config.Config, httpClient *http.Client, n model.Notifier, history model.DeliveryLog, logger *slog.Logger) *runner.SummaryRunner {
	provider := setupProvider(cfg, httpClient)

	var resolver runner.ReferenceResolver
	if cfg.Summary.IncludeReferences {
		resolver = setupResolver(cfg, httpClient, logger)
	}

	return runner.NewSummaryRunner(
		ai.NewDigestSummarizer(provider, provider, logger),
		resolver,
		n,
		history,
		cfg.Files.Summary,
		cfg.Location,
		logger,
	)
}
