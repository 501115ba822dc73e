package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/ai"
	"github.com/amishk599/a11yjobs/internal/audit"
	"github.com/amishk599/a11yjobs/internal/config"
	"github.com/amishk599/a11yjobs/internal/ledger"
	"github.com/amishk599/a11yjobs/internal/posting"
)

const (
	keyColumnWidth     = 36
	previewColumnWidth = 48
	timestampWidth     = 32
)

var browsePreview bool

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the analysis ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print a table of analyzed companies",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse pending postings and analyzed companies (TUI)",
	Long: "Split-pane view: postings from the summary file that are still waiting for " +
		"analysis on the left, ledger entries on the right. With --preview, 'p' on a " +
		"pending posting shows what its analysis would say without posting or saving it.",
	Args: cobra.NoArgs,
	RunE: runLedgerBrowse,
}

func init() {
	ledgerBrowseCmd.Flags().BoolVar(&browsePreview, "preview", false, "enable analysis previews (requires Gemini credentials)")
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerBrowseCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	l, err := ledger.Read(cfg.Files.Ledger)
	if err != nil {
		return err
	}
	writeLedgerTable(cmd.OutOrStdout(), audit.Entries(l))
	return nil
}

// writeLedgerTable prints entries in fixed display-width columns so that
// Japanese company names line up.
func writeLedgerTable(w io.Writer, entries []audit.Entry) {
	fmt.Fprintf(w, "%s %s %s\n",
		runewidth.FillRight("Company", keyColumnWidth),
		runewidth.FillRight("Analyzed At", timestampWidth),
		"Analysis")
	fmt.Fprintln(w, strings.Repeat("─", keyColumnWidth+timestampWidth+previewColumnWidth+2))

	for _, e := range entries {
		fmt.Fprintf(w, "%s %s %s\n",
			runewidth.FillRight(runewidth.Truncate(string(e.Key), keyColumnWidth, "…"), keyColumnWidth),
			runewidth.FillRight(e.Timestamp, timestampWidth),
			runewidth.Truncate(firstLine(e.Analysis), previewColumnWidth, "…"))
	}

	fmt.Fprintf(w, "\nTotal: %d companies\n", len(entries))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func runLedgerBrowse(cmd *cobra.Command, args []string) error {
	load := loadOfflineConfig
	if browsePreview {
		load = loadConfig
	}
	cfg, err := load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Any log output before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l, err := ledger.Read(cfg.Files.Ledger)
	if err != nil {
		return err
	}
	pending, err := loadPending(cfg)
	if err != nil {
		return err
	}

	var analyzer audit.Analyzer
	if browsePreview {
		provider := setupProvider(cfg, newHTTPClient())
		analyzer = ai.NewCompanyAnalyzer(provider, ai.CompanyAnalysisTemplate, silentLogger)
	}

	return audit.RunLedgerBrowser(audit.Entries(l), pending, analyzer)
}

// loadPending lists summary-file postings not yet in the ledger. A missing
// summary file means nothing is pending.
func loadPending(cfg *config.Config) ([]audit.Pending, error) {
	identifier, err := posting.NewIdentifier(cfg.Identity.Strategy)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(cfg.Files.Summary)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.Files.Summary, err)
	}
	l, err := ledger.Read(cfg.Files.Ledger)
	if err != nil {
		return nil, err
	}
	return audit.Queue(posting.Split(string(raw)), l, identifier, setupFilter(cfg)), nil
}
