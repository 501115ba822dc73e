package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/config"
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/store"
)

const (
	destColumnWidth = 14
	modeColumnWidth = 9
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the delivery history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the most recent delivery attempts",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete delivery records older than history.retention",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to show")
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.History.Path == "" {
		return nil, errors.New("delivery history is disabled (history.path is empty)")
	}
	return store.NewSQLiteStore(cfg.History.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", historyLimit)
	}

	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	recs, err := h.Recent(historyLimit)
	if err != nil {
		return err
	}
	writeHistoryTable(cmd.OutOrStdout(), recs, cfg.Location)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.Cleanup(cfg.History.Retention); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned records older than %v\n", cfg.History.Retention)
	return nil
}

// writeHistoryTable prints records newest first, one line per destination.
func writeHistoryTable(w io.Writer, recs []model.DeliveryRecord, loc *time.Location) {
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		runewidth.FillRight("At", len(time.DateTime)),
		runewidth.FillRight("Mode", modeColumnWidth),
		runewidth.FillRight("Channel", destColumnWidth),
		runewidth.FillRight("Company", keyColumnWidth),
		"Result")
	fmt.Fprintln(w, strings.Repeat("─", len(time.DateTime)+modeColumnWidth+destColumnWidth+keyColumnWidth+10))

	for _, r := range recs {
		result := "ok"
		if !r.Delivered {
			result = "failed: " + r.Error
		}
		key := string(r.Key)
		if key == "" {
			key = "-"
		}
		fmt.Fprintf(w, "%s %s %s %s %s\n",
			r.At.In(loc).Format(time.DateTime),
			runewidth.FillRight(r.Mode, modeColumnWidth),
			runewidth.FillRight(runewidth.Truncate(r.Destination, destColumnWidth, "…"), destColumnWidth),
			runewidth.FillRight(runewidth.Truncate(key, keyColumnWidth, "…"), keyColumnWidth),
			result)
	}

	fmt.Fprintf(w, "\nTotal: %d records\n", len(recs))
}
