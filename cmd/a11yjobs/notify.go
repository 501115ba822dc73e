package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message to every configured Slack channel",
	Args:  cobra.NoArgs,
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := setupNotifier(cfg, newHTTPClient(), false, logger)
	results := notifier.SendTestMessage(ctx, n)

	failed := 0
	for _, r := range results {
		if r.Delivered {
			logger.Info("test message sent", "channel", r.Destination)
			continue
		}
		failed++
		logger.Error("test message failed", "channel", r.Destination, "error", r.Err)
	}
	if failed > 0 {
		return fmt.Errorf("test message failed on %d of %d channels", failed, len(results))
	}
	return nil
}
