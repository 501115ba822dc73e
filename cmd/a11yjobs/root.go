package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amishk599/a11yjobs/internal/ai"
	"github.com/amishk599/a11yjobs/internal/config"
	"github.com/amishk599/a11yjobs/internal/filter"
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/notifier"
	"github.com/amishk599/a11yjobs/internal/ratelimit"
	"github.com/amishk599/a11yjobs/internal/refs"
	"github.com/amishk599/a11yjobs/internal/retry"
	"github.com/amishk599/a11yjobs/internal/store"
)

const envConfigPath = "A11YJOBS_CONFIG"

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "a11yjobs",
	Short: "Accessibility-track job digest and company analysis",
	Long: "a11yjobs finds today's accessibility-track (障がい者枠) data-science postings, " +
		"posts a digest to Slack, and analyzes one newly seen company per run.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+envConfigPath+" env var or ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// resolveConfigPath picks the config file.
// Priority: explicit flag > A11YJOBS_CONFIG env var > "./config.yaml" if it exists > none.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(envConfigPath); env != "" {
		return env
	}
	if config.Exists("config.yaml") {
		return "config.yaml"
	}
	return ""
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(resolveConfigPath(path))
}

// loadOfflineConfig is for commands that never call Gemini or Slack.
func loadOfflineConfig(path string) (*config.Config, error) {
	return config.LoadOffline(resolveConfigPath(path))
}

// setupLogger returns a text logger tagged with a fresh run id and attrs.
// --debug wins over LOG_LEVEL.
func setupLogger(dbg bool, attrs ...any) *slog.Logger {
	logLevel := parseLevel(os.Getenv("LOG_LEVEL"))
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})).
		With(append([]any{"run_id", uuid.NewString()}, attrs...)...)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newHTTPClient is shared by every collaborator in a process. Per-call
// deadlines come from each collaborator's own timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

func setupProvider(cfg *config.Config, httpClient *http.Client) *ai.GeminiProvider {
	return ai.NewGeminiProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, httpClient)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, dryRun bool, logger *slog.Logger) model.Notifier {
	if dryRun {
		logger.Info("dry-run: messages are logged, not posted")
		return notifier.NewLogNotifier(logger)
	}
	logger.Info("using slack notifier", "channels", len(cfg.Slack.Channels))
	return notifier.NewSlackNotifier(cfg.Slack.BaseURL, cfg.Slack.BotToken, cfg.Slack.Channels, httpClient, logger)
}

// setupHistory opens the delivery history. The returned close func is
// always safe to call.
func setupHistory(cfg *config.Config, dryRun bool, logger *slog.Logger) (model.DeliveryLog, func()) {
	if dryRun || cfg.History.Path == "" {
		return store.NewNopStore(), func() {}
	}
	sqlStore, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		logger.Warn("delivery history unavailable, continuing without it", "path", cfg.History.Path, "error", err)
		return store.NewNopStore(), func() {}
	}
	return sqlStore, func() { sqlStore.Close() }
}

func setupFilter(cfg *config.Config) model.CompanyFilter {
	if len(cfg.Filters.ExcludeCompanies) == 0 {
		return nil
	}
	return filter.NewCompanyExcluder(cfg.Filters.ExcludeCompanies)
}

func setupResolver(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *refs.Resolver {
	limiter := ratelimit.NewHostLimiter(cfg.References.RatePerSecond, 1)
	policy := retry.Policy{MaxAttempts: cfg.References.MaxAttempts, BaseDelay: cfg.References.RetryDelay}
	return refs.NewResolver(httpClient, limiter, policy, cfg.References.Timeout, logger)
}
