package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Tokyo on hosts without a zoneinfo database

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvSlackBotToken = "SLACK_BOT_TOKEN"
	EnvSlackChannels = "SLACK_CHANNEL_ID" // comma-separated channel IDs
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultSlackBaseURL  = "https://slack.com/api"
	defaultSummaryFile   = "data/recruit.txt"
	defaultLedgerFile    = "data/analysis_results.json"
	defaultTimezone      = "Asia/Tokyo"
)

// Config is the root configuration, built once at startup and passed down.
type Config struct {
	AI         AIConfig
	Slack      SlackConfig
	Files      FilesConfig
	Identity   IdentityConfig
	Summary    SummaryConfig
	References ReferencesConfig
	Filters    FilterConfig
	History    HistoryConfig
	Watch      WatchConfig
	Location   *time.Location // timezone for dates in prompts and ledger timestamps
}

// AIConfig configures the Gemini API.
type AIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration // per-request timeout
}

// SlackConfig configures delivery through the Slack Web API.
type SlackConfig struct {
	BaseURL  string
	BotToken string
	Channels []string
}

// FilesConfig holds the on-disk locations shared by both run modes.
type FilesConfig struct {
	Summary string // written by summary mode, read by analysis mode
	Ledger  string
}

// IdentityConfig pins the identity strategy. It must not change once a
// ledger exists.
type IdentityConfig struct {
	Strategy string // "name" or "hash"
}

// SummaryConfig controls summary-mode message composition.
type SummaryConfig struct {
	IncludeReferences bool
}

// ReferencesConfig controls the best-effort reference title lookups.
type ReferencesConfig struct {
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	RatePerSecond float64 // per host
}

// FilterConfig lists companies that are never analyzed (job boards, agencies).
type FilterConfig struct {
	ExcludeCompanies []string
}

// HistoryConfig enables the SQLite delivery history. Empty Path disables it.
// Records older than Retention are pruned by watch and `history prune`.
type HistoryConfig struct {
	Path      string
	Retention time.Duration
}

// WatchConfig controls the in-process scheduler.
type WatchConfig struct {
	Interval time.Duration
}

// ConfigError reports missing or invalid configuration. It is always fatal
// and raised before any external service is called.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	AI struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"ai"`
	Slack struct {
		BaseURL  string   `yaml:"base_url"`
		BotToken string   `yaml:"bot_token"`
		Channels []string `yaml:"channels"`
	} `yaml:"slack"`
	Files struct {
		Summary string `yaml:"summary"`
		Ledger  string `yaml:"ledger"`
	} `yaml:"files"`
	Identity struct {
		Strategy string `yaml:"strategy"`
	} `yaml:"identity"`
	Summary struct {
		IncludeReferences *bool `yaml:"include_references"`
	} `yaml:"summary"`
	References struct {
		Timeout       string  `yaml:"timeout"`
		MaxAttempts   int     `yaml:"max_attempts"`
		RetryDelay    string  `yaml:"retry_delay"`
		RatePerSecond float64 `yaml:"rate_per_second"`
	} `yaml:"references"`
	Filters struct {
		ExcludeCompanies []string `yaml:"exclude_companies"`
	} `yaml:"filters"`
	History struct {
		Path      string `yaml:"path"`
		Retention string `yaml:"retention"`
	} `yaml:"history"`
	Watch struct {
		Interval string `yaml:"interval"`
	} `yaml:"watch"`
	Timezone string `yaml:"timezone"`
}

// Load builds the Config. If path is non-empty the YAML file there is read
// (with ${VAR} expansion); then the environment overrides credentials and
// channels. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := validateCredentials(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOffline is Load without the credential checks, for commands that only
// read local files.
func LoadOffline(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	var raw rawConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func build(raw rawConfig) (*Config, error) {
	aiTimeout, err := parseDuration("ai.timeout", raw.AI.Timeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	refTimeout, err := parseDuration("references.timeout", raw.References.Timeout, 20*time.Second)
	if err != nil {
		return nil, err
	}
	refDelay, err := parseDuration("references.retry_delay", raw.References.RetryDelay, 1*time.Second)
	if err != nil {
		return nil, err
	}
	retention, err := parseDuration("history.retention", raw.History.Retention, 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	watchInterval, err := parseDuration("watch.interval", raw.Watch.Interval, 1*time.Hour)
	if err != nil {
		return nil, err
	}

	tz := orDefault(raw.Timezone, defaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("parse timezone %q: %w", tz, err)
	}

	includeRefs := true
	if raw.Summary.IncludeReferences != nil {
		includeRefs = *raw.Summary.IncludeReferences
	}

	maxAttempts := raw.References.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	rate := raw.References.RatePerSecond
	if rate == 0 {
		rate = 2
	}

	return &Config{
		AI: AIConfig{
			BaseURL: strings.TrimRight(orDefault(raw.AI.BaseURL, defaultGeminiBaseURL), "/"),
			Model:   orDefault(raw.AI.Model, defaultGeminiModel),
			APIKey:  strings.TrimSpace(raw.AI.APIKey),
			Timeout: aiTimeout,
		},
		Slack: SlackConfig{
			BaseURL:  strings.TrimRight(orDefault(raw.Slack.BaseURL, defaultSlackBaseURL), "/"),
			BotToken: strings.TrimSpace(raw.Slack.BotToken),
			Channels: cleanList(raw.Slack.Channels),
		},
		Files: FilesConfig{
			Summary: orDefault(raw.Files.Summary, defaultSummaryFile),
			Ledger:  orDefault(raw.Files.Ledger, defaultLedgerFile),
		},
		Identity: IdentityConfig{
			Strategy: orDefault(raw.Identity.Strategy, "name"),
		},
		Summary: SummaryConfig{IncludeReferences: includeRefs},
		References: ReferencesConfig{
			Timeout:       refTimeout,
			MaxAttempts:   maxAttempts,
			RetryDelay:    refDelay,
			RatePerSecond: rate,
		},
		Filters:  FilterConfig{ExcludeCompanies: cleanList(raw.Filters.ExcludeCompanies)},
		History:  HistoryConfig{Path: raw.History.Path, Retention: retention},
		Watch:    WatchConfig{Interval: watchInterval},
		Location: loc,
	}, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); v != "" {
		cfg.AI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSlackBotToken)); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv(EnvSlackChannels); strings.TrimSpace(v) != "" {
		cfg.Slack.Channels = cleanList(strings.Split(v, ","))
	}
}

func validateCredentials(cfg *Config) error {
	if cfg.AI.APIKey == "" {
		return &ConfigError{Field: EnvGeminiAPIKey, Reason: "is not set"}
	}
	if cfg.Slack.BotToken == "" {
		return &ConfigError{Field: EnvSlackBotToken, Reason: "is not set"}
	}
	if len(cfg.Slack.Channels) == 0 {
		return &ConfigError{Field: EnvSlackChannels, Reason: "is not set"}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Identity.Strategy != "name" && cfg.Identity.Strategy != "hash" {
		return &ConfigError{Field: "identity.strategy", Reason: fmt.Sprintf("must be \"name\" or \"hash\", got %q", cfg.Identity.Strategy)}
	}
	if cfg.References.MaxAttempts < 1 {
		return &ConfigError{Field: "references.max_attempts", Reason: "must be at least 1"}
	}
	if cfg.References.RatePerSecond < 0 {
		return &ConfigError{Field: "references.rate_per_second", Reason: "must not be negative"}
	}
	if cfg.History.Retention <= 0 {
		return &ConfigError{Field: "history.retention", Reason: "must be positive"}
	}
	if cfg.Watch.Interval <= 0 {
		return &ConfigError{Field: "watch.interval", Reason: "must be positive"}
	}
	return nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// cleanList trims entries and drops empty ones.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
