package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(EnvGeminiAPIKey, "gemini-key")
	t.Setenv(EnvSlackBotToken, "xoxb-token")
	t.Setenv(EnvSlackChannels, "C1, C2 ,,")
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "gemini-key" || cfg.Slack.BotToken != "xoxb-token" {
		t.Errorf("credentials not taken from env: %+v %+v", cfg.AI, cfg.Slack)
	}
	if !reflect.DeepEqual(cfg.Slack.Channels, []string{"C1", "C2"}) {
		t.Errorf("Channels = %v, want [C1 C2]", cfg.Slack.Channels)
	}
	if cfg.Files.Summary != defaultSummaryFile || cfg.Files.Ledger != defaultLedgerFile {
		t.Errorf("Files = %+v", cfg.Files)
	}
	if cfg.Identity.Strategy != "name" {
		t.Errorf("Strategy = %q, want name", cfg.Identity.Strategy)
	}
	if !cfg.Summary.IncludeReferences {
		t.Error("IncludeReferences should default to true")
	}
	if cfg.References.MaxAttempts != 3 || cfg.References.Timeout != 20*time.Second {
		t.Errorf("References = %+v", cfg.References)
	}
	if cfg.History.Retention != 30*24*time.Hour {
		t.Errorf("History.Retention = %v, want 720h", cfg.History.Retention)
	}
	if cfg.Location.String() != "Asia/Tokyo" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("MY_GEMINI", "from-file")
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvSlackBotToken, "")
	t.Setenv(EnvSlackChannels, "")
	path := writeConfig(t, `
ai:
  api_key: ${MY_GEMINI}
  model: gemini-test
  timeout: 10s
slack:
  bot_token: xoxb-file
  channels: [CFILE]
identity:
  strategy: hash
summary:
  include_references: false
filters:
  exclude_companies: ["Indeed", " 求人ボックス "]
history:
  path: data/history.db
  retention: 168h
timezone: UTC
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "from-file" || cfg.AI.Model != "gemini-test" || cfg.AI.Timeout != 10*time.Second {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.Identity.Strategy != "hash" {
		t.Errorf("Strategy = %q", cfg.Identity.Strategy)
	}
	if cfg.Summary.IncludeReferences {
		t.Error("IncludeReferences should be false")
	}
	if !reflect.DeepEqual(cfg.Filters.ExcludeCompanies, []string{"Indeed", "求人ボックス"}) {
		t.Errorf("ExcludeCompanies = %v", cfg.Filters.ExcludeCompanies)
	}
	if cfg.History.Path != "data/history.db" || cfg.History.Retention != 7*24*time.Hour {
		t.Errorf("History = %+v", cfg.History)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
slack:
  bot_token: xoxb-file
  channels: [CFILE]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.BotToken != "xoxb-token" {
		t.Errorf("BotToken = %q, want env value", cfg.Slack.BotToken)
	}
	if !reflect.DeepEqual(cfg.Slack.Channels, []string{"C1", "C2"}) {
		t.Errorf("Channels = %v", cfg.Slack.Channels)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	cases := map[string]string{
		EnvGeminiAPIKey:  "",
		EnvSlackBotToken: "",
		EnvSlackChannels: " , ",
	}
	for missing, value := range cases {
		t.Run(missing, func(t *testing.T) {
			setCredentials(t)
			t.Setenv(missing, value)

			_, err := Load("")
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != missing {
				t.Errorf("Field = %q, want %q", cfgErr.Field, missing)
			}
		})
	}
}

func TestLoad_UnknownStrategy(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, "identity:\n  strategy: md5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown strategy")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setCredentials(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, "ai: [broken")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, "references:\n  timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for bad duration")
	}
}

func TestLoadOffline_SkipsCredentials(t *testing.T) {
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvSlackBotToken, "")
	t.Setenv(EnvSlackChannels, "")

	path := writeConfig(t, "files:\n  ledger: /tmp/ledger.json\n")
	cfg, err := LoadOffline(path)
	if err != nil {
		t.Fatalf("LoadOffline: %v", err)
	}
	if cfg.Files.Ledger != "/tmp/ledger.json" {
		t.Errorf("Files.Ledger = %q", cfg.Files.Ledger)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should still require credentials")
	}
}

func TestLoadOffline_StillValidatesSettings(t *testing.T) {
	path := writeConfig(t, "identity:\n  strategy: md5\n")
	if _, err := LoadOffline(path); err == nil {
		t.Fatal("expected validation error for unknown strategy")
	}
}

func TestLoad_NonPositiveRetention(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, "history:\n  retention: 0s\n")
	_, err := Load(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "history.retention" {
		t.Fatalf("err = %v, want ConfigError on history.retention", err)
	}
}
