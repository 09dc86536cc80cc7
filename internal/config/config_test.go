package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, githubTokenEnv, githubOwnerEnv, githubRepoEnv,
		llmAPIKeyEnv, llmModelEnv, llmEndpointEnv, databaseDSNEnv,
		redisAddrEnv, telegramTokenEnv, telegramChatIDEnv, logLevelEnv,
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.Dir != "database" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if !cfg.Repair.Enabled {
		t.Fatalf("repair must be enabled by default")
	}
	if cfg.GitHub.DiscussionMaxChars != 1024 {
		t.Fatalf("unexpected discussion cap %d", cfg.GitHub.DiscussionMaxChars)
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
github:
  owner: acme
  repo: widgets
  categories: [issues]
llm:
  model: local-model
  retryBackoff: 2s
  maxRetries: 3
repair:
  enabled: false
scheduler:
  cronExpression: "*/5 * * * *"
  timezone: Europe/Berlin
`)
	t.Setenv(llmAPIKeyEnv, "from-env")
	t.Setenv(githubRepoEnv, "gadgets")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.GitHub.Owner != "acme" || cfg.GitHub.Repo != "gadgets" {
		t.Fatalf("unexpected github config: %+v", cfg.GitHub)
	}
	if len(cfg.GitHub.Categories) != 1 || cfg.GitHub.Categories[0] != "issues" {
		t.Fatalf("unexpected categories %v", cfg.GitHub.Categories)
	}
	if cfg.LLM.Model != "local-model" || cfg.LLM.APIKey != "from-env" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.RetryBackoff != 2*time.Second || cfg.LLM.MaxRetries != 3 {
		t.Fatalf("unexpected retry settings: %v %d", cfg.LLM.RetryBackoff, cfg.LLM.MaxRetries)
	}
	if cfg.LLM.Endpoint == "" || cfg.LLM.RatePerMinute != 10 {
		t.Fatalf("defaults lost: %+v", cfg.LLM)
	}
	if cfg.Repair.Enabled {
		t.Fatalf("repair.enabled=false was ignored")
	}
	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoadUsesConfigEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv(configPathEnv, writeConfig(t, "logging:\n  level: debug\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
	if _, err := Load(writeConfig(t, "github: [unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Storage.Driver = "postgres"
	cfg.GitHub.Categories = []string{"wiki"}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"github.owner", "wiki", "llm.apiKey", "storage.dsn"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestPromptFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  classify this\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	prompt, err := LLMConfig{SystemPrompt: "inline", SystemPromptFile: path}.Prompt()
	if err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	if prompt != "classify this" {
		t.Fatalf("unexpected prompt %q", prompt)
	}

	if _, err := (LLMConfig{SystemPromptFile: path + ".missing"}).Prompt(); err == nil {
		t.Fatalf("expected error for missing prompt file")
	}
}
