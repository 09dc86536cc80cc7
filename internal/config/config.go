package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigFile = "config.yaml"
	configPathEnv     = "ISSUETRIAGE_CONFIG"
	githubTokenEnv    = "GITHUB_TOKEN"
	githubOwnerEnv    = "GITHUB_OWNER"
	githubRepoEnv     = "GITHUB_REPO"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmEndpointEnv    = "LLM_ENDPOINT"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// DefaultSystemPrompt asks the model for a bare JSON classification.
const DefaultSystemPrompt = `You triage GitHub issues and discussions.
Answer with a single JSON object and nothing else:
{"type": "alias" | "add" | "fix" | "duplicate" | "other", "reason": "<short reason>", "mcp": ["<instruction>", ...]}
Each mcp instruction is "view <number>" or "google <query>".`

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	GitHub        GitHubConfig       `yaml:"github"`
	LLM           LLMConfig          `yaml:"llm"`
	Schema        SchemaConfig       `yaml:"schema"`
	Storage       StorageConfig      `yaml:"storage"`
	Repair        RepairConfig       `yaml:"repair"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// GitHubConfig selects the repository and which posts to fetch.
type GitHubConfig struct {
	Token      string   `yaml:"token"`
	Owner      string   `yaml:"owner"`
	Repo       string   `yaml:"repo"`
	APIURL     string   `yaml:"apiUrl"`
	GraphQLURL string   `yaml:"graphqlUrl"`
	Categories []string `yaml:"categories"`
	PageSize   int      `yaml:"pageSize"`
	// DiscussionMaxChars caps discussion bodies in runes; 0 keeps them whole.
	DiscussionMaxChars int `yaml:"discussionMaxChars"`
}

// LLMConfig defines how to contact the completion API and how fast.
type LLMConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"apiKey"`
	SystemPrompt     string        `yaml:"systemPrompt"`
	SystemPromptFile string        `yaml:"systemPromptFile"`
	Timeout          time.Duration `yaml:"timeout"`
	RatePerMinute    int           `yaml:"ratePerMinute"`
	RetryBackoff     time.Duration `yaml:"retryBackoff"`
	// MaxRetries caps rate-limit retries; 0 retries until the context ends.
	MaxRetries int `yaml:"maxRetries"`
}

// Prompt returns the system instruction, reading SystemPromptFile when set.
func (l LLMConfig) Prompt() (string, error) {
	if l.SystemPromptFile == "" {
		return strings.TrimSpace(l.SystemPrompt), nil
	}
	raw, err := os.ReadFile(l.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// SchemaConfig points to the schema documents.
type SchemaConfig struct {
	Dir string `yaml:"dir"`
	Key string `yaml:"key"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Dir         string `yaml:"dir"`
	DSN         string `yaml:"dsn"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisDB     int    `yaml:"redisDb"`
	RedisPrefix string `yaml:"redisPrefix"`
}

// RepairConfig controls the interactive repair step.
type RepairConfig struct {
	Enabled bool   `yaml:"enabled"`
	Editor  string `yaml:"editor"`
}

// SchedulerConfig defines when watch mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env, then the YAML file (if present), then environment
// overrides. path wins over ISSUETRIAGE_CONFIG; without either, config.yaml
// in the working directory is used when it exists.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	explicit := true
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path == "" {
		path, explicit = defaultConfigFile, false
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		// fields absent from the file keep their defaults
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	case !errors.Is(err, fs.ErrNotExist):
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.GitHub.Categories) == 0 {
		cfg.GitHub.Categories = defaultConfig().GitHub.Categories
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{githubTokenEnv, &c.GitHub.Token},
		{githubOwnerEnv, &c.GitHub.Owner},
		{githubRepoEnv, &c.GitHub.Repo},
		{llmAPIKeyEnv, &c.LLM.APIKey},
		{llmModelEnv, &c.LLM.Model},
		{llmEndpointEnv, &c.LLM.Endpoint},
		{databaseDSNEnv, &c.Storage.DSN},
		{redisAddrEnv, &c.Storage.RedisAddr},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Validate reports every missing or contradictory value at once.
func (c Config) Validate() error {
	var errs []error
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		errs = append(errs, errors.New("github.owner and github.repo are required"))
	}
	for _, cat := range c.GitHub.Categories {
		if cat != "issues" && cat != "discussions" {
			errs = append(errs, fmt.Errorf("github.categories: unknown category %q", cat))
		}
	}
	if c.LLM.Endpoint == "" || c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.endpoint and llm.model are required"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.apiKey is required (or LLM_API_KEY)"))
	}
	if c.LLM.RatePerMinute < 0 || c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.ratePerMinute and llm.maxRetries must not be negative"))
	}
	if c.Schema.Dir == "" || c.Schema.Key == "" {
		errs = append(errs, errors.New("schema.dir and schema.key are required"))
	}
	switch c.Storage.Driver {
	case "", "file":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file driver"))
		}
	case "postgres", "sqlite3":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redisAddr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		GitHub: GitHubConfig{
			Categories:         []string{"issues", "discussions"},
			PageSize:           100,
			DiscussionMaxChars: 1024,
		},
		LLM: LLMConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			SystemPrompt:  DefaultSystemPrompt,
			Timeout:       60 * time.Second,
			RatePerMinute: 10,
			RetryBackoff:  time.Second,
		},
		Schema:    SchemaConfig{Dir: "schema", Key: "type"},
		Storage:   StorageConfig{Driver: "file", Dir: "database"},
		Repair:    RepairConfig{Enabled: true},
		Scheduler: SchedulerConfig{CronExpression: "0 * * * *", Timezone: defaultTimezone, location: tz},
	}
}
