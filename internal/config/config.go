package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	DBPath          string `yaml:"db_path"`
	ReportOutputDir string `yaml:"report_output_dir"`
	InboxDir        string `yaml:"inbox_dir"`

	AutoConvertSchedule string `yaml:"auto_convert_schedule"`
	WatchInbox          bool   `yaml:"watch_inbox"`

	RetainStatus    string `yaml:"retain_status"`
	ProtectedStatus string `yaml:"protected_status"`
	NotFoundRemark  string `yaml:"not_found_remark"`
	BackupSuffix    string `yaml:"backup_suffix"`

	RowHeight      float64 `yaml:"row_height"`
	MaxColumnWidth float64 `yaml:"max_column_width"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	LLMModel         string `yaml:"llm_model"`
	LLMDigestEnabled bool   `yaml:"llm_digest_enabled"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.InboxDir, "INBOX_DIR")
	envOverrideAllowEmpty(&cfg.AutoConvertSchedule, "AUTO_CONVERT_SCHEDULE")
	envOverrideBool(&cfg.WatchInbox, "WATCH_INBOX")
	envOverride(&cfg.RetainStatus, "RETAIN_STATUS")
	envOverride(&cfg.ProtectedStatus, "PROTECTED_STATUS")
	envOverride(&cfg.NotFoundRemark, "NOT_FOUND_REMARK")
	envOverride(&cfg.BackupSuffix, "BACKUP_SUFFIX")
	envOverrideFloat(&cfg.RowHeight, "ROW_HEIGHT")
	envOverrideFloat(&cfg.MaxColumnWidth, "MAX_COLUMN_WIDTH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideBool(&cfg.LLMDigestEnabled, "LLM_DIGEST_ENABLED")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.DBPath == "" {
		cfg.DBPath = "./ticketreport.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.RetainStatus == "" {
		cfg.RetainStatus = "New"
	}
	if cfg.ProtectedStatus == "" {
		cfg.ProtectedStatus = "Completed"
	}
	if cfg.NotFoundRemark == "" {
		cfg.NotFoundRemark = "0/Not found"
	}
	if cfg.BackupSuffix == "" {
		cfg.BackupSuffix = "_backup"
	}
	if cfg.RowHeight == 0 {
		cfg.RowHeight = 60
	}
	if cfg.MaxColumnWidth == 0 {
		cfg.MaxColumnWidth = 40
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "claude-sonnet-4-5"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if cfg.LLMDigestEnabled && cfg.AnthropicAPIKey == "" {
		log.Fatalf("anthropic_api_key is required when llm_digest_enabled=true")
	}
	if (cfg.AutoConvertSchedule != "" || cfg.WatchInbox) && cfg.InboxDir == "" {
		log.Fatalf("inbox_dir is required when auto_convert_schedule or watch_inbox is set")
	}
	if cfg.AutoConvertSchedule != "" {
		if _, err := ParseSchedule(cfg.AutoConvertSchedule); err != nil {
			log.Fatalf("invalid auto_convert_schedule '%s': %v", cfg.AutoConvertSchedule, err)
		}
	}
	if cfg.RowHeight < 0 {
		log.Fatalf("invalid row_height '%v': must be > 0", cfg.RowHeight)
	}
	if cfg.MaxColumnWidth < 1 || cfg.MaxColumnWidth > 255 {
		log.Fatalf("invalid max_column_width '%v': must be between 1 and 255", cfg.MaxColumnWidth)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SlackBotToken != "" && cfg.ReportChannelID == "" {
		log.Printf("WARNING: slack_bot_token is set but report_channel_id is empty; run summaries will not be posted.")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

func (c Config) DigestConfigured() bool {
	return c.LLMDigestEnabled && c.AnthropicAPIKey != ""
}
