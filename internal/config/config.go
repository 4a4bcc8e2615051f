package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendAzure  = "azblob"
	BackendMemory = "memory"
)

// Language model providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Report schedules
const (
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
	ScheduleOff    = "off"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	// Storage configuration
	StorageBackend        string `yaml:"storage_backend"`
	SQLitePath            string `yaml:"sqlite_path"`
	SpreadsheetID         string `yaml:"spreadsheet_id"`
	SheetsWorksheet       string `yaml:"sheets_worksheet"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	SheetsBaseURL         string `yaml:"sheets_base_url"`

	// Azure Storage configuration
	StorageAccount          string `yaml:"azure_storage_account"`
	StorageConnectionString string `yaml:"azure_storage_connection_string"`
	StorageContainer        string `yaml:"azure_storage_container"`
	TableBlob               string `yaml:"azure_table_blob"`

	// Language model configuration
	LLMProvider   string `yaml:"llm_provider"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	GeminiBaseURL string `yaml:"gemini_base_url"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`

	// Timeouts and windows
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	SessionIdle    time.Duration `yaml:"session_idle"`
	RecentWindow   int           `yaml:"recent_window"`

	// Schedule configuration
	ReportSchedule string `yaml:"report_schedule"` // "daily", "weekly" or "off"
	TimeZone       string `yaml:"timezone"`

	// Notification configuration
	TeamsWebhookURL   string `yaml:"teams_webhook_url"`
	NotificationEmail string `yaml:"notification_email"`
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUsername      string `yaml:"smtp_username"`
	SMTPPassword      string `yaml:"smtp_password"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:             "8080",
		StorageBackend:   BackendSQLite,
		SQLitePath:       "diary.db",
		SheetsWorksheet:  "diary_data",
		StorageContainer: "diary",
		TableBlob:        "diary_data.csv",
		LLMProvider:      ProviderGemini,
		LLMTimeout:       30 * time.Second,
		BackendTimeout:   15 * time.Second,
		SessionIdle:      24 * time.Hour,
		RecentWindow:     30,
		ReportSchedule:   ScheduleOff,
		TimeZone:         "UTC",
		SMTPPort:         587,
	}
}

// Load loads configuration from an optional YAML file (DIARY_CONFIG) and then from
// environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DIARY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Debug = getBoolEnv("DEBUG", c.Debug)

	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.SpreadsheetID = getEnv("SPREADSHEET_ID", c.SpreadsheetID)
	c.SheetsWorksheet = getEnv("SHEETS_WORKSHEET", c.SheetsWorksheet)
	c.GoogleCredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.SheetsBaseURL = getEnv("SHEETS_BASE_URL", c.SheetsBaseURL)

	c.StorageAccount = getEnv("AZURE_STORAGE_ACCOUNT", c.StorageAccount)
	c.StorageConnectionString = getEnv("AZURE_STORAGE_CONNECTION_STRING", c.StorageConnectionString)
	c.StorageContainer = getEnv("AZURE_STORAGE_CONTAINER", c.StorageContainer)
	c.TableBlob = getEnv("AZURE_TABLE_BLOB", c.TableBlob)

	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)

	c.LLMTimeout = getDurationEnv("LLM_TIMEOUT", c.LLMTimeout)
	c.BackendTimeout = getDurationEnv("BACKEND_TIMEOUT", c.BackendTimeout)
	c.SessionIdle = getDurationEnv("SESSION_IDLE", c.SessionIdle)
	c.RecentWindow = getIntEnv("RECENT_WINDOW", c.RecentWindow)

	c.ReportSchedule = strings.ToLower(getEnv("REPORT_SCHEDULE", c.ReportSchedule))
	c.TimeZone = getEnv("TIMEZONE", c.TimeZone)

	c.TeamsWebhookURL = getEnv("TEAMS_WEBHOOK_URL", c.TeamsWebhookURL)
	c.NotificationEmail = getEnv("NOTIFICATION_EMAIL", c.NotificationEmail)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getIntEnv("SMTP_PORT", c.SMTPPort)
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendSheets:
		if c.SpreadsheetID == "" || c.GoogleCredentialsFile == "" {
			return fmt.Errorf("SPREADSHEET_ID and GOOGLE_CREDENTIALS_FILE are required for the sheets backend")
		}
	case BackendAzure:
		if c.StorageAccount == "" && c.StorageConnectionString == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT or AZURE_STORAGE_CONNECTION_STRING is required for the azblob backend")
		}
		if c.TableBlob == "" {
			return fmt.Errorf("AZURE_TABLE_BLOB must not be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of sqlite, sheets, azblob, memory")
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is openai")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of gemini, openai, none")
	}

	if c.LLMTimeout <= 0 || c.BackendTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT and BACKEND_TIMEOUT must be positive")
	}
	if c.RecentWindow <= 0 {
		return fmt.Errorf("RECENT_WINDOW must be positive")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	switch c.ReportSchedule {
	case ScheduleOff:
	case ScheduleDaily, ScheduleWeekly:
		if c.TeamsWebhookURL == "" && c.NotificationEmail == "" {
			return fmt.Errorf("at least one notification method must be configured (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL)")
		}
	default:
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily', 'weekly' or 'off'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Location returns the configured time zone, UTC if it cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
