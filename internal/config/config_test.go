package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"DIARY_CONFIG", "PORT", "DEBUG", "STORAGE_BACKEND", "SQLITE_PATH", "SPREADSHEET_ID",
	"SHEETS_WORKSHEET", "GOOGLE_CREDENTIALS_FILE", "SHEETS_BASE_URL", "AZURE_STORAGE_ACCOUNT",
	"AZURE_STORAGE_CONNECTION_STRING", "AZURE_STORAGE_CONTAINER", "AZURE_TABLE_BLOB",
	"LLM_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "OPENAI_API_KEY",
	"OPENAI_MODEL", "LLM_TIMEOUT", "BACKEND_TIMEOUT", "SESSION_IDLE", "RECENT_WINDOW",
	"REPORT_SCHEDULE", "TIMEZONE", "TEAMS_WEBHOOK_URL", "NOTIFICATION_EMAIL", "SMTP_HOST",
	"SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "none")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "diary_data", cfg.SheetsWorksheet)
	assert.Equal(t, 30, cfg.RecentWindow)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, ScheduleOff, cfg.ReportSchedule)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "Memory")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("BACKEND_TIMEOUT", "not-a-duration")
	t.Setenv("RECENT_WINDOW", "14")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 15*time.Second, cfg.BackendTimeout, "unparsable values keep the default")
	assert.Equal(t, 14, cfg.RecentWindow)
	assert.True(t, cfg.Debug)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "diary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
storage_backend: sheets
spreadsheet_id: sheet-123
google_credentials_file: /secrets/sa.json
llm_provider: gemini
gemini_api_key: from-file
llm_timeout: 45s
report_schedule: weekly
teams_webhook_url: https://example.invalid/hook
timezone: Asia/Seoul
`), 0o600))
	t.Setenv("DIARY_CONFIG", path)
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendSheets, cfg.StorageBackend)
	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
	assert.Equal(t, "from-env", cfg.GeminiAPIKey)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, ScheduleWeekly, cfg.ReportSchedule)
	assert.Equal(t, "Asia/Seoul", cfg.Location().String())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIARY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.LLMProvider = ProviderNone
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Defaults with no provider", mutate: func(*Config) {}},
		{name: "Unknown backend", mutate: func(c *Config) { c.StorageBackend = "excel" }, wantErr: true},
		{name: "Sheets without spreadsheet", mutate: func(c *Config) { c.StorageBackend = BackendSheets }, wantErr: true},
		{name: "Azure without account", mutate: func(c *Config) { c.StorageBackend = BackendAzure }, wantErr: true},
		{name: "Azure with connection string", mutate: func(c *Config) {
			c.StorageBackend = BackendAzure
			c.StorageConnectionString = "UseDevelopmentStorage=true"
		}},
		{name: "Gemini without key", mutate: func(c *Config) { c.LLMProvider = ProviderGemini }, wantErr: true},
		{name: "Unknown provider", mutate: func(c *Config) { c.LLMProvider = "claude" }, wantErr: true},
		{name: "Zero timeout", mutate: func(c *Config) { c.BackendTimeout = 0 }, wantErr: true},
		{name: "Bad time zone", mutate: func(c *Config) { c.TimeZone = "Mars/Olympus" }, wantErr: true},
		{name: "Schedule without channel", mutate: func(c *Config) { c.ReportSchedule = ScheduleDaily }, wantErr: true},
		{name: "Schedule with Teams", mutate: func(c *Config) {
			c.ReportSchedule = ScheduleDaily
			c.TeamsWebhookURL = "https://example.invalid/hook"
		}},
		{name: "Unknown schedule", mutate: func(c *Config) { c.ReportSchedule = "hourly" }, wantErr: true},
		{name: "Email without SMTP", mutate: func(c *Config) { c.NotificationEmail = "me@example.com" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
