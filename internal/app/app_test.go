package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.StorageBackend = config.BackendMemory
		table, closer, err := OpenBackend(ctx, cfg)
		require.NoError(t, err)
		defer closer.Close()
		assert.IsType(t, &storage.MemoryTable{}, table)
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.SQLitePath = filepath.Join(t.TempDir(), "diary.db")
		table, closer, err := OpenBackend(ctx, cfg)
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, table.AppendRow(ctx, []string{"2025-01-01", "hi"}))
		rows, err := table.ListRows(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("Sheets without credentials", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.StorageBackend = config.BackendSheets
		cfg.GoogleCredentialsFile = filepath.Join(t.TempDir(), "missing.json")
		_, _, err := OpenBackend(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.StorageBackend = "floppy"
		_, _, err := OpenBackend(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		name     string
		wantErr  bool
	}{
		{provider: config.ProviderGemini, name: "gemini"},
		{provider: config.ProviderOpenAI, name: "openai"},
		{provider: config.ProviderNone, name: "none"},
		{provider: "claude", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.LLMProvider = tt.provider
			cfg.GeminiAPIKey = "k"
			cfg.OpenAIAPIKey = "k"

			p, err := NewProvider(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name())
		})
	}
}
