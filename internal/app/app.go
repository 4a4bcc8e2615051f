// Package app wires configuration into the storage backend and language model provider
// shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/moodlog/emotion-diary/internal/analysis"
	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/storage"
	"github.com/sirupsen/logrus"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend builds the table backend selected by STORAGE_BACKEND. The returned closer
// releases backend resources and is never nil on success.
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.TabularBackend, io.Closer, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		table, err := storage.NewSQLiteTable(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite backend: %w", err)
		}
		logrus.Infof("Using sqlite backend at %s", cfg.SQLitePath)
		return table, table, nil

	case config.BackendSheets:
		creds, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read Google credentials: %w", err)
		}
		httpClient, err := storage.NewSheetsHTTPClient(ctx, creds)
		if err != nil {
			return nil, nil, err
		}
		table, err := storage.NewSheetsTable(httpClient, cfg.SheetsBaseURL, cfg.SpreadsheetID, cfg.SheetsWorksheet)
		if err != nil {
			return nil, nil, err
		}
		if err := table.EnsureWorksheet(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to prepare worksheet %q: %w", cfg.SheetsWorksheet, err)
		}
		logrus.Infof("Using Google Sheets backend, worksheet %s", cfg.SheetsWorksheet)
		return table, nopCloser{}, nil

	case config.BackendAzure:
		blobs, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageConnectionString, cfg.StorageContainer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logrus.Infof("Using Azure blob backend, %s/%s", cfg.StorageContainer, cfg.TableBlob)
		return storage.NewBlobTable(blobs, cfg.TableBlob), nopCloser{}, nil

	case config.BackendMemory:
		logrus.Warn("Using in-memory backend, entries are lost on exit")
		return storage.NewMemoryTable(), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewProvider builds the language model provider selected by LLM_PROVIDER
func NewProvider(cfg *config.Config) (analysis.Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return analysis.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.LLMTimeout), nil
	case config.ProviderOpenAI:
		return analysis.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.ProviderNone:
		logrus.Warn("Language model disabled, every entry gets the fallback analysis")
		return analysis.NoopClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// SetupLogging configures logrus the way every binary does
func SetupLogging(cfg *config.Config) {
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}
