package analysis

import (
	"context"

	"github.com/moodlog/emotion-diary/internal/models"
)

// NoopClient is the provider used when no language model is configured. Every call fails
// so the fallbacks apply.
type NoopClient struct{}

var _ Provider = NoopClient{}

func (NoopClient) Name() string { return "none" }

func (NoopClient) Analyze(context.Context, string) (Analysis, error) {
	return Analysis{}, ErrProviderDisabled
}

func (NoopClient) Summarize(context.Context, string, Analysis, []models.DiaryEntry) (string, error) {
	return "", ErrProviderDisabled
}

func (NoopClient) Advise(context.Context, Persona, string) (string, error) {
	return "", ErrProviderDisabled
}
