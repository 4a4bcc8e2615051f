package analysis

import (
	"context"

	"github.com/moodlog/emotion-diary/internal/models"
)

// Analyzer extracts keywords and emotion ratings from diary text
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// MessageGenerator writes a short encouraging message for a newly saved entry
type MessageGenerator interface {
	Summarize(ctx context.Context, date string, today Analysis, recent []models.DiaryEntry) (string, error)
}

// Advisor answers as one expert persona over the whole diary
type Advisor interface {
	Advise(ctx context.Context, persona Persona, diaryText string) (string, error)
}

// Provider is a language model backend serving every analysis concern
type Provider interface {
	Analyzer
	MessageGenerator
	Advisor
	Name() string
}
