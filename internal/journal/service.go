// Package journal orchestrates writing, deleting and reviewing diary entries: analysis,
// scoring, persistence and the derived statistics views.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moodlog/emotion-diary/internal/analysis"
	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/score"
	"github.com/moodlog/emotion-diary/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	messageWindow = 7
	topKeywords   = 10
	seriesLength  = diary.ComparisonWindow

	checkText = "Went for a walk in the park and felt calm afterwards."
)

var (
	// ErrEmptyContent is returned when saving blank text.
	ErrEmptyContent = errors.New("diary content is empty")
	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = diary.ErrInvalidDate
	// ErrConfirmationRequired is returned when a delete has not been requested first.
	ErrConfirmationRequired = errors.New("delete confirmation required")
)

// EntryStore is the keyed diary storage the service works on
type EntryStore interface {
	Upsert(ctx context.Context, entry models.DiaryEntry) (models.DiaryEntry, error)
	Delete(ctx context.Context, date string) (bool, error)
	GetAll(ctx context.Context) (map[string]models.DiaryEntry, error)
	GetRecent(ctx context.Context, n int) ([]models.DiaryEntry, error)
}

var _ EntryStore = (*diary.Store)(nil)

// Service handles diary writing and review
type Service struct {
	config   *config.Config
	store    EntryStore
	provider analysis.Provider
	personas []analysis.Persona
	metrics  *Metrics
	mu       sync.RWMutex
	now      func() time.Time
}

// Metrics holds journal metrics
type Metrics struct {
	Saves             int       `json:"saves"`
	SaveFailures      int       `json:"save_failures"`
	Deletes           int       `json:"deletes"`
	AnalysisFallbacks int       `json:"analysis_fallbacks"`
	MessageFallbacks  int       `json:"message_fallbacks"`
	ReadFailures      int       `json:"read_failures"`
	LastSave          time.Time `json:"last_save"`
	Provider          string    `json:"provider"`
}

// NewService creates a new journal service
func NewService(cfg *config.Config, store EntryStore, provider analysis.Provider) *Service {
	if provider == nil {
		provider = analysis.NoopClient{}
	}
	return &Service{
		config:   cfg,
		store:    store,
		provider: provider,
		personas: analysis.DefaultPersonas,
		metrics:  &Metrics{Provider: provider.Name()},
		now:      time.Now,
	}
}

// Save analyzes and stores the text of one day, replacing any existing entry for that date.
// When st is given, its pending text is cleared and the date becomes the selected one.
func (s *Service) Save(ctx context.Context, st *session.State, date, content string) (models.DiaryEntry, error) {
	if strings.TrimSpace(content) == "" {
		return models.DiaryEntry{}, ErrEmptyContent
	}
	if !diary.ValidDate(date) {
		return models.DiaryEntry{}, fmt.Errorf("%q: %w", date, ErrInvalidDate)
	}

	log := logrus.WithFields(logrus.Fields{"date": date, "provider": s.provider.Name()})
	log.Info("Saving diary entry")

	llmCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	result, analysisFallback := analysis.AnalyzeWithFallback(llmCtx, s.provider, content)
	cancel()

	recent := s.readRecent(ctx, messageWindow)

	msgCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	message, messageFallback := analysis.MessageWithFallback(msgCtx, s.provider, date, result, recent)
	cancel()

	entry := models.DiaryEntry{
		Date:       date,
		Content:    content,
		Keywords:   result.Keywords,
		Ratings:    result.Ratings,
		TotalScore: score.TotalScore(result.Ratings),
		Message:    message,
	}

	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	defer cancel()
	saved, err := s.store.Upsert(backendCtx, entry)

	s.mu.Lock()
	if analysisFallback {
		s.metrics.AnalysisFallbacks++
	}
	if messageFallback {
		s.metrics.MessageFallbacks++
	}
	if err != nil {
		s.metrics.SaveFailures++
	} else {
		s.metrics.Saves++
		s.metrics.LastSave = s.now()
	}
	s.mu.Unlock()

	if err != nil {
		log.Errorf("Failed to save diary entry: %v", err)
		return models.DiaryEntry{}, fmt.Errorf("failed to save entry for %s: %w", date, err)
	}

	if st != nil {
		st.SelectedDate = date
		st.PendingText = ""
	}
	log.Infof("Saved diary entry with total score %.2f", saved.TotalScore)
	return saved, nil
}

// RequestDelete arms the two-step delete for one date
func (s *Service) RequestDelete(st *session.State, date string) error {
	if !diary.ValidDate(date) {
		return fmt.Errorf("%q: %w", date, ErrInvalidDate)
	}
	st.ConfirmDelete = date
	logrus.WithField("date", date).Debug("Delete requested, awaiting confirmation")
	return nil
}

// ConfirmDelete deletes the entry whose deletion was requested in this session. Deleting
// a date that has no entry is a no-op reporting false.
func (s *Service) ConfirmDelete(ctx context.Context, st *session.State, date string) (bool, error) {
	if st.ConfirmDelete == "" || st.ConfirmDelete != date {
		return false, ErrConfirmationRequired
	}

	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	defer cancel()
	deleted, err := s.store.Delete(backendCtx, date)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry for %s: %w", date, err)
	}
	st.ConfirmDelete = ""

	if deleted {
		s.mu.Lock()
		s.metrics.Deletes++
		s.mu.Unlock()
	}
	return deleted, nil
}

// CancelDelete disarms a pending delete
func (s *Service) CancelDelete(st *session.State) {
	st.ConfirmDelete = ""
}

// Entry returns the entry of one date
func (s *Service) Entry(ctx context.Context, date string) (models.DiaryEntry, bool, error) {
	if !diary.ValidDate(date) {
		return models.DiaryEntry{}, false, fmt.Errorf("%q: %w", date, ErrInvalidDate)
	}
	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	defer cancel()

	all, err := s.store.GetAll(backendCtx)
	if err != nil {
		return models.DiaryEntry{}, false, err
	}
	entry, ok := all[date]
	return entry, ok, nil
}

// Recent returns the recent window in ascending date order. A backend read failure is
// logged and yields an empty window.
func (s *Service) Recent(ctx context.Context) []models.DiaryEntry {
	return s.readRecent(ctx, s.config.RecentWindow)
}

// All returns every entry in ascending date order. Unlike the views, a read failure is
// returned to the caller.
func (s *Service) All(ctx context.Context) ([]models.DiaryEntry, error) {
	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	defer cancel()

	all, err := s.store.GetAll(backendCtx)
	if err != nil {
		s.readFailed(err)
		return nil, err
	}
	return diary.SortByDate(all), nil
}

// Stats computes the statistics view over the recent window
func (s *Service) Stats(ctx context.Context) models.Stats {
	return statsOf(s.Recent(ctx))
}

// Trends returns the score series of the last 14 entries and the period comparison
func (s *Service) Trends(ctx context.Context) models.Trends {
	return trendsOf(s.Recent(ctx))
}

// Advice asks every persona for advice over the whole diary in chronological order.
// Personas are consulted sequentially; a failed or trivial reply becomes NoAdvice.
func (s *Service) Advice(ctx context.Context) ([]models.Advice, error) {
	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	all, err := s.store.GetAll(backendCtx)
	cancel()
	if err != nil {
		s.readFailed(err)
		return nil, err
	}
	if len(all) == 0 {
		return []models.Advice{}, nil
	}

	text := analysis.DiaryText(diary.SortByDate(all))
	out := make([]models.Advice, 0, len(s.personas))
	for _, p := range s.personas {
		llmCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
		reply, err := s.provider.Advise(llmCtx, p, text)
		cancel()
		if err != nil {
			logrus.WithField("persona", p.Name).Warnf("Advice failed: %v", err)
			reply = ""
		}
		out = append(out, models.Advice{Persona: p.Name, Text: analysis.NormalizeAdvice(reply)})
	}
	return out, nil
}

// reportSpan is how many of the latest entries the statistics of a report cover
var reportSpan = map[string]int{
	config.ScheduleDaily:  1,
	config.ScheduleWeekly: 7,
}

// Report builds the periodic emotion report. Its statistics cover the latest entry for a
// daily report and the latest 7 for a weekly one; the comparison splits the whole recent
// window.
func (s *Service) Report(ctx context.Context, period string) *models.Report {
	recent := s.Recent(ctx)
	covered := recent
	if n, ok := reportSpan[period]; ok {
		covered = diary.Last(recent, n)
	}
	report := &models.Report{
		GeneratedAt: s.now(),
		Period:      period,
		Stats:       statsOf(covered),
	}
	if cmp, ok := diary.ComparePeriods(recent); ok {
		report.Comparison = cmp
	}
	if len(recent) > 0 {
		latest := recent[len(recent)-1]
		report.Latest = &latest
	}
	return report
}

// CheckResult reports whether the collaborators answer
type CheckResult struct {
	Provider      string
	Entries       int
	BackendError  error
	ProviderError error
}

// Check reads the backend once and sends one sample text to the provider, without
// falling back.
func (s *Service) Check(ctx context.Context) CheckResult {
	result := CheckResult{Provider: s.provider.Name()}

	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	all, err := s.store.GetAll(backendCtx)
	cancel()
	result.Entries = len(all)
	result.BackendError = err

	llmCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	_, result.ProviderError = s.provider.Analyze(llmCtx, checkText)
	cancel()

	return result
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// Snapshot returns a copy of the current metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.metrics
}

func (s *Service) readRecent(ctx context.Context, n int) []models.DiaryEntry {
	backendCtx, cancel := context.WithTimeout(ctx, s.config.BackendTimeout)
	defer cancel()

	recent, err := s.store.GetRecent(backendCtx, n)
	if err != nil {
		s.readFailed(err)
		return []models.DiaryEntry{}
	}
	return recent
}

func (s *Service) readFailed(err error) {
	logrus.Errorf("Failed to read diary entries, treating store as empty: %v", err)
	s.mu.Lock()
	s.metrics.ReadFailures++
	s.mu.Unlock()
}

func statsOf(entries []models.DiaryEntry) models.Stats {
	stats := models.Stats{
		Aggregate:   diary.Aggregate(entries),
		TopKeywords: diary.TopKeywords(entries, topKeywords),
	}
	if dom, ok := diary.DominantEmotion(entries); ok {
		stats.Dominant = dom
	}
	return stats
}

func trendsOf(entries []models.DiaryEntry) models.Trends {
	window := diary.Last(entries, seriesLength)
	series := make([]models.ScorePoint, 0, len(window))
	for _, e := range window {
		series = append(series, models.ScorePoint{Date: e.Date, TotalScore: e.TotalScore, Ratings: e.Ratings})
	}

	trends := models.Trends{Series: series}
	if cmp, ok := diary.ComparePeriods(entries); ok {
		trends.Comparison = cmp
	}
	return trends
}
