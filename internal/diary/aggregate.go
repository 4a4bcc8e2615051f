package diary

import (
	"sort"
	"unicode/utf8"

	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/score"
)

const (
	// ComparisonWindow is the number of entries a period comparison needs.
	ComparisonWindow = 14
	weekLength       = ComparisonWindow / 2
	trendThreshold   = 0.5
)

// Emotion names, in the order ties are broken.
const (
	EmotionJoy      = "joy"
	EmotionSadness  = "sadness"
	EmotionAnger    = "anger"
	EmotionAnxiety  = "anxiety"
	EmotionCalmness = "calmness"
)

// KeywordFrequency counts keyword occurrences across the entries.
func KeywordFrequency(entries []models.DiaryEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, k := range e.Keywords {
			counts[k]++
		}
	}
	return counts
}

// TopKeywords returns up to k keywords by count, ties in first-seen order.
func TopKeywords(entries []models.DiaryEntry, k int) []models.KeywordCount {
	index := make(map[string]int)
	var ranked []models.KeywordCount
	for _, e := range entries {
		for _, kw := range e.Keywords {
			if i, ok := index[kw]; ok {
				ranked[i].Count++
				continue
			}
			index[kw] = len(ranked)
			ranked = append(ranked, models.KeywordCount{Keyword: kw, Count: 1})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	if ranked == nil {
		ranked = []models.KeywordCount{}
	}
	return ranked
}

// Aggregate computes the statistics view of a window of entries
func Aggregate(entries []models.DiaryEntry) models.Aggregate {
	agg := models.Aggregate{
		EntryCount:    len(entries),
		KeywordCounts: KeywordFrequency(entries),
	}

	months := make(map[string]struct{})
	sum := 0.0
	for _, e := range entries {
		sum += e.TotalScore
		agg.CharCount += utf8.RuneCountInString(e.Content)
		if len(e.Date) >= 7 {
			months[e.Date[:7]] = struct{}{}
		}
	}
	agg.ActiveMonths = len(months)
	if len(entries) > 0 {
		agg.AverageScore = score.Round2(sum / float64(len(entries)))
	}
	return agg
}

// ComparePeriods compares the most recent 7 entries with the 7 before them. It reports
// false when fewer than 14 entries are given.
func ComparePeriods(entries []models.DiaryEntry) (*models.PeriodComparison, bool) {
	if len(entries) < ComparisonWindow {
		return nil, false
	}

	sorted := append([]models.DiaryEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	window := sorted[len(sorted)-ComparisonWindow:]
	previous, recent := window[:weekLength], window[weekLength:]

	field := func(get func(models.DiaryEntry) float64) models.FieldComparison {
		r, p := mean(recent, get), mean(previous, get)
		diff := r - p
		return models.FieldComparison{
			Recent:     r,
			Previous:   p,
			Difference: diff,
			Trend:      TrendLabel(diff),
		}
	}

	return &models.PeriodComparison{
		Joy:        field(func(e models.DiaryEntry) float64 { return float64(e.Ratings.Joy) }),
		Sadness:    field(func(e models.DiaryEntry) float64 { return float64(e.Ratings.Sadness) }),
		Anger:      field(func(e models.DiaryEntry) float64 { return float64(e.Ratings.Anger) }),
		Anxiety:    field(func(e models.DiaryEntry) float64 { return float64(e.Ratings.Anxiety) }),
		Calmness:   field(func(e models.DiaryEntry) float64 { return float64(e.Ratings.Calmness) }),
		TotalScore: field(func(e models.DiaryEntry) float64 { return e.TotalScore }),
	}, true
}

// TrendLabel classifies a mean difference against the ±0.5 threshold
func TrendLabel(diff float64) string {
	switch {
	case diff > trendThreshold:
		return models.TrendRising
	case diff < -trendThreshold:
		return models.TrendFalling
	default:
		return models.TrendFlat
	}
}

// DominantEmotion returns the emotion with the highest mean over the last 7 of the
// (date-sorted) entries. It reports false for fewer than 7 entries.
func DominantEmotion(entries []models.DiaryEntry) (*models.DominantEmotion, bool) {
	if len(entries) < weekLength {
		return nil, false
	}
	week := entries[len(entries)-weekLength:]

	candidates := []struct {
		name string
		get  func(models.DiaryEntry) float64
	}{
		{EmotionJoy, func(e models.DiaryEntry) float64 { return float64(e.Ratings.Joy) }},
		{EmotionSadness, func(e models.DiaryEntry) float64 { return float64(e.Ratings.Sadness) }},
		{EmotionAnger, func(e models.DiaryEntry) float64 { return float64(e.Ratings.Anger) }},
		{EmotionAnxiety, func(e models.DiaryEntry) float64 { return float64(e.Ratings.Anxiety) }},
		{EmotionCalmness, func(e models.DiaryEntry) float64 { return float64(e.Ratings.Calmness) }},
	}

	best := &models.DominantEmotion{Emotion: candidates[0].name, Mean: mean(week, candidates[0].get)}
	for _, c := range candidates[1:] {
		if m := mean(week, c.get); m > best.Mean {
			best = &models.DominantEmotion{Emotion: c.name, Mean: m}
		}
	}
	return best, true
}

func mean(entries []models.DiaryEntry, get func(models.DiaryEntry) float64) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += get(e)
	}
	return sum / float64(len(entries))
}
