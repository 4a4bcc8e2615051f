package models

import "time"

// EmotionRatings holds the five independent emotion ratings of a day, each nominally 0-10
type EmotionRatings struct {
	Joy      int `json:"joy"`
	Sadness  int `json:"sadness"`
	Anger    int `json:"anger"`
	Anxiety  int `json:"anxiety"`
	Calmness int `json:"calmness"`
}

// DiaryEntry is one diary record. Date (YYYY-MM-DD) is the primary key.
type DiaryEntry struct {
	Date       string         `json:"date"`
	Content    string         `json:"content"`
	Keywords   []string       `json:"keywords"`
	Ratings    EmotionRatings `json:"ratings"`
	TotalScore float64        `json:"total_score"`
	Message    string         `json:"message"`
	UpdatedAt  time.Time      `json:"updated_at"` // stored in the created_at column, refreshed on every write
}

// Aggregate is the statistics view over a window of entries
type Aggregate struct {
	AverageScore  float64        `json:"average_score"`
	CharCount     int            `json:"char_count"`
	EntryCount    int            `json:"entry_count"`
	ActiveMonths  int            `json:"active_months"`
	KeywordCounts map[string]int `json:"keyword_counts"`
}

// KeywordCount is one row of a top-keywords listing
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Trend labels
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

// FieldComparison compares one field between the previous and the recent week
type FieldComparison struct {
	Recent     float64 `json:"recent"`
	Previous   float64 `json:"previous"`
	Difference float64 `json:"difference"`
	Trend      string  `json:"trend"`
}

// PeriodComparison is the recent-7 versus previous-7 comparison
type PeriodComparison struct {
	Joy        FieldComparison `json:"joy"`
	Sadness    FieldComparison `json:"sadness"`
	Anger      FieldComparison `json:"anger"`
	Anxiety    FieldComparison `json:"anxiety"`
	Calmness   FieldComparison `json:"calmness"`
	TotalScore FieldComparison `json:"total_score"`
}

// DominantEmotion is the emotion with the highest mean over a window
type DominantEmotion struct {
	Emotion string  `json:"emotion"`
	Mean    float64 `json:"mean"`
}

// Stats is what the statistics view renders
type Stats struct {
	Aggregate   Aggregate        `json:"aggregate"`
	TopKeywords []KeywordCount   `json:"top_keywords"`
	Dominant    *DominantEmotion `json:"dominant_emotion,omitempty"`
}

// ScorePoint is one point of the score chart
type ScorePoint struct {
	Date       string         `json:"date"`
	TotalScore float64        `json:"total_score"`
	Ratings    EmotionRatings `json:"ratings"`
}

// Trends is what the chart view renders
type Trends struct {
	Series     []ScorePoint      `json:"series"`
	Comparison *PeriodComparison `json:"comparison,omitempty"`
}

// Advice is one persona's reply in the expert advice view
type Advice struct {
	Persona string `json:"persona"`
	Text    string `json:"text"`
}

// Report represents a periodic emotion report
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Period      string            `json:"period"` // "daily" or "weekly"
	Stats       Stats             `json:"stats"`
	Comparison  *PeriodComparison `json:"comparison,omitempty"`
	Latest      *DiaryEntry       `json:"latest,omitempty"`
}
