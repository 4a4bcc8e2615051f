// Package analysis turns diary text into keywords, emotion ratings and short messages
// using a language model, with deterministic fallbacks when the model is unavailable.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	minRating = 0
	maxRating = 10
	// MinAdviceLength is the shortest reply treated as real advice.
	MinAdviceLength = 10
)

// FallbackMessage is used when no message can be generated.
const FallbackMessage = "Thank you for writing in your diary today! 😊"

// NoAdvice replaces empty or near-empty advice replies.
const NoAdvice = "Nothing in particular to advise based on the diary so far."

// ErrProviderDisabled is returned by the no-op provider.
var ErrProviderDisabled = errors.New("language model provider disabled")

// Analysis is the result of analyzing one diary text
type Analysis struct {
	Keywords []string              `json:"keywords"`
	Ratings  models.EmotionRatings `json:"ratings"`
}

// Persona is an expert voice used for advice
type Persona struct {
	Name  string `json:"name"`
	Focus string `json:"focus"`
}

// DefaultPersonas are the experts consulted for advice, in presentation order.
var DefaultPersonas = []Persona{
	{Name: "Psychological counselor", Focus: "emotional stability, anxiety, low mood and emotion regulation"},
	{Name: "Financial planner", Focus: "spending habits, financial stress and money-related feelings or plans"},
	{Name: "Lawyer", Focus: "legal issues, conflicts and protecting one's rights, if any appear"},
	{Name: "Physician", Focus: "health, sleep, eating habits and stress"},
	{Name: "Skin-care specialist", Focus: "skin, appearance and stress-related skin problems, if mentioned"},
	{Name: "Fitness trainer", Focus: "exercise, stamina, energy levels and lifestyle habits"},
	{Name: "Venture investor", Focus: "ambition, creative ideas and business concerns, if any appear"},
}

// FallbackAnalysis is the neutral record used when analysis fails.
func FallbackAnalysis() Analysis {
	return Analysis{
		Keywords: []string{"diary", "today", "day", "thoughts", "heart"},
		Ratings:  models.EmotionRatings{Joy: 5, Sadness: 3, Anger: 2, Anxiety: 3, Calmness: 4},
	}
}

// modelAnalysis is the JSON shape requested from the model. Ratings are floats so
// answers like 7.5 still decode.
type modelAnalysis struct {
	Keywords []string `json:"keywords" jsonschema:"description=Three to five short keywords"`
	Joy      float64  `json:"joy" jsonschema:"description=0 to 10"`
	Sadness  float64  `json:"sadness" jsonschema:"description=0 to 10"`
	Anger    float64  `json:"anger" jsonschema:"description=0 to 10"`
	Anxiety  float64  `json:"anxiety" jsonschema:"description=0 to 10"`
	Calmness float64  `json:"calmness" jsonschema:"description=0 to 10"`
}

type modelMessage struct {
	Message string `json:"message" jsonschema:"description=A short warm message with one emoji"`
}

func (m modelAnalysis) toAnalysis() Analysis {
	keywords := make([]string, 0, len(m.Keywords))
	for _, k := range m.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return Analysis{
		Keywords: keywords,
		Ratings: models.EmotionRatings{
			Joy:      clampRating(m.Joy),
			Sadness:  clampRating(m.Sadness),
			Anger:    clampRating(m.Anger),
			Anxiety:  clampRating(m.Anxiety),
			Calmness: clampRating(m.Calmness),
		},
	}
}

// clampRating rounds a model rating and bounds it to [0, 10].
func clampRating(v float64) int {
	if math.IsNaN(v) {
		return minRating
	}
	r := int(math.Round(v))
	if r < minRating {
		return minRating
	}
	if r > maxRating {
		return maxRating
	}
	return r
}

// ClampRatings bounds every rating to [0, 10]
func ClampRatings(r models.EmotionRatings) models.EmotionRatings {
	return models.EmotionRatings{
		Joy:      clampRating(float64(r.Joy)),
		Sadness:  clampRating(float64(r.Sadness)),
		Anger:    clampRating(float64(r.Anger)),
		Anxiety:  clampRating(float64(r.Anxiety)),
		Calmness: clampRating(float64(r.Calmness)),
	}
}

// AnalyzeWithFallback runs the analyzer and substitutes FallbackAnalysis on any failure.
// The second result reports whether the fallback was used.
func AnalyzeWithFallback(ctx context.Context, a Analyzer, text string) (Analysis, bool) {
	result, err := a.Analyze(ctx, text)
	if err != nil {
		logrus.WithError(err).Warn("Emotion analysis failed, using fallback ratings")
		return FallbackAnalysis(), true
	}
	result.Ratings = ClampRatings(result.Ratings)
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	return result, false
}

// MessageWithFallback generates the encouragement message, substituting FallbackMessage
// on failure or an empty reply.
func MessageWithFallback(ctx context.Context, g MessageGenerator, date string, today Analysis, recent []models.DiaryEntry) (string, bool) {
	msg, err := g.Summarize(ctx, date, today, recent)
	if err != nil {
		logrus.WithError(err).Warn("Message generation failed, using fallback message")
		return FallbackMessage, true
	}
	if msg = strings.TrimSpace(msg); msg == "" {
		logrus.Warn("Message generation returned nothing, using fallback message")
		return FallbackMessage, true
	}
	return msg, false
}

// DecodeModelJSON decodes model output that should be a JSON object. Text around the
// object (prose, code fences) is tolerated: the first '{' to the last '}' is tried.
func DecodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("invalid JSON in model output: %w", err)
	}
	return nil
}

// DiaryText renders entries chronologically as "[date] content" blocks for advice prompts
func DiaryText(entries []models.DiaryEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("[%s] %s", e.Date, e.Content))
	}
	return strings.Join(parts, "\n\n")
}

func analysisPrompt(text string) string {
	return fmt.Sprintf(`You analyze diary entries. Read the entry below and answer with JSON only.
---
%s
---
Format:
{
  "keywords": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"],
  "joy": 0-10,
  "sadness": 0-10,
  "anger": 0-10,
  "anxiety": 0-10,
  "calmness": 0-10
}`, text)
}

func messagePrompt(date string, today Analysis, recent []models.DiaryEntry) string {
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "- %s: total %.2f, keywords %s\n", e.Date, e.TotalScore, strings.Join(e.Keywords, ", "))
	}
	if b.Len() == 0 {
		b.WriteString("- (no earlier entries)\n")
	}

	r := today.Ratings
	return fmt.Sprintf(`You are a diary app. Write one short, warm message for the writer as JSON.
Today (%s): keywords %s; joy %d, sadness %d, anger %d, anxiety %d, calmness %d.
Recent entries:
%sFormat: {"message": "encouraging message 😊"}`,
		date, strings.Join(today.Keywords, ", "), r.Joy, r.Sadness, r.Anger, r.Anxiety, r.Calmness, b.String())
}

func advicePrompt(persona Persona, diaryText string) string {
	return fmt.Sprintf(`You are a %s. Below is everything one person wrote in their diary, in chronological order.
Read the emotions and events and give meaningful advice from your professional point of view.
Focus on %s.
Diary:
---
%s
---
Keep it short and practical.`, strings.ToLower(persona.Name), persona.Focus, diaryText)
}

// NormalizeAdvice trims a reply and substitutes NoAdvice for empty or trivial text
func NormalizeAdvice(reply string) string {
	reply = strings.TrimSpace(reply)
	if len([]rune(reply)) <= MinAdviceLength {
		return NoAdvice
	}
	return reply
}
