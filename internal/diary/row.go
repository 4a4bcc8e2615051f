package diary

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/moodlog/emotion-diary/internal/models"
)

// Column positions of the 11-column row layout.
const (
	colDate = iota
	colContent
	colKeywords
	colTotalScore
	colJoy
	colSadness
	colAnger
	colAnxiety
	colCalmness
	colMessage
	colCreatedAt
	columnCount
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // naive ISO-8601 without offset
	"2006-01-02 15:04:05",
}

// SerializeRow renders an entry in wire order (see storage.Columns).
func SerializeRow(e models.DiaryEntry) []string {
	row := make([]string, columnCount)
	row[colDate] = e.Date
	row[colContent] = e.Content
	row[colKeywords] = encodeKeywords(e.Keywords)
	row[colTotalScore] = strconv.FormatFloat(e.TotalScore, 'f', -1, 64)
	row[colJoy] = strconv.Itoa(e.Ratings.Joy)
	row[colSadness] = strconv.Itoa(e.Ratings.Sadness)
	row[colAnger] = strconv.Itoa(e.Ratings.Anger)
	row[colAnxiety] = strconv.Itoa(e.Ratings.Anxiety)
	row[colCalmness] = strconv.Itoa(e.Ratings.Calmness)
	row[colMessage] = e.Message
	if !e.UpdatedAt.IsZero() {
		row[colCreatedAt] = e.UpdatedAt.Format(time.RFC3339Nano)
	}
	return row
}

// parseRow reads a row leniently; every malformed field falls back to its zero default.
// ok is false when the row carries no date.
func parseRow(row []string) (models.DiaryEntry, bool) {
	date := strings.TrimSpace(cell(row, colDate))
	if date == "" {
		return models.DiaryEntry{}, false
	}

	return models.DiaryEntry{
		Date:       date,
		Content:    cell(row, colContent),
		Keywords:   decodeKeywords(cell(row, colKeywords)),
		TotalScore: parseFloat(cell(row, colTotalScore)),
		Ratings: models.EmotionRatings{
			Joy:      parseInt(cell(row, colJoy)),
			Sadness:  parseInt(cell(row, colSadness)),
			Anger:    parseInt(cell(row, colAnger)),
			Anxiety:  parseInt(cell(row, colAnxiety)),
			Calmness: parseInt(cell(row, colCalmness)),
		},
		Message:   cell(row, colMessage),
		UpdatedAt: parseTimestamp(cell(row, colCreatedAt)),
	}, true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// encodeKeywords writes a JSON array without HTML escaping so non-ASCII and <>&
// survive verbatim in the sheet.
func encodeKeywords(keywords []string) string {
	if keywords == nil {
		keywords = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(keywords); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// decodeKeywords accepts a JSON array, falling back to a comma separated list.
func decodeKeywords(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	var keywords []string
	if err := json.Unmarshal([]byte(s), &keywords); err == nil {
		if keywords == nil {
			return []string{}
		}
		return keywords
	}
	if strings.HasPrefix(s, "[") {
		return []string{}
	}

	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseInt accepts "7" as well as "7.0", which spreadsheets like to produce.
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f := parseFloat(s)
	return int(f)
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
