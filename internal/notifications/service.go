package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/score"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	mailer mailSender
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		mailer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent report to Teams")
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, report *models.Report) error {
	message := BuildTeamsMessage(report)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

// BuildTeamsMessage renders the report as a Teams message card
func BuildTeamsMessage(report *models.Report) *TeamsMessage {
	agg := report.Stats.Aggregate
	tier := score.TierFor(agg.AverageScore)

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Emotion Diary Report - %s", capitalize(report.Period)),
		Text:    fmt.Sprintf("%d entries, average score %.2f/10 %s", agg.EntryCount, agg.AverageScore, tier.Emoji()),
	}

	facts := []TeamsFact{
		{Name: "Entries", Value: fmt.Sprintf("%d", agg.EntryCount)},
		{Name: "Average Score", Value: fmt.Sprintf("%.2f", agg.AverageScore)},
		{Name: "Characters Written", Value: fmt.Sprintf("%d", agg.CharCount)},
		{Name: "Active Months", Value: fmt.Sprintf("%d", agg.ActiveMonths)},
		{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	if d := report.Stats.Dominant; d != nil {
		facts = append(facts, TeamsFact{Name: "Dominant Emotion (7 entries)", Value: fmt.Sprintf("%s (%.1f)", capitalize(d.Emotion), d.Mean)})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Stats.TopKeywords) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Keywords",
			ActivityText:  strings.Join(keywordLines(report.Stats.TopKeywords), "\n\n"),
			Markdown:      true,
		})
	}

	if report.Comparison != nil {
		var trendFacts []TeamsFact
		for _, f := range comparisonFields(report.Comparison) {
			trendFacts = append(trendFacts, TeamsFact{
				Name:  f.Name,
				Value: fmt.Sprintf("%.2f → %.2f (%s)", f.Comparison.Previous, f.Comparison.Recent, f.Comparison.Trend),
			})
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle:    "Trends",
			ActivitySubtitle: "Last 7 entries vs the 7 before",
			Facts:            trendFacts,
			Markdown:         true,
		})
	}

	if report.Latest != nil && report.Latest.Message != "" {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: fmt.Sprintf("Latest entry (%s)", report.Latest.Date),
			ActivityText:  report.Latest.Message,
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("Emotion Diary Report - %s (%d entries)",
		capitalize(report.Period), report.Stats.Aggregate.EntryCount)

	htmlBody, err := BuildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := BuildEmailText(report)

	// Create message
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Emotion Diary Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #6b5bd2; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .rising { color: #107c10; }
        .falling { color: #d13438; }
        .flat { color: #605e5c; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Emotion Diary Report</h1>
        <p>{{.Period | title}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Average Score:</strong> {{printf "%.2f" .Stats.Aggregate.AverageScore}} / 10 {{emoji .Stats.Aggregate.AverageScore}}</p>
        <p><strong>Entries:</strong> {{.Stats.Aggregate.EntryCount}}</p>
        <p><strong>Characters Written:</strong> {{.Stats.Aggregate.CharCount}}</p>
        <p><strong>Active Months:</strong> {{.Stats.Aggregate.ActiveMonths}}</p>
        {{with .Stats.Dominant}}<p><strong>Dominant Emotion:</strong> {{.Emotion | title}} ({{printf "%.1f" .Mean}})</p>{{end}}
    </div>

    {{if .Stats.TopKeywords}}
    <h2>Top Keywords</h2>
    <ol>
    {{range .Stats.TopKeywords}}<li>{{.Keyword}} ({{.Count}})</li>
    {{end}}
    </ol>
    {{end}}

    {{with .Comparison}}
    <h2>Trends</h2>
    <table>
    {{range fields .}}<tr><td>{{.Name}}</td><td>{{printf "%.2f" .Comparison.Previous}} &rarr; {{printf "%.2f" .Comparison.Recent}}</td><td class="{{.Comparison.Trend}}">{{.Comparison.Trend}}</td></tr>
    {{end}}
    </table>
    {{end}}

    {{with .Latest}}{{if .Message}}<p><em>{{.Date}}: {{.Message}}</em></p>{{end}}{{end}}

    <hr>
    <p><small>This report was generated automatically by the Emotion Diary.</small></p>
</body>
</html>
`

var emailTmpl = template.Must(template.New("email").Funcs(template.FuncMap{
	"title":  capitalize,
	"emoji":  func(v float64) string { return score.TierFor(v).Emoji() },
	"fields": comparisonFields,
}).Parse(emailTemplate))

// BuildEmailHTML renders the HTML body of the report email
func BuildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildEmailText renders the plain-text body of the report email
func BuildEmailText(report *models.Report) string {
	var text strings.Builder
	agg := report.Stats.Aggregate

	text.WriteString(fmt.Sprintf("Emotion Diary Report - %s\n", capitalize(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Average Score: %.2f / 10 %s\n", agg.AverageScore, score.TierFor(agg.AverageScore).Emoji()))
	text.WriteString(fmt.Sprintf("Entries: %d\n", agg.EntryCount))
	text.WriteString(fmt.Sprintf("Characters Written: %d\n", agg.CharCount))
	text.WriteString(fmt.Sprintf("Active Months: %d\n", agg.ActiveMonths))
	if d := report.Stats.Dominant; d != nil {
		text.WriteString(fmt.Sprintf("Dominant Emotion: %s (%.1f)\n", capitalize(d.Emotion), d.Mean))
	}

	if len(report.Stats.TopKeywords) > 0 {
		text.WriteString("\nTOP KEYWORDS\n")
		text.WriteString("============\n")
		for _, line := range keywordLines(report.Stats.TopKeywords) {
			text.WriteString(line + "\n")
		}
	}

	if report.Comparison != nil {
		text.WriteString("\nTRENDS (last 7 vs previous 7)\n")
		text.WriteString("=============================\n")
		for _, f := range comparisonFields(report.Comparison) {
			text.WriteString(fmt.Sprintf("%-12s %5.2f -> %5.2f  %s\n", f.Name, f.Comparison.Previous, f.Comparison.Recent, f.Comparison.Trend))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Emotion Diary.\n")

	return text.String()
}

type namedComparison struct {
	Name       string
	Comparison models.FieldComparison
}

func comparisonFields(c *models.PeriodComparison) []namedComparison {
	return []namedComparison{
		{"Total Score", c.TotalScore},
		{"Joy", c.Joy},
		{"Sadness", c.Sadness},
		{"Anger", c.Anger},
		{"Anxiety", c.Anxiety},
		{"Calmness", c.Calmness},
	}
}

func keywordLines(keywords []models.KeywordCount) []string {
	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(keywords))
	for i, k := range keywords {
		prefix := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		lines = append(lines, fmt.Sprintf("%s %s (%d)", prefix, k.Keyword, k.Count))
	}
	return lines
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
