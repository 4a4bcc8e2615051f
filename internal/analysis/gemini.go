package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiClient talks to the Gemini generateContent REST endpoint
type GeminiClient struct {
	client *resty.Client
	apiKey string
	model  string
}

var _ Provider = (*GeminiClient)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient creates a Gemini client. baseURL may be empty for the public API.
func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiClient{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		apiKey: apiKey,
		model:  model,
	}
}

func (g *GeminiClient) Name() string {
	return "gemini"
}

func (g *GeminiClient) Analyze(ctx context.Context, text string) (Analysis, error) {
	out, err := g.generate(ctx, analysisPrompt(text), true)
	if err != nil {
		return Analysis{}, err
	}

	var parsed modelAnalysis
	if err := DecodeModelJSON(out, &parsed); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}
	return parsed.toAnalysis(), nil
}

func (g *GeminiClient) Summarize(ctx context.Context, date string, today Analysis, recent []models.DiaryEntry) (string, error) {
	out, err := g.generate(ctx, messagePrompt(date, today, recent), true)
	if err != nil {
		return "", err
	}

	var parsed modelMessage
	if err := DecodeModelJSON(out, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	return strings.TrimSpace(parsed.Message), nil
}

func (g *GeminiClient) Advise(ctx context.Context, persona Persona, diaryText string) (string, error) {
	return g.generate(ctx, advicePrompt(persona, diaryText), false)
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini API key not configured")
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if jsonOutput {
		body.GenerationConfig = map[string]any{"responseMimeType": "application/json"}
	}

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini API error %d: %s", resp.StatusCode(), resp.String())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	logrus.WithField("provider", g.Name()).Debugf("Model replied with %d characters", text.Len())
	return text.String(), nil
}
