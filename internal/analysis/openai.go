package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

var (
	analysisSchema = generateSchema[modelAnalysis]()
	messageSchema  = generateSchema[modelMessage]()
)

// OpenAIClient uses the Responses API with strict JSON schemas
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI client. Extra request options (base URL, HTTP client)
// may be passed for testing.
func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIClient{client: &client, model: model}
}

func (o *OpenAIClient) Name() string {
	return "openai"
}

func (o *OpenAIClient) Analyze(ctx context.Context, text string) (Analysis, error) {
	out, err := o.respond(ctx, analysisPrompt(text), jsonFormat("DiaryAnalysis", "Diary keywords and emotion ratings", analysisSchema))
	if err != nil {
		return Analysis{}, err
	}

	var parsed modelAnalysis
	if err := DecodeModelJSON(out, &parsed); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}
	return parsed.toAnalysis(), nil
}

func (o *OpenAIClient) Summarize(ctx context.Context, date string, today Analysis, recent []models.DiaryEntry) (string, error) {
	out, err := o.respond(ctx, messagePrompt(date, today, recent), jsonFormat("DiaryMessage", "Encouraging message", messageSchema))
	if err != nil {
		return "", err
	}

	var parsed modelMessage
	if err := DecodeModelJSON(out, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	return strings.TrimSpace(parsed.Message), nil
}

func (o *OpenAIClient) Advise(ctx context.Context, persona Persona, diaryText string) (string, error) {
	return o.respond(ctx, advicePrompt(persona, diaryText), nil)
}

func (o *OpenAIClient) respond(ctx context.Context, input string, format *responses.ResponseFormatTextConfigUnionParam) (string, error) {
	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(1200),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if format != nil {
		params.Text = responses.ResponseTextConfigParam{Format: *format}
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	return resp.OutputText(), nil
}

func jsonFormat(name, description string, schema map[string]any) *responses.ResponseFormatTextConfigUnionParam {
	return &responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        name,
			Schema:      schema,
			Strict:      openai.Bool(true),
			Description: openai.String(description),
			Type:        "json_schema",
		},
	}
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(err)
	}
	strictObject(schema)
	return schema
}

// strictObject marks every object closed and every property required, as strict mode demands.
func strictObject(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strictObject(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		strictObject(items)
	}
}
