// Package gemini provides a model.Model backed by the Google Gen AI SDK
// (Gemini API backend).
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/opsmesh/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini adapter.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int32
	APIKey      string
}

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model wraps genai's Models service.
type Model struct {
	models contentGenerator
	opts   Options
}

func defaultOptions() Options {
	return Options{Model: DefaultModel, Temperature: 0.7, MaxTokens: 4096}
}

// NewModel creates a Gemini API client. Without an explicit APIKey the SDK
// reads GOOGLE_API_KEY / GEMINI_API_KEY.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Model{models: client.Models, opts: opts}, nil
}

// Generate performs one GenerateContent call.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if len(req.Messages) == 0 {
		return model.Response{}, model.ErrNoMessages
	}

	resp, err := m.models.GenerateContent(ctx, m.opts.Model, buildContents(req.Messages), m.buildConfig(req))
	if err != nil {
		return model.Response{}, fmt.Errorf("gemini api error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return model.Response{}, errors.New("gemini: no candidates returned")
	}

	out := model.Response{
		Text:         resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = float32(*req.Temperature)
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	return cfg
}

// buildContents maps assistant turns onto the "model" role.
func buildContents(msgs []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := genai.Role(genai.RoleUser)
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	return contents
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
