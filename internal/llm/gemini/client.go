// Package gemini implements alert.Provider on the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/linnemanlabs/orrery/internal/alert"
)

// DefaultModel is the fast, inexpensive tier used for short alert copy.
const DefaultModel = "gemini-2.0-flash"

// Client implements alert.Provider for Gemini.
type Client struct {
	models *genai.Models
	model  string
}

// New creates a Gemini client for the Gemini Developer API.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: client.Models, model: model}, nil
}

// Send generates text for req. Deadlines come from ctx.
func (c *Client) Send(ctx context.Context, req *alert.Request) (*alert.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(req.Prompt), toConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return fromResponse(resp, model), nil
}

func toConfig(req *alert.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(max(req.MaxTokens, 1)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func fromResponse(resp *genai.GenerateContentResponse, requested string) *alert.Response {
	out := &alert.Response{
		Content: strings.TrimSpace(resp.Text()),
		Model:   requested,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.TokensTotal = int(u.TotalTokenCount)
		out.CostTotal = estimateCost(out.Model, int(u.PromptTokenCount), int(u.CandidatesTokenCount))
	}
	return out
}

// prices is USD per million input and output tokens, matched by model prefix.
var prices = []struct {
	prefix        string
	input, output float64
}{
	{"gemini-2.0-flash-lite", 0.075, 0.30},
	{"gemini-2.0-flash", 0.10, 0.40},
	{"gemini-2.5-flash", 0.30, 2.50},
	{"gemini-2.5-pro", 1.25, 10},
}

func estimateCost(model string, inputTokens, outputTokens int) float64 {
	for _, p := range prices {
		if strings.HasPrefix(model, p.prefix) {
			return (float64(inputTokens)*p.input + float64(outputTokens)*p.output) / 1e6
		}
	}
	return 0
}
