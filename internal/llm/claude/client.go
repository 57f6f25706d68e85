// Package claude implements alert.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/orrery/internal/alert"
)

// DefaultModel is the fast, inexpensive tier used for short alert copy.
const DefaultModel = "claude-3-5-haiku-latest"

// Client implements alert.Provider for the Claude API.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a Claude client. An empty model selects DefaultModel. Extra
// request options are applied after the defaults.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	return &Client{
		sdk:   anthropic.NewClient(append(base, opts...)...),
		model: model,
	}
}

// Send generates text for req. Deadlines come from ctx.
func (c *Client) Send(ctx context.Context, req *alert.Request) (*alert.Response, error) {
	msg, err := c.sdk.Messages.New(ctx, toSDKParams(req, c.model))
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", err)
	}
	return fromSDKResponse(msg), nil
}

func toSDKParams(req *alert.Request, defaultModel string) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(max(req.MaxTokens, 1)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

func fromSDKResponse(msg *anthropic.Message) *alert.Response {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := string(msg.Model)
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &alert.Response{
		Content:     text.String(),
		TokensTotal: in + out,
		CostTotal:   estimateCost(model, in, out),
		Model:       model,
	}
}
