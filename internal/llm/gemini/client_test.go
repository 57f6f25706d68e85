package gemini

import (
	"context"
	"math"
	"testing"

	"google.golang.org/genai"

	"github.com/linnemanlabs/orrery/internal/alert"
)

func TestToConfig(t *testing.T) {
	t.Parallel()

	cfg := toConfig(&alert.Request{System: "you write alerts", Temperature: 0.7, MaxTokens: 100})

	if cfg.MaxOutputTokens != 100 {
		t.Errorf("max tokens = %d, want 100", cfg.MaxOutputTokens)
	}
	if cfg.Temperature == nil || math.Abs(float64(*cfg.Temperature)-0.7) > 1e-6 {
		t.Errorf("temperature = %v, want 0.7", cfg.Temperature)
	}
	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 ||
		cfg.SystemInstruction.Parts[0].Text != "you write alerts" {
		t.Errorf("system instruction = %+v", cfg.SystemInstruction)
	}
}

func TestToConfig_NoSystemAndFloor(t *testing.T) {
	t.Parallel()

	cfg := toConfig(&alert.Request{})
	if cfg.SystemInstruction != nil {
		t.Error("expected no system instruction")
	}
	if cfg.MaxOutputTokens != 1 {
		t.Errorf("max tokens = %d, want 1", cfg.MaxOutputTokens)
	}
}

func TestFromResponse(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: "  Jupiter opens "}, {Text: "a door.  "}},
			},
		}},
		ModelVersion: "gemini-2.0-flash-001",
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1000,
			CandidatesTokenCount: 500,
			TotalTokenCount:      1500,
		},
	}

	got := fromResponse(resp, DefaultModel)
	if got.Content != "Jupiter opens a door." {
		t.Errorf("content = %q", got.Content)
	}
	if got.Model != "gemini-2.0-flash-001" {
		t.Errorf("model = %q", got.Model)
	}
	if got.TokensTotal != 1500 {
		t.Errorf("tokens = %d, want 1500", got.TokensTotal)
	}
	want := (1000*0.10 + 500*0.40) / 1e6
	if math.Abs(got.CostTotal-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", got.CostTotal, want)
	}
}

func TestFromResponse_Empty(t *testing.T) {
	t.Parallel()

	got := fromResponse(&genai.GenerateContentResponse{}, DefaultModel)
	if got.Content != "" {
		t.Errorf("content = %q, want empty", got.Content)
	}
	if got.Model != DefaultModel {
		t.Errorf("model = %q, want requested model", got.Model)
	}
	if got.TokensTotal != 0 || got.CostTotal != 0 {
		t.Errorf("usage = %d/%v, want zero", got.TokensTotal, got.CostTotal)
	}
}

func TestEstimateCost_LitePrefixWins(t *testing.T) {
	t.Parallel()

	lite := estimateCost("gemini-2.0-flash-lite", 1e6, 0)
	if math.Abs(lite-0.075) > 1e-12 {
		t.Errorf("lite cost = %v, want 0.075", lite)
	}
	if got := estimateCost("unknown", 10, 10); got != 0 {
		t.Errorf("unknown cost = %v", got)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
