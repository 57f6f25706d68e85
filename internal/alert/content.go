package alert

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/orrery/internal/transit"
)

// ContentKind distinguishes provider copy from deterministic fallback copy.
type ContentKind string

const (
	KindGenerated ContentKind = "ai"
	KindFallback  ContentKind = "fallback"
)

// Fallback reasons recorded in provenance and reported to hooks.
const (
	ReasonNoProvider    = "no_provider"
	ReasonTimeout       = "timeout"
	ReasonProviderError = "provider_error"
	ReasonEmptyResponse = "empty_response"
	ReasonPersistError  = "persist_error"
)

// generationTemperature is the sampling temperature for alert copy.
const generationTemperature = 0.7

// Content is the message body for an alert. Every Content has non-empty Text.
type Content struct {
	Kind       ContentKind
	Text       string
	Provenance Provenance
}

// compose asks the provider for copy and substitutes fallback copy on any
// failure. It never returns empty Text.
func (g *Generator) compose(ctx context.Context, userID string, tr *transit.Transit, profile *Profile, opts *Options) Content {
	system, variant := systemPrompt(tr.Significance)

	if g.provider == nil {
		return fallbackContent(tr, opts, ReasonNoProvider)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := &Request{
		Prompt:      buildPrompt(tr, profile, opts),
		System:      system,
		Model:       g.model,
		Temperature: generationTemperature,
		MaxTokens:   opts.maxTokens(),
		Context: map[string]string{
			"user_id":        userID,
			"transit_type":   string(tr.Type),
			"significance":   string(tr.Significance),
			"prompt_variant": variant,
		},
	}

	start := time.Now()
	resp, err := g.provider.Send(callCtx, req)
	elapsed := time.Since(start).Seconds()

	if g.hooks.OnProviderCall != nil {
		ev := &ProviderCallEvent{Model: g.model, Duration: elapsed, Failed: err != nil}
		if resp != nil {
			ev.Model = resp.Model
			ev.TokensTotal = resp.TokensTotal
			ev.CostTotal = resp.CostTotal
		}
		g.hooks.OnProviderCall(ev)
	}

	L := g.logger.With("user_id", userID, "transit_type", tr.Type, "prompt_variant", variant)

	if err != nil {
		reason := ReasonProviderError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		L.Warn(ctx, "alert generation failed, using fallback copy", "reason", reason, "err", err)
		return fallbackContent(tr, opts, reason)
	}

	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Content)
	}
	if text == "" {
		L.Warn(ctx, "alert generation returned no text, using fallback copy")
		return fallbackContent(tr, opts, ReasonEmptyResponse)
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return Content{
		Kind: KindGenerated,
		Text: text,
		Provenance: Provenance{
			Source:         KindGenerated,
			Model:          model,
			PromptVariant:  variant,
			Tone:           opts.tone(),
			TokensTotal:    resp.TokensTotal,
			CostTotal:      resp.CostTotal,
			LatencySeconds: elapsed,
		},
	}
}

func fallbackContent(tr *transit.Transit, opts *Options, reason string) Content {
	return Content{
		Kind: KindFallback,
		Text: fallbackMessage(tr),
		Provenance: Provenance{
			Source:         KindFallback,
			PromptVariant:  "fallback",
			Tone:           opts.tone(),
			FallbackReason: reason,
		},
	}
}
