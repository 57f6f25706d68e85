package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/astro"
	"github.com/linnemanlabs/orrery/internal/transit"
)

// mockProvider returns a fixed response or error and records requests.
type mockProvider struct {
	mu   sync.Mutex
	resp *Response
	err  error
	wait bool // block until ctx is done
	reqs []*Request
}

func (m *mockProvider) Send(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.resp, m.err
}

func (m *mockProvider) last() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reqs) == 0 {
		return nil
	}
	return m.reqs[len(m.reqs)-1]
}

// mockStore records created alerts. failWhen, if set, decides per call
// whether Create fails.
type mockStore struct {
	mu       sync.Mutex
	created  []*Alert
	calls    int
	failWhen func(call int, a *Alert) error
	listErr  error
}

func (m *mockStore) Create(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWhen != nil {
		if err := m.failWhen(m.calls, a); err != nil {
			return err
		}
	}
	cp := *a
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockStore) List(_ context.Context, userID, alertType string) ([]*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Alert
	for _, a := range m.created {
		if a.UserID == userID && (alertType == "" || a.AlertType == alertType) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockProfiles struct {
	profile *Profile
	err     error
}

func (m *mockProfiles) Profile(_ context.Context, _ string) (*Profile, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	return m.profile, m.profile != nil, nil
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func saturnSun() *transit.Transit {
	return &transit.Transit{
		Type:          transit.TypeTransitToNatal,
		TransitPlanet: astro.Saturn,
		NatalPlanet:   astro.Sun,
		Angle:         0.4,
		Orb:           3,
		Significance:  transit.Critical,
		Description:   "Transiting Saturn conjunct natal Sun (0.40° from exact)",
		Duration:      "2-3 months",
	}
}

func newTestGenerator(p Provider, store Store) *Generator {
	g := NewGenerator(p, nil, store, log.Nop(), Hooks{})
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestGenerate_ProviderSuccess(t *testing.T) {
	t.Parallel()

	p := &mockProvider{resp: &Response{Content: "  Saturn asks for patience.  ", TokensTotal: 120, CostTotal: 0.002, Model: "claude-3-5-haiku-latest"}}
	store := &mockStore{}
	g := newTestGenerator(p, store)

	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.Message != "Saturn asks for patience." {
		t.Errorf("Message = %q", a.Message)
	}
	if a.Metadata.Fallback {
		t.Error("Fallback = true, want false")
	}
	if a.Metadata.Generation.Source != KindGenerated {
		t.Errorf("Source = %q, want ai", a.Metadata.Generation.Source)
	}
	if a.Metadata.Generation.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Model = %q", a.Metadata.Generation.Model)
	}
	if a.Metadata.Generation.TokensTotal != 120 {
		t.Errorf("TokensTotal = %d, want 120", a.Metadata.Generation.TokensTotal)
	}
	if a.Metadata.Generation.PromptVariant != "critical" {
		t.Errorf("PromptVariant = %q, want critical", a.Metadata.Generation.PromptVariant)
	}
	if a.Title != "\U0001f534 Saturn Transits Your Sun" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.AlertType != TypeTransit || a.UserID != "u1" || a.Severity != transit.Critical {
		t.Errorf("unexpected identity fields: %+v", a)
	}
	if a.ID == "" {
		t.Error("ID is empty")
	}
	if a.Metadata.Transit.NatalPlanet != astro.Sun {
		t.Errorf("metadata transit = %+v", a.Metadata.Transit)
	}
	if len(store.created) != 1 {
		t.Fatalf("stored %d alerts, want 1", len(store.created))
	}

	req := p.last()
	if req.MaxTokens != DefaultMaxLength/3 {
		t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, DefaultMaxLength/3)
	}
	if req.Temperature != generationTemperature {
		t.Errorf("Temperature = %v", req.Temperature)
	}
	if !strings.Contains(req.System, "long-term preparation") {
		t.Errorf("critical system prompt missing emphasis: %q", req.System)
	}
	if req.Context["significance"] != "critical" {
		t.Errorf("Context = %v", req.Context)
	}
}

func TestGenerate_ExpiryFromDuration(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(&mockProvider{resp: &Response{Content: "ok"}}, &mockStore{})
	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !a.ExpiresAt.After(a.CreatedAt) {
		t.Fatalf("ExpiresAt %v not after CreatedAt %v", a.ExpiresAt, a.CreatedAt)
	}
	lo := a.CreatedAt.Add(60 * 24 * time.Hour)
	hi := a.CreatedAt.Add(90 * 24 * time.Hour)
	if a.ExpiresAt.Before(lo) || a.ExpiresAt.After(hi) {
		t.Errorf("ExpiresAt = %v, want within [%v, %v]", a.ExpiresAt, lo, hi)
	}
	if !a.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, fixedNow)
	}
}

func TestGenerate_FallbackOnProviderFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		p      Provider
		reason string
	}{
		{"provider error", &mockProvider{err: errors.New("503 overloaded")}, ReasonProviderError},
		{"empty response", &mockProvider{resp: &Response{Content: "   "}}, ReasonEmptyResponse},
		{"nil response", &mockProvider{}, ReasonEmptyResponse},
		{"no provider", nil, ReasonNoProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mockStore{}
			g := newTestGenerator(tt.p, store)
			a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if !a.Metadata.Fallback {
				t.Error("Fallback = false, want true")
			}
			if a.Message == "" {
				t.Error("fallback message is empty")
			}
			if a.Metadata.Generation.FallbackReason != tt.reason {
				t.Errorf("FallbackReason = %q, want %q", a.Metadata.Generation.FallbackReason, tt.reason)
			}
			if a.Title != "\U0001f534 Saturn Transits Your Sun" {
				t.Errorf("Title = %q", a.Title)
			}
			if len(store.created) != 1 {
				t.Errorf("stored %d alerts, want 1", len(store.created))
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(&mockProvider{wait: true}, &mockStore{})
	g.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not bound the provider call")
	}
	if a.Metadata.Generation.FallbackReason != ReasonTimeout {
		t.Errorf("FallbackReason = %q, want %q", a.Metadata.Generation.FallbackReason, ReasonTimeout)
	}
}

func TestGenerate_PersistRetriesWithFallback(t *testing.T) {
	t.Parallel()

	store := &mockStore{failWhen: func(call int, _ *Alert) error {
		if call == 1 {
			return errors.New("connection reset")
		}
		return nil
	}}
	g := newTestGenerator(&mockProvider{resp: &Response{Content: "ai copy"}}, store)

	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !a.Metadata.Fallback {
		t.Error("Fallback = false, want true after persist retry")
	}
	if a.Metadata.Generation.FallbackReason != ReasonPersistError {
		t.Errorf("FallbackReason = %q", a.Metadata.Generation.FallbackReason)
	}
	if store.calls != 2 {
		t.Errorf("Create calls = %d, want 2", store.calls)
	}
}

func TestGenerate_PersistFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("database down")
	store := &mockStore{failWhen: func(int, *Alert) error { return storeErr }}
	g := newTestGenerator(&mockProvider{resp: &Response{Content: "ai copy"}}, store)

	_, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestGenerate_FallbackPersistFailureNoRetry(t *testing.T) {
	t.Parallel()

	store := &mockStore{failWhen: func(int, *Alert) error { return errors.New("down") }}
	g := newTestGenerator(&mockProvider{err: errors.New("provider down")}, store)

	if _, err := g.Generate(context.Background(), "u1", saturnSun(), Options{}); !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if store.calls != 1 {
		t.Errorf("Create calls = %d, want 1", store.calls)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(&mockProvider{resp: &Response{Content: "x"}}, &mockStore{})
	ctx := context.Background()

	if _, err := g.Generate(ctx, "u1", saturnSun(), Options{Tone: "sarcastic"}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("bad tone: err = %v", err)
	}
	if _, err := g.Generate(ctx, "u1", saturnSun(), Options{MaxLength: -1}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("negative length: err = %v", err)
	}
	if _, err := g.Generate(ctx, "u1", nil, Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("nil transit: err = %v", err)
	}
	bad := saturnSun()
	bad.Significance = "extreme"
	if _, err := g.Generate(ctx, "u1", bad, Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("bad significance: err = %v", err)
	}
}

func TestGenerate_MalformedTransit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(tr *transit.Transit)
	}{
		{"unknown type", func(tr *transit.Transit) { tr.Type = "bogus" }},
		{"negative angle", func(tr *transit.Transit) { tr.Angle = -5 }},
		{"zero orb", func(tr *transit.Transit) { tr.Orb = 0 }},
		{"angle beyond orb", func(tr *transit.Transit) { tr.Angle = 4 }},
		{"aspect without aspect type", func(tr *transit.Transit) { tr.Type = transit.TypeAspect }},
		{"unknown natal planet", func(tr *transit.Transit) { tr.NatalPlanet = "chiron" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mockProvider{resp: &Response{Content: "ok"}}
			store := &mockStore{}
			g := newTestGenerator(p, store)

			tr := saturnSun()
			tt.mutate(tr)
			a, err := g.Generate(context.Background(), "u1", tr, Options{})
			if !errors.Is(err, ErrInvalidOptions) || !errors.Is(err, transit.ErrInvalidTransit) {
				t.Fatalf("err = %v, want ErrInvalidOptions wrapping ErrInvalidTransit", err)
			}
			if a != nil {
				t.Errorf("alert = %+v, want nil", a)
			}
			if len(p.reqs) != 0 || store.calls != 0 {
				t.Errorf("provider calls = %d, Create calls = %d, want 0 and 0", len(p.reqs), store.calls)
			}
		})
	}
}

func TestGenerate_ProfileAndOptionsReachPrompt(t *testing.T) {
	t.Parallel()

	p := &mockProvider{resp: &Response{Content: "ok"}}
	g := NewGenerator(p, &mockProfiles{profile: &Profile{FullName: "Ada", BirthLocation: "London"}}, &mockStore{}, log.Nop(), Hooks{})
	no := false

	_, err := g.Generate(context.Background(), "u1", saturnSun(), Options{
		IncludeRemedies: &no,
		Tone:            ToneCautious,
		MaxLength:       150,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := p.last()
	for _, want := range []string{"Ada", "London", "Tone: cautious", "under 150 characters", "When the influence peaks"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(req.Prompt, "remedy") {
		t.Error("prompt asks for remedies although disabled")
	}
	if req.MaxTokens != 50 {
		t.Errorf("MaxTokens = %d, want 50", req.MaxTokens)
	}
}

func TestGenerate_ProfileErrorIsNonFatal(t *testing.T) {
	t.Parallel()

	p := &mockProvider{resp: &Response{Content: "ok"}}
	g := NewGenerator(p, &mockProfiles{err: errors.New("profile db down")}, &mockStore{}, log.Nop(), Hooks{})

	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.Metadata.Fallback {
		t.Error("profile failure should not force fallback copy")
	}
	if strings.Contains(p.last().Prompt, "Reader's name") {
		t.Error("prompt contains profile fields without a profile")
	}
}

func TestGenerate_ModelOverride(t *testing.T) {
	t.Parallel()

	p := &mockProvider{resp: &Response{Content: "ok"}}
	g := newTestGenerator(p, &mockStore{})
	g.SetModel("gemini-2.0-flash")

	a, err := g.Generate(context.Background(), "u1", saturnSun(), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.last().Model != "gemini-2.0-flash" {
		t.Errorf("request model = %q", p.last().Model)
	}
	if a.Metadata.Generation.Model != "gemini-2.0-flash" {
		t.Errorf("provenance model = %q, want request model when response omits it", a.Metadata.Generation.Model)
	}
}

func TestGenerate_HooksAndSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	var calls []*ProviderCallEvent
	var gens []*GenerateEvent
	hooks := Hooks{
		OnProviderCall: func(e *ProviderCallEvent) { calls = append(calls, e) },
		OnGenerate:     func(e *GenerateEvent) { gens = append(gens, e) },
	}
	g := NewGenerator(&mockProvider{err: errors.New("boom")}, nil, &mockStore{}, log.Nop(), hooks)

	if _, err := g.Generate(context.Background(), "u1", saturnSun(), Options{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(calls) != 1 || !calls[0].Failed {
		t.Errorf("provider call events = %+v", calls)
	}
	if len(gens) != 1 {
		t.Fatalf("generate events = %d, want 1", len(gens))
	}
	if gens[0].Kind != KindFallback || gens[0].FallbackReason != ReasonProviderError || !gens[0].Persisted {
		t.Errorf("generate event = %+v", gens[0])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "alert.Generate" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var source string
	for _, kv := range spans[0].Attributes {
		if kv.Key == "alert.source" {
			source = kv.Value.AsString()
		}
	}
	if source != string(KindFallback) {
		t.Errorf("alert.source = %q, want fallback", source)
	}
}
