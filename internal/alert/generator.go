package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/transit"
)

var tracer = otel.Tracer("github.com/linnemanlabs/orrery/internal/alert")

// Generator turns one transit into one persisted alert.
type Generator struct {
	provider Provider
	profiles ProfileStore
	store    Store
	logger   log.Logger
	hooks    Hooks
	model    string
	timeout  time.Duration
	now      func() time.Time
}

// NewGenerator creates a generator. provider and profiles may be nil; a nil
// provider always yields fallback copy.
func NewGenerator(provider Provider, profiles ProfileStore, store Store, logger log.Logger, hooks Hooks) *Generator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{
		provider: provider,
		profiles: profiles,
		store:    store,
		logger:   logger,
		hooks:    hooks,
		now:      time.Now,
	}
}

// SetModel overrides the provider's default model for alert copy.
func (g *Generator) SetModel(model string) { g.model = model }

// SetTimeout bounds each provider call. Zero leaves the caller's deadline in charge.
func (g *Generator) SetTimeout(d time.Duration) { g.timeout = d }

// Generate produces and stores an alert for tr. Provider failures are
// absorbed into fallback copy; the only errors returned are invalid input
// and ErrPersist when even the fallback alert cannot be stored.
func (g *Generator) Generate(ctx context.Context, userID string, tr *transit.Transit, opts Options) (*Alert, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("%w: transit is required", ErrInvalidOptions)
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	ctx, span := tracer.Start(ctx, "alert.Generate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("transit.type", string(tr.Type)),
			attribute.String("transit.significance", string(tr.Significance)),
		),
	)
	defer span.End()

	start := time.Now()
	ev := &GenerateEvent{UserID: userID, Severity: string(tr.Significance)}
	defer func() {
		ev.Duration = time.Since(start).Seconds()
		if g.hooks.OnGenerate != nil {
			g.hooks.OnGenerate(ev)
		}
	}()

	L := g.logger.With("user_id", userID, "transit_type", tr.Type, "significance", tr.Significance)

	profile := g.profile(ctx, userID)
	content := g.compose(ctx, userID, tr, profile, &opts)

	a, err := g.persist(ctx, userID, tr, content)
	if err != nil && content.Kind == KindGenerated {
		L.Warn(ctx, "storing generated alert failed, retrying with fallback copy", "err", err)
		content = fallbackContent(tr, &opts, ReasonPersistError)
		a, err = g.persist(ctx, userID, tr, content)
	}

	ev.Kind = content.Kind
	ev.FallbackReason = content.Provenance.FallbackReason

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		L.Error(ctx, err, "failed to store alert")
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	ev.Persisted = true
	span.SetAttributes(
		attribute.String("alert.id", a.ID),
		attribute.String("alert.source", string(content.Kind)),
	)
	L.Info(ctx, "alert generated", "alert_id", a.ID, "source", content.Kind)
	return a, nil
}

// profile fetches personalization context. Failures degrade to no profile.
func (g *Generator) profile(ctx context.Context, userID string) *Profile {
	if g.profiles == nil {
		return nil
	}
	p, ok, err := g.profiles.Profile(ctx, userID)
	if err != nil {
		g.logger.Warn(ctx, "profile lookup failed, continuing without it", "user_id", userID, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return p
}

func (g *Generator) persist(ctx context.Context, userID string, tr *transit.Transit, content Content) (*Alert, error) {
	if g.store == nil {
		return nil, errors.New("no alert store configured")
	}
	now := g.now().UTC()
	snapshot := *tr
	snapshot.Planets = slices.Clone(tr.Planets)
	a := &Alert{
		ID:        ulid.Make().String(),
		UserID:    userID,
		AlertType: TypeTransit,
		Title:     Title(tr),
		Message:   content.Text,
		Severity:  tr.Significance,
		Metadata: Metadata{
			Transit:    snapshot,
			Generation: content.Provenance,
			Fallback:   content.Kind == KindFallback,
		},
		ExpiresAt: transit.ExpirationFrom(tr.Duration, now),
		CreatedAt: now,
	}
	if err := g.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
