package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/pacer"
	"github.com/linnemanlabs/orrery/internal/transit"
)

// RecentWindow is the trailing window counted as recent in Stats.
const RecentWindow = 7 * 24 * time.Hour

// Service is the business boundary for alert operations.
type Service struct {
	gen    *Generator
	store  Store
	queue  *pacer.Queue
	logger log.Logger
	hooks  Hooks
	now    func() time.Time
}

// NewService creates an alert service. A nil queue runs batches unpaced.
func NewService(gen *Generator, store Store, queue *pacer.Queue, logger log.Logger, hooks Hooks) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		gen:    gen,
		store:  store,
		queue:  queue,
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
	}
}

// Generate produces and stores one alert.
func (s *Service) Generate(ctx context.Context, userID string, tr *transit.Transit, opts Options) (*Alert, error) {
	return s.gen.Generate(ctx, userID, tr, opts)
}

// GenerateBatch generates alerts for transits one at a time through the
// pacing queue. Every transit is validated before any work starts. An item
// that fails is logged and skipped. The returned
// alerts keep input order. If ctx ends mid-batch the alerts already stored
// are returned together with the context error.
func (s *Service) GenerateBatch(ctx context.Context, userID string, transits []transit.Transit, opts Options) ([]*Alert, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for i := range transits {
		if err := transits[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: transit %d: %w", ErrInvalidOptions, i, err)
		}
	}

	start := time.Now()
	L := s.logger.With("user_id", userID, "batch_size", len(transits))

	slots := make([]*Alert, len(transits))
	tasks := make([]pacer.Task, len(transits))
	for i := range transits {
		tasks[i] = func(ctx context.Context) error {
			a, err := s.gen.Generate(ctx, userID, &transits[i], opts)
			if err != nil {
				return err
			}
			slots[i] = a
			return nil
		}
	}

	failed := 0
	runErr := s.queue.Run(ctx, tasks, func(i int, err error) {
		failed++
		L.Error(ctx, err, "batch item failed, skipping", "index", i, "transit_type", transits[i].Type)
	})

	out := make([]*Alert, 0, len(transits))
	for _, a := range slots {
		if a != nil {
			out = append(out, a)
		}
	}

	if s.hooks.OnBatch != nil {
		s.hooks.OnBatch(&BatchEvent{
			UserID:    userID,
			Requested: len(transits),
			Produced:  len(out),
			Failed:    failed,
			Duration:  time.Since(start).Seconds(),
		})
	}

	if runErr != nil {
		L.Warn(ctx, "batch interrupted", "produced", len(out), "err", runErr)
		return out, runErr
	}
	L.Info(ctx, "batch complete", "produced", len(out), "failed", failed)
	return out, nil
}

// List returns the user's transit alerts. With activeOnly set, alerts whose
// expiry has passed are omitted.
func (s *Service) List(ctx context.Context, userID string, activeOnly bool) ([]*Alert, error) {
	alerts, err := s.store.List(ctx, userID, TypeTransit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if !activeOnly {
		return alerts, nil
	}
	now := s.now()
	out := make([]*Alert, 0, len(alerts))
	for _, a := range alerts {
		if !a.Expired(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Stats aggregates the user's transit alerts by transit type, by severity,
// and by whether they were created within RecentWindow.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	alerts, err := s.store.List(ctx, userID, TypeTransit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	cutoff := s.now().Add(-RecentWindow)
	st := &Stats{
		Total:      len(alerts),
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, a := range alerts {
		st.ByType[string(a.Metadata.Transit.Type)]++
		st.BySeverity[string(a.Severity)]++
		if a.CreatedAt.After(cutoff) {
			st.Recent++
		}
	}
	return st, nil
}
