// Package scan runs the daily detect-and-generate pass over every user with a
// stored natal chart.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/transit"
)

var tracer = otel.Tracer("github.com/linnemanlabs/orrery/internal/scan")

// Users lists the users eligible for a scan.
type Users interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Detector finds transits for one user.
type Detector interface {
	Detect(ctx context.Context, userID string, date time.Time, opts transit.Options) ([]transit.Transit, error)
}

// Generator turns detected transits into stored alerts.
type Generator interface {
	GenerateBatch(ctx context.Context, userID string, transits []transit.Transit, opts alert.Options) ([]*alert.Alert, error)
}

// Result summarises one scan run.
type Result struct {
	Users    int
	Transits int
	Alerts   int
	Failed   int
	Skipped  bool
}

// Job scans every user once per Run. Concurrent calls to Run are skipped
// rather than queued.
type Job struct {
	users      Users
	detector   Detector
	generator  Generator
	logger     log.Logger
	hooks      Hooks
	loc        *time.Location
	detectOpts transit.Options
	genOpts    alert.Options
	now        func() time.Time

	running sync.Mutex
}

// NewJob creates a scan job. Detection keeps medium significance and above.
func NewJob(users Users, detector Detector, generator Generator, logger log.Logger, hooks Hooks) *Job {
	if logger == nil {
		logger = log.Nop()
	}
	return &Job{
		users:      users,
		detector:   detector,
		generator:  generator,
		logger:     logger,
		hooks:      hooks,
		loc:        time.UTC,
		detectOpts: transit.Options{SignificanceFilter: transit.Medium},
		now:        time.Now,
	}
}

// SetLocation sets the zone used to decide which calendar day a run scans.
func (j *Job) SetLocation(loc *time.Location) {
	if loc != nil {
		j.loc = loc
	}
}

// SetOptions overrides the detection and generation options used per user.
func (j *Job) SetOptions(detect transit.Options, generate alert.Options) {
	j.detectOpts = detect
	j.genOpts = generate
}

// date is today's calendar day in the job's zone, as midnight UTC.
func (j *Job) date() time.Time {
	y, m, d := j.now().In(j.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Run scans every user. A failure for one user is logged and counted and
// does not stop the run; only listing users or cancellation ends it early.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if !j.running.TryLock() {
		j.logger.Warn(ctx, "scan already running, skipping")
		return Result{Skipped: true}, nil
	}
	defer j.running.Unlock()

	start := time.Now()
	date := j.date()

	ctx, span := tracer.Start(ctx, "scan.Run")
	defer span.End()
	span.SetAttributes(attribute.String("orrery.scan.date", date.Format(time.DateOnly)))

	var res Result
	var runErr error
	defer func() {
		if j.hooks.OnRun != nil {
			j.hooks.OnRun(&RunEvent{
				Users:    res.Users,
				Transits: res.Transits,
				Alerts:   res.Alerts,
				Failed:   res.Failed,
				Err:      runErr,
				Duration: time.Since(start).Seconds(),
			})
		}
	}()

	ids, err := j.users.ListUserIDs(ctx)
	if err != nil {
		runErr = fmt.Errorf("list users: %w", err)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "list users failed")
		return res, runErr
	}

	j.logger.Info(ctx, "scan started", "date", date.Format(time.DateOnly), "users", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res.Users++
		transits, alerts, err := j.scanUser(ctx, id, date)
		res.Transits += transits
		res.Alerts += alerts
		if err != nil {
			res.Failed++
			j.logger.Error(ctx, err, "scan failed for user", "user_id", id)
		}
	}

	span.SetAttributes(
		attribute.Int("orrery.scan.users", res.Users),
		attribute.Int("orrery.scan.alerts", res.Alerts),
		attribute.Int("orrery.scan.failed", res.Failed),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "scan interrupted")
	}

	j.logger.Info(ctx, "scan finished",
		"users", res.Users,
		"transits", res.Transits,
		"alerts", res.Alerts,
		"failed", res.Failed,
		"duration", time.Since(start),
	)
	return res, runErr
}

func (j *Job) scanUser(ctx context.Context, userID string, date time.Time) (int, int, error) {
	transits, err := j.detector.Detect(ctx, userID, date, j.detectOpts)
	if err != nil {
		return 0, 0, fmt.Errorf("detect: %w", err)
	}
	if len(transits) == 0 {
		return 0, 0, nil
	}
	alerts, err := j.generator.GenerateBatch(ctx, userID, transits, j.genOpts)
	if err != nil {
		return len(transits), len(alerts), fmt.Errorf("generate: %w", err)
	}
	return len(transits), len(alerts), nil
}
