package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/go-core/log"
)

// Scheduler runs a Job once a day at a fixed wall-clock time.
type Scheduler struct {
	cron   *cron.Cron
	job    *Job
	logger log.Logger
	expr   string
	cancel context.CancelFunc
}

// NewScheduler schedules job daily at hhmm (HH:MM) in loc. The job's own
// calendar day follows the same zone.
func NewScheduler(job *Job, hhmm string, loc *time.Location, logger log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	hour, minute, err := parseClock(hhmm)
	if err != nil {
		return nil, err
	}
	job.SetLocation(loc)
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		job:    job,
		logger: logger,
		expr:   fmt.Sprintf("%d %d * * *", minute, hour),
	}, nil
}

// Start registers the daily entry and starts the cron loop. Runs use a
// context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if _, err := s.cron.AddFunc(s.expr, func() {
		_, _ = s.job.Run(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("add cron entry: %w", err)
	}
	s.cron.Start()

	next := s.cron.Entries()[0].Next
	s.logger.Info(ctx, "daily scan scheduled", "cron", s.expr, "timezone", s.job.loc.String(), "next_run", next)
	return nil
}

// Stop cancels any in-flight run and waits for it to return or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scan to stop: %w", ctx.Err())
	}
}

// parseClock reads HH:MM on a 24 hour clock.
func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid scan time %q: must be HH:MM", s)
	}
	hour, herr := strconv.Atoi(h)
	minute, merr := strconv.Atoi(m)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid scan time %q: hour 0-23, minute 0-59", s)
	}
	return hour, minute, nil
}
