// Package pacer runs tasks sequentially behind a token bucket so callers of
// rate-limited upstreams can pace themselves without mixing timing into
// business logic.
package pacer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Task is one unit of paced work.
type Task func(ctx context.Context) error

// Queue runs tasks one at a time, taking a token before each.
type Queue struct {
	limiter *rate.Limiter
}

// New returns a queue that admits one task per interval with the given
// burst. A non-positive interval disables pacing.
func New(interval time.Duration, burst int) *Queue {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Queue{limiter: rate.NewLimiter(limit, burst)}
}

// Run executes tasks in order. A failing task is reported to onErr and the
// queue moves on to the next one; only context cancellation stops the run,
// in which case the remaining tasks are not started.
func (q *Queue) Run(ctx context.Context, tasks []Task, onErr func(i int, err error)) error {
	for i, task := range tasks {
		if err := q.wait(ctx); err != nil {
			return fmt.Errorf("pacer: waiting for task %d of %d: %w", i+1, len(tasks), err)
		}
		if err := task(ctx); err != nil && onErr != nil {
			onErr(i, err)
		}
	}
	return nil
}

func (q *Queue) wait(ctx context.Context) error {
	if q == nil || q.limiter == nil {
		return ctx.Err()
	}
	return q.limiter.Wait(ctx)
}
