package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
)

// Dispatcher pushes notification jobs through the messenger, throttled by
// a shared token bucket and retried with exponential backoff. Every job
// ends the cycle as SENT or FAILED; nothing is dropped silently.
type Dispatcher struct {
	messenger core.Messenger
	limiter   *TokenBucket
	attempts  int
	log       logger.Logger

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. attempts is the total number of
// delivery tries per job, including the first.
func NewDispatcher(messenger core.Messenger, limiter *TokenBucket, attempts int, log logger.Logger) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}

	return &Dispatcher{
		messenger: messenger,
		limiter:   limiter,
		attempts:  attempts,
		log:       log,
		sleep:     sleepContext,
	}
}

// Dispatch delivers all jobs concurrently under the shared limiter and
// returns them with terminal statuses in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []core.NotificationJob) []core.NotificationJob {
	results := make([]core.NotificationJob, len(jobs))

	wg := sync.WaitGroup{}
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job core.NotificationJob) {
			defer wg.Done()
			results[i] = d.deliver(ctx, job)
		}(i, job)
	}
	wg.Wait()

	return results
}

// deliver runs the retry loop for one job.
func (d *Dispatcher) deliver(ctx context.Context, job core.NotificationJob) core.NotificationJob {
	retry := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for job.Attempts < d.attempts {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.WithError(err).WithField("rule", job.RuleID).
				Error("dispatch aborted waiting for rate limiter")
			job.Status = core.JobFailed
			return job
		}

		job.Attempts++
		err := d.messenger.Send(ctx, job.Message)
		if err == nil {
			job.Status = core.JobSent
			d.log.WithFields(map[string]any{
				"rule":     job.RuleID,
				"pair":     job.Pair,
				"attempts": job.Attempts,
			}).Info("alert delivered")
			return job
		}

		d.log.WithError(err).WithFields(map[string]any{
			"rule":    job.RuleID,
			"attempt": job.Attempts,
		}).Warn("alert delivery failed")

		if job.Attempts >= d.attempts {
			break
		}

		wait := retry.Duration()
		var rateLimited *core.RateLimitError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > wait {
			wait = rateLimited.RetryAfter
		}

		if err := d.sleep(ctx, wait); err != nil {
			break
		}
	}

	job.Status = core.JobFailed
	d.log.WithFields(map[string]any{
		"rule":     job.RuleID,
		"pair":     job.Pair,
		"attempts": job.Attempts,
	}).Error("alert delivery exhausted retries")
	return job
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
