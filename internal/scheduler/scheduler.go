// Package scheduler runs named background jobs on fixed intervals.
// Schedules support only the form "@every <duration>" (e.g., "@every 5m").
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Job is a periodic task. With Singleton set, a tick is skipped while the
// previous run of the same job is still active.
type Job struct {
	Name      string
	Schedule  string
	Run       func(ctx context.Context)
	Singleton bool

	// guarded via atomic
	running atomic.Bool
}

// parseEvery parses schedules of the form "@every <duration>".
func parseEvery(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@every ") {
		return 0, fmt.Errorf("unsupported schedule: %s (only @every <duration> supported)", expr)
	}
	durStr := strings.TrimSpace(strings.TrimPrefix(expr, "@every "))
	d, err := time.ParseDuration(durStr)
	if err != nil {
		return 0, fmt.Errorf("invalid @every duration: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("@every duration must be > 0")
	}
	return d, nil
}

func (j *Job) validate() error {
	if j.Name == "" {
		return errors.New("job requires a name")
	}
	if j.Schedule == "" {
		return errors.New("job requires a schedule")
	}
	if j.Run == nil {
		return errors.New("job requires a run function")
	}
	return nil
}

// Scheduler owns a set of jobs and their ticker goroutines. Use Start to
// launch the background tickers and Stop to cancel them.
type Scheduler struct {
	jobs []*Job
	quit chan struct{}
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. Jobs default to Singleton.
func (s *Scheduler) Add(job *Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	if _, err := parseEvery(job.Schedule); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	job.Singleton = true
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches all job loops. The context is passed to every run; loops
// also end when it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.quit != nil {
		return errors.New("scheduler already started")
	}
	s.quit = make(chan struct{})
	for _, j := range s.jobs {
		d, err := parseEvery(j.Schedule)
		if err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		go s.runJob(ctx, j, d)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j *Job, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if j.Singleton {
				// mark running; if already true, skip this tick
				if !j.running.CompareAndSwap(false, true) {
					continue
				}
			} else {
				j.running.Store(true)
			}
			// run off the ticker goroutine so a slow job never delays its siblings
			go func(j *Job) {
				defer j.running.Store(false)
				j.Run(ctx)
			}(j)
		}
	}
}

// Stop cancels all job loops. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.quit == nil {
		return
	}
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}
