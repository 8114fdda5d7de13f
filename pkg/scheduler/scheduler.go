// Package scheduler runs a small set of named, independently-paced
// background jobs: contract-state sync, bundler-activity validation,
// periodic pruning, and the optional status mirror push. Each job loops forever on its own goroutine; a panic in
// one job is recovered and logged without affecting the others.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bundlr-network/validator/pkg/metrics"
)

// JobFunc is one tick of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job pairs a JobFunc with its name and repeat interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Scheduler drives a fixed set of named jobs concurrently.
type Scheduler struct {
	jobs   []Job
	logger *log.Logger
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{logger: log.New(log.Writer(), "[Scheduler] ", log.LstdFlags)}
}

// Add registers job to run once Start is called.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches every registered job on its own goroutine and blocks until
// ctx is cancelled. Each job runs its body, logs the outcome, sleeps for its
// interval (or until ctx is cancelled, whichever comes first), and repeats.
func (s *Scheduler) Start(ctx context.Context) {
	done := make(chan struct{}, len(s.jobs))
	for _, job := range s.jobs {
		go func(job Job) {
			s.runLoop(ctx, job)
			done <- struct{}{}
		}(job)
	}
	for range s.jobs {
		<-done
	}
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.logger.Printf("Task running - %s", job.Name)
		if err := s.runOnce(ctx, job); err != nil {
			s.logger.Printf("Task error - %s with %v", job.Name, err)
			metrics.CronJobRuns.WithLabelValues(job.Name, "error").Inc()
		} else {
			s.logger.Printf("Task finished - %s", job.Name)
			metrics.CronJobRuns.WithLabelValues(job.Name, "ok").Inc()
		}

		s.logger.Printf("Task sleeping for %s - %s", job.Interval, job.Name)
		select {
		case <-ctx.Done():
			return
		case <-time.After(job.Interval):
		}
	}
}

// runOnce invokes job.Run, converting a panic into an error so one job's
// crash never takes down the scheduler's other jobs.
func (s *Scheduler) runOnce(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
