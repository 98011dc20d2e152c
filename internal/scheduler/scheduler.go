// Package scheduler runs background jobs on cron schedules: the evaluation
// cycle and the nightly backup. Scheduling decides WHEN a cycle runs; the
// rotation service decides everything else, and its internal cycle mutex
// guarantees overlapping triggers never interleave snapshots.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named background job
type Job interface {
	Name() string
	Run()
}

// Scheduler wraps the cron runner with logging
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a job on the given cron expression
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.log.Info().Str("job", job.Name()).Msg("Job triggered")
		job.Run()
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", job.Name()).Str("schedule", spec).Msg("Job registered")
	return nil
}

// Start begins running scheduled jobs in their own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}
