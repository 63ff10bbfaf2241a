// Package scheduler runs the maintenance jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/metrics"
)

// JobFunc is one maintenance hook.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a crontab table. Every run gets its own timeout.
type Scheduler struct {
	ctab    *crontab.Crontab
	timeout time.Duration
	jobs    map[string]JobFunc
	log     zerolog.Logger
}

// New creates a scheduler whose jobs are cancelled after timeout.
func New(timeout time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		ctab:    crontab.New(),
		timeout: timeout,
		jobs:    make(map[string]JobFunc),
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers fn under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if spec == "" {
		s.log.Info().Str("job", name).Msg("job disabled")
		return nil
	}
	if err := s.ctab.AddJob(spec, func() { s.run(name, fn) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = fn
	s.log.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// RunNow runs a scheduled job immediately.
func (s *Scheduler) RunNow(name string) error {
	fn, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(name, fn)
}

// Run blocks until ctx is done and then stops the table.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.ctab.Shutdown()
	return nil
}

func (s *Scheduler) run(name string, fn JobFunc) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		metrics.RecordJob(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
	}()
	return fn(ctx)
}
