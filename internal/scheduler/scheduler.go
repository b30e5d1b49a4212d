package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/pipeline"
)

// Runner triggers one curation run; satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (pipeline.RunResult, error)
}

// Scheduler fires curation runs on a cron spec. Overlapping runs are
// skipped: a slow run must not pile up siblings behind it.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	log     logger.Logger
	running atomic.Bool
}

// New builds a Scheduler for the given cron spec (standard 5-field syntax).
func New(spec string, runner Runner, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		log:    logger.Ensure(log),
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous curation run still in flight, skipping")
		return
	}
	defer s.running.Store(false)

	started := time.Now()
	result, err := s.runner.Run(context.Background())
	if err != nil {
		s.log.ErrorObj("scheduled curation run failed", "cron_run_error", map[string]any{
			"error": err.Error(),
		})
		return
	}

	s.log.InfoObj("scheduled curation run finished", "cron_run_ok", map[string]any{
		"count":   result.Count,
		"elapsed": time.Since(started).String(),
	})
}
