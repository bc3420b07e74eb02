package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the engine's two periodic sweeps: escalation and cleanup.
// Both are plain scans over the instance map, cheap at this engine's target
// scale.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
}

// NewScheduler wires the sweeps onto a cron runner at the given intervals.
func NewScheduler(eng *Engine, escalationEvery, cleanupEvery time.Duration) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", escalationEvery), func() {
		eng.RunEscalationSweep(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule escalation sweep: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cleanupEvery), func() {
		eng.RunCleanupSweep(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule cleanup sweep: %w", err)
	}
	return &Scheduler{engine: eng, cron: c}, nil
}

// Start begins the background sweeps.
func (s *Scheduler) Start() {
	slog.Info("Background scheduler starting")
	s.cron.Start()
}

// Stop halts scheduling and returns once in-flight sweeps have finished.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Background scheduler stopped")
}
