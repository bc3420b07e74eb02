package engine

import (
	"context"
	"log/slog"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// RunCleanupSweep deletes completed instances whose completion timestamp is
// older than the engine's retention window. Running, paused, failed and
// cancelled instances are never deleted regardless of age.
func (e *Engine) RunCleanupSweep(ctx context.Context) {
	if e.retention <= 0 {
		return
	}
	cutoff := e.clock.Now().Add(-e.retention)

	var expired []string
	for _, entry := range e.entries() {
		entry.mu.Lock()
		inst := entry.inst
		if inst.Status == domain.StatusCompleted && inst.CompletedAt != nil && inst.CompletedAt.Before(cutoff) {
			expired = append(expired, inst.ID)
		}
		entry.mu.Unlock()
	}
	if len(expired) == 0 {
		return
	}

	e.mu.Lock()
	for _, id := range expired {
		delete(e.instances, id)
	}
	e.mu.Unlock()

	slog.Info("Cleanup sweep reclaimed completed workflows", "count", len(expired), "retention", e.retention.String())
}
