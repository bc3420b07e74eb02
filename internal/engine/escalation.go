package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// RunEscalationSweep walks every running instance, compares time in current
// state against the state's timeouts and the workflow level escalation
// rules, and fires each breached timeout exactly once. Task due dates are
// checked in the same pass. The scheduler calls this periodically; tests
// call it directly with a fake clock.
func (e *Engine) RunEscalationSweep(ctx context.Context) {
	now := e.clock.Now()

	for _, entry := range e.entries() {
		entry.mu.Lock()
		inst := entry.inst
		if inst.Status != domain.StatusRunning {
			after := e.markOverdueTasks(inst, now)
			entry.mu.Unlock()
			for _, fn := range after {
				fn()
			}
			continue
		}
		def, ok := e.registry.get(inst.DefinitionID)
		if !ok {
			entry.mu.Unlock()
			continue
		}

		var after []func()
		bh := def.Settings.BusinessHours

		if state, ok := def.StateByID(inst.CurrentState); ok {
			inState := bh.Elapsed(inst.EnteredCurrentStateAt(), now)
			for i, timeout := range state.Timeouts {
				key := fmt.Sprintf("%s#%d", state.ID, i)
				if inst.FiredTimeouts[key] || inState < timeout.AsDuration() {
					continue
				}
				inst.FiredTimeouts[key] = true
				after = append(after, e.fireTimeout(ctx, inst, def, timeout)...)
				if inst.Status != domain.StatusRunning {
					break
				}
			}
		}

		if inst.Status == domain.StatusRunning {
			sinceStart := bh.Elapsed(inst.CreatedAt, now)
			for i, rule := range def.Settings.EscalationRules {
				key := fmt.Sprintf("rule#%d", i)
				if inst.FiredTimeouts[key] || sinceStart < rule.AsDuration() {
					continue
				}
				if rule.Condition != nil {
					condCtx := ConditionContext{Instance: inst, Actor: domain.SystemParticipant, Now: now}
					if err := e.conditions.evaluateAll("escalation", []domain.Condition{*rule.Condition}, condCtx); err != nil {
						continue
					}
				}
				inst.FiredTimeouts[key] = true
				after = append(after, e.fireTimeout(ctx, inst, def, domain.StateTimeout{
					Action: rule.Action, Target: rule.Target, Message: rule.Message,
				})...)
				if inst.Status != domain.StatusRunning {
					break
				}
			}
		}

		after = append(after, e.markOverdueTasks(inst, now)...)
		entry.mu.Unlock()

		for _, fn := range after {
			fn()
		}
	}
}

// fireTimeout applies one breached timeout to a locked instance and returns
// the post-commit work to run after the lock is released.
func (e *Engine) fireTimeout(ctx context.Context, inst *domain.WorkflowInstance, def *domain.WorkflowDefinition, timeout domain.StateTimeout) []func() {
	now := e.clock.Now()

	switch timeout.Action {
	case domain.TimeoutEscalate:
		previous := inst.Assignee
		inst.Assignee = timeout.Target
		inst.UpdatedAt = now
		appendHistory(inst, domain.HistoryEntry{
			Timestamp:   now,
			Action:      domain.HistoryEscalated,
			FromState:   inst.CurrentState,
			ToState:     inst.CurrentState,
			Actor:       domain.SystemParticipant.ID,
			Description: fmt.Sprintf("Escalated to %s: %s", timeout.Target, timeout.Message),
		})
		slog.Warn("Workflow escalated", "workflow_id", inst.ID, "state", inst.CurrentState,
			"from_assignee", previous, "to_assignee", timeout.Target)
		snapshot := inst.Clone()
		return []func(){func() {
			e.bus.emit(domain.WorkflowEvent{
				Type:       domain.EventWorkflowEscalated,
				InstanceID: snapshot.ID,
				Actor:      domain.SystemParticipant.ID,
				Timestamp:  now,
				Data:       map[string]any{"target": timeout.Target, "message": timeout.Message, "state": snapshot.CurrentState},
			})
		}}

	case domain.TimeoutNotify:
		snapshot := inst.Clone()
		action := domain.Action{
			ID:     "timeout-notify",
			Type:   domain.ActionNotification,
			Params: map[string]any{"target": timeout.Target, "message": timeout.Message},
		}
		return []func(){func() { e.dispatcher.run(ctx, snapshot, []domain.Action{action}) }}

	case domain.TimeoutAutoApprove, domain.TimeoutAutoReject:
		decision := "approved"
		if timeout.Action == domain.TimeoutAutoReject {
			decision = "rejected"
		}
		inst.Approvals = append(inst.Approvals, domain.Approval{
			Decision:  decision,
			Actor:     domain.SystemParticipant.ID,
			Comment:   timeout.Message,
			Timestamp: now,
		})
		appendHistory(inst, domain.HistoryEntry{
			Timestamp:   now,
			Action:      domain.HistoryApprovalRecorded,
			Actor:       domain.SystemParticipant.ID,
			Description: fmt.Sprintf("Timeout %s: %s", timeout.Action, timeout.Message),
		})
		if timeout.Transition == "" {
			return nil
		}
		// The synthesized transition runs under the lock already held by the
		// sweep, the same mutation discipline as a human actor.
		sysActor := domain.SystemParticipant
		if t, ok := def.TransitionByID(timeout.Transition, inst.CurrentState); ok {
			sysActor.Role = t.RequiredRole
			sysActor.Permissions = t.RequiredPermissions
		}
		after, err := e.applyTransition(ctx, inst, timeout.Transition, sysActor, nil)
		if err != nil {
			slog.Error("Timeout transition failed", "workflow_id", inst.ID,
				"transition", timeout.Transition, "action", timeout.Action, "error", err)
			return nil
		}
		return []func(){after}
	}

	slog.Warn("Unknown timeout action", "workflow_id", inst.ID, "action", timeout.Action)
	return nil
}

// markOverdueTasks flips unfinished tasks past their due date to overdue and
// returns the events to publish once the instance lock is released. Tasks
// never auto-complete; overdue is a visibility status.
func (e *Engine) markOverdueTasks(inst *domain.WorkflowInstance, now time.Time) []func() {
	var after []func()
	for i := range inst.Tasks {
		task := &inst.Tasks[i]
		if task.DueAt == nil || now.Before(*task.DueAt) {
			continue
		}
		if task.Status != domain.TaskPending && task.Status != domain.TaskInProgress {
			continue
		}
		task.Status = domain.TaskOverdue
		appendHistory(inst, domain.HistoryEntry{
			Timestamp:   now,
			Action:      domain.HistoryTaskOverdue,
			Description: fmt.Sprintf("Task %q is overdue", task.Name),
		})
		evt := domain.WorkflowEvent{
			Type:       domain.EventTaskOverdue,
			InstanceID: inst.ID,
			Timestamp:  now,
			Data:       map[string]any{"taskId": task.ID, "name": task.Name, "assignee": task.Assignee},
		}
		after = append(after, func() { e.bus.emit(evt) })
	}
	return after
}
