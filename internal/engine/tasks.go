package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// TaskSpec describes a human work item to attach to an instance.
type TaskSpec struct {
	Name             string
	Description      string
	Assignee         string
	DueAt            *time.Time
	ExpectedDuration time.Duration
}

// CreateTask attaches a pending task to an instance. Task lifecycle is
// independent of state transitions; completing a task never moves the state
// machine by itself.
func (e *Engine) CreateTask(ctx context.Context, instanceID string, spec TaskSpec) (string, error) {
	entry, ok := e.entry(instanceID)
	if !ok {
		return "", &NotFoundError{Kind: "instance", ID: instanceID}
	}

	entry.mu.Lock()
	now := e.clock.Now()
	task := domain.WorkflowTask{
		ID:               uuid.NewString(),
		InstanceID:       instanceID,
		Name:             spec.Name,
		Description:      spec.Description,
		Assignee:         spec.Assignee,
		Status:           domain.TaskPending,
		CreatedAt:        now,
		DueAt:            spec.DueAt,
		ExpectedDuration: spec.ExpectedDuration,
	}
	entry.inst.Tasks = append(entry.inst.Tasks, task)
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryTaskCreated,
		Description: fmt.Sprintf("Task %q created for %s", spec.Name, spec.Assignee),
	})
	entry.mu.Unlock()

	slog.Info("Task created", "workflow_id", instanceID, "task_id", task.ID, "assignee", spec.Assignee)
	e.bus.emit(domain.WorkflowEvent{
		Type:       domain.EventTaskCreated,
		InstanceID: instanceID,
		Timestamp:  now,
		Data:       map[string]any{"taskId": task.ID, "name": spec.Name, "assignee": spec.Assignee},
	})
	return task.ID, nil
}

// StartTask moves a pending task to in_progress and stamps StartedAt.
func (e *Engine) StartTask(ctx context.Context, instanceID, taskID string, actor domain.Participant) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	task, ok := entry.inst.TaskByID(taskID)
	if !ok {
		return &NotFoundError{Kind: "task", ID: taskID}
	}
	if task.Status == domain.TaskCompleted || task.Status == domain.TaskCancelled {
		return &AlreadyCompletedError{Kind: "task", ID: taskID}
	}
	now := e.clock.Now()
	started := now
	task.Status = domain.TaskInProgress
	task.StartedAt = &started
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryTaskStarted,
		Actor:       actor.ID,
		Description: fmt.Sprintf("Task %q started", task.Name),
	})
	return nil
}

// CompleteTask completes a task exactly once: a second call fails with
// AlreadyCompletedError and leaves CompletedAt and ActualDuration untouched.
func (e *Engine) CompleteTask(ctx context.Context, instanceID, taskID string, actor domain.Participant, result map[string]any) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}

	entry.mu.Lock()
	task, ok := entry.inst.TaskByID(taskID)
	if !ok {
		entry.mu.Unlock()
		return &NotFoundError{Kind: "task", ID: taskID}
	}
	if task.Status == domain.TaskCompleted || task.Status == domain.TaskCancelled {
		entry.mu.Unlock()
		return &AlreadyCompletedError{Kind: "task", ID: taskID}
	}

	now := e.clock.Now()
	done := now
	task.Status = domain.TaskCompleted
	task.CompletedAt = &done
	task.ActualDuration = now.Sub(task.CreatedAt)
	if result != nil {
		task.Result = maps.Clone(result)
	}
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryTaskCompleted,
		Actor:       actor.ID,
		Description: fmt.Sprintf("Task %q completed", task.Name),
	})
	taskName := task.Name
	entry.mu.Unlock()

	slog.Info("Task completed", "workflow_id", instanceID, "task_id", taskID, "actor", actor.ID)
	e.bus.emit(domain.WorkflowEvent{
		Type:       domain.EventTaskCompleted,
		InstanceID: instanceID,
		Actor:      actor.ID,
		Timestamp:  now,
		Data:       map[string]any{"taskId": taskID, "name": taskName},
	})
	return nil
}

// CancelTask terminally cancels a task that has not finished yet.
func (e *Engine) CancelTask(ctx context.Context, instanceID, taskID string, actor domain.Participant) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	task, ok := entry.inst.TaskByID(taskID)
	if !ok {
		return &NotFoundError{Kind: "task", ID: taskID}
	}
	if task.Status == domain.TaskCompleted || task.Status == domain.TaskCancelled {
		return &AlreadyCompletedError{Kind: "task", ID: taskID}
	}
	now := e.clock.Now()
	task.Status = domain.TaskCancelled
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryTaskCancelled,
		Actor:       actor.ID,
		Description: fmt.Sprintf("Task %q cancelled", task.Name),
	})
	return nil
}

// ListTasks returns snapshot copies of an instance's tasks.
func (e *Engine) ListTasks(instanceID string) ([]domain.WorkflowTask, error) {
	entry, ok := e.entry(instanceID)
	if !ok {
		return nil, &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.inst.Clone().Tasks, nil
}
