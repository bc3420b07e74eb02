package domain

import "time"

// EventType identifies a published engine event.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventStateChanged      EventType = "state_changed"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowPaused    EventType = "workflow_paused"
	EventWorkflowResumed   EventType = "workflow_resumed"
	EventWorkflowCancelled EventType = "workflow_cancelled"
	EventWorkflowEscalated EventType = "workflow_escalated"
	EventTaskCreated       EventType = "task_created"
	EventTaskCompleted     EventType = "task_completed"
	EventTaskOverdue       EventType = "task_overdue"
	EventActionFailed      EventType = "action_failed"
)

// WorkflowEvent is the ephemeral payload handed to subscribed listeners.
// Events are delivered synchronously, at most once, and are never persisted
// or replayed.
type WorkflowEvent struct {
	Type       EventType      `json:"type"`
	InstanceID string         `json:"instanceId"`
	Actor      string         `json:"actor,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}
