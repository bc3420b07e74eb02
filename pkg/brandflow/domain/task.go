package domain

import "time"

// TaskStatus is the lifecycle status of a human work item. It is tracked
// independently of the owning instance's state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskOverdue    TaskStatus = "overdue"
)

// WorkflowTask is a unit of human work attached to an instance. Completing a
// task never moves the state machine by itself; a process definition links
// the two through an approval_status condition if it wants to.
type WorkflowTask struct {
	ID               string         `json:"id"`
	InstanceID       string         `json:"instanceId"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Assignee         string         `json:"assignee,omitempty"`
	Status           TaskStatus     `json:"status"`
	CreatedAt        time.Time      `json:"createdAt"`
	DueAt            *time.Time     `json:"dueAt,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	ExpectedDuration time.Duration  `json:"expectedDuration,omitempty"`
	ActualDuration   time.Duration  `json:"actualDuration,omitempty"`
	Result           map[string]any `json:"result,omitempty"`
}
