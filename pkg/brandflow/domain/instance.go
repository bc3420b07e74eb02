package domain

import (
	"maps"
	"slices"
	"time"
)

// WorkflowStatus is the lifecycle status of an instance. Completed, failed
// and cancelled are terminal.
type WorkflowStatus string

const (
	StatusRunning   WorkflowStatus = "running"
	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
	StatusPaused    WorkflowStatus = "paused"
	StatusCancelled WorkflowStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// HistoryAction classifies an entry in the audit trail.
type HistoryAction string

const (
	HistoryStarted          HistoryAction = "workflow_started"
	HistoryStateChanged     HistoryAction = "state_changed"
	HistoryPaused           HistoryAction = "workflow_paused"
	HistoryResumed          HistoryAction = "workflow_resumed"
	HistoryCancelled        HistoryAction = "workflow_cancelled"
	HistoryEscalated        HistoryAction = "workflow_escalated"
	HistoryTaskCreated      HistoryAction = "task_created"
	HistoryTaskStarted      HistoryAction = "task_started"
	HistoryTaskCompleted    HistoryAction = "task_completed"
	HistoryTaskCancelled    HistoryAction = "task_cancelled"
	HistoryTaskOverdue      HistoryAction = "task_overdue"
	HistoryCommentAdded     HistoryAction = "comment_added"
	HistoryApprovalRecorded HistoryAction = "approval_recorded"
)

// WorkflowInstance is one running or finished execution of a definition.
// All mutation happens inside the engine under the instance lock; readers
// only ever see snapshot copies.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	DefinitionID string         `json:"definitionId"`
	CurrentState string         `json:"currentState"`
	Status       WorkflowStatus `json:"status"`
	Initiator    string         `json:"initiator"`
	Assignee     string         `json:"assignee,omitempty"`
	Participants []string       `json:"participants,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Approvals    []Approval     `json:"approvals,omitempty"`
	Comments     []Comment      `json:"comments,omitempty"`
	Attachments  []Attachment   `json:"attachments,omitempty"`
	History      []HistoryEntry `json:"history"`
	Tasks        []WorkflowTask `json:"tasks,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`

	// FiredTimeouts records which state timeouts and escalation rules have
	// already fired so a breach escalates exactly once. Not serialized.
	FiredTimeouts map[string]bool `json:"-"`
}

// Clone returns a deep copy safe to hand to callers outside the engine lock.
// The data bag and task results are copied through nested maps and slices so
// a handler mutating its snapshot cannot reach engine state.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	c := *i
	c.Participants = slices.Clone(i.Participants)
	c.Data = cloneDataMap(i.Data)
	c.Approvals = slices.Clone(i.Approvals)
	c.Comments = slices.Clone(i.Comments)
	c.Attachments = slices.Clone(i.Attachments)
	c.History = slices.Clone(i.History)
	c.FiredTimeouts = maps.Clone(i.FiredTimeouts)
	c.Tasks = make([]WorkflowTask, len(i.Tasks))
	for n, t := range i.Tasks {
		c.Tasks[n] = t
		c.Tasks[n].Result = cloneDataMap(t.Result)
	}
	if i.CompletedAt != nil {
		done := *i.CompletedAt
		c.CompletedAt = &done
	}
	return &c
}

func cloneDataMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneDataValue(v)
	}
	return out
}

// cloneDataValue copies the container shapes JSON decoding produces; other
// values are kept as-is.
func cloneDataValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneDataMap(t)
	case []any:
		out := make([]any, len(t))
		for n, e := range t {
			out[n] = cloneDataValue(e)
		}
		return out
	default:
		return v
	}
}

// EnteredCurrentStateAt returns the timestamp of the history entry that put
// the instance into its current state, falling back to the creation time.
func (i *WorkflowInstance) EnteredCurrentStateAt() time.Time {
	for n := len(i.History) - 1; n >= 0; n-- {
		if i.History[n].ToState == i.CurrentState {
			return i.History[n].Timestamp
		}
	}
	return i.CreatedAt
}

// LastApproval returns the most recent approval, if any.
func (i *WorkflowInstance) LastApproval() (Approval, bool) {
	if len(i.Approvals) == 0 {
		return Approval{}, false
	}
	return i.Approvals[len(i.Approvals)-1], true
}

// TaskByID returns the task with the given id, if it exists.
func (i *WorkflowInstance) TaskByID(id string) (*WorkflowTask, bool) {
	for n := range i.Tasks {
		if i.Tasks[n].ID == id {
			return &i.Tasks[n], true
		}
	}
	return nil, false
}

// HasParticipant reports whether the given participant id initiated, is
// assigned to, or is listed on the instance.
func (i *WorkflowInstance) HasParticipant(id string) bool {
	if i.Initiator == id || i.Assignee == id {
		return true
	}
	return slices.Contains(i.Participants, id)
}

// HistoryEntry is one line of the append-only audit trail.
type HistoryEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	Action      HistoryAction `json:"action"`
	FromState   string        `json:"fromState,omitempty"`
	ToState     string        `json:"toState,omitempty"`
	Actor       string        `json:"actor,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Approval is one recorded approval decision. Approvals are a plain list on
// the instance; they are not linked to tasks.
type Approval struct {
	Decision  string    `json:"decision"`
	Actor     string    `json:"actor"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment is a free-form note attached to the instance data bag.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Attachment is a reference to an externally stored file.
type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
