package engine

import (
	"fmt"
	"strings"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// ValidationError reports a malformed workflow definition at registration
// time. Nothing is stored when registration fails.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow definition (%s): %s", e.Rule, e.Message)
}

// NotFoundError reports an unknown definition, instance, transition, task or
// state. Kind names which one.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PermissionError reports that the acting participant lacks the role or
// permissions a transition requires.
type PermissionError struct {
	Actor       string
	Requirement string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %q does not satisfy %s", e.Actor, e.Requirement)
}

// ConditionsNotMetError reports that one or more guard conditions evaluated
// false. Conditions are fully evaluated before any mutation, so the instance
// is unchanged.
type ConditionsNotMetError struct {
	TransitionID string
	Failed       []string
}

func (e *ConditionsNotMetError) Error() string {
	return fmt.Sprintf("transition %q blocked, conditions not met: %s",
		e.TransitionID, strings.Join(e.Failed, "; "))
}

// WorkflowCompletedError reports a transition attempt on an instance whose
// status is already completed.
type WorkflowCompletedError struct {
	InstanceID string
}

func (e *WorkflowCompletedError) Error() string {
	return fmt.Sprintf("workflow %q is completed and accepts no further transitions", e.InstanceID)
}

// AlreadyCompletedError reports a second completion of the same task, or a
// transition attempt on a terminally failed or cancelled instance.
type AlreadyCompletedError struct {
	Kind string // "task" or "workflow"
	ID   string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("%s %q is already in a terminal state", e.Kind, e.ID)
}

// WorkflowPausedError reports a transition attempt on a paused instance.
// Paused instances must be resumed before they accept transitions.
type WorkflowPausedError struct {
	InstanceID string
}

func (e *WorkflowPausedError) Error() string {
	return fmt.Sprintf("workflow %q is paused", e.InstanceID)
}

// InvalidStatusError reports a lifecycle operation against an instance in
// the wrong status, such as resuming an instance that is not paused.
type InvalidStatusError struct {
	InstanceID string
	Status     domain.WorkflowStatus
	Expected   domain.WorkflowStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("workflow %q is %s, expected %s", e.InstanceID, e.Status, e.Expected)
}

// ActionExecutionError wraps a failed action handler. Action failures are
// isolated: they are logged and published, never rolled back into the
// already committed state change.
type ActionExecutionError struct {
	ActionID   string
	ActionType domain.ActionType
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q (%s) failed: %v", e.ActionID, e.ActionType, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }
