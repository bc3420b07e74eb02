package models

import (
	"time"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// StartWorkflowRequest is the payload for starting a workflow instance.
type StartWorkflowRequest struct {
	DefinitionID string             `json:"definitionId"`
	Data         map[string]any     `json:"data,omitempty"`
	Initiator    domain.Participant `json:"initiator"`
	Assignee     string             `json:"assignee,omitempty"`
	Participants []string           `json:"participants,omitempty"`
}

// StartWorkflowResponse is returned on successful start.
type StartWorkflowResponse struct {
	ID string `json:"id"`
}

// TransitionRequest is the payload for firing a transition.
type TransitionRequest struct {
	TransitionID string             `json:"transitionId"`
	Actor        domain.Participant `json:"actor"`
	Data         map[string]any     `json:"data,omitempty"`
}

// CreateTaskRequest is the payload for attaching a task to an instance.
type CreateTaskRequest struct {
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Assignee         string     `json:"assignee,omitempty"`
	DueAt            *time.Time `json:"dueAt,omitempty"`
	ExpectedDuration string     `json:"expectedDuration,omitempty"` // Go duration string, e.g. "4h"
}

// CreateTaskResponse is returned on successful task creation.
type CreateTaskResponse struct {
	ID string `json:"id"`
}

// CompleteTaskRequest is the payload for completing a task.
type CompleteTaskRequest struct {
	Actor  domain.Participant `json:"actor"`
	Result map[string]any     `json:"result,omitempty"`
}

// ActorRequest carries just the acting participant, used by pause, resume
// and cancel endpoints.
type ActorRequest struct {
	Actor domain.Participant `json:"actor"`
}

// ErrorResponse is the JSON error envelope returned by the API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
