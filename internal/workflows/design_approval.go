package workflows

import (
	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// DesignApproval is a sample process definition for sign-off on branding
// design work, including an auto approval when the client sits on a proof
// for too long.
func DesignApproval() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:      "design-approval",
		Name:    "Design Approval",
		Version: 1,
		Roles:   []string{"designer", "design_lead", "client"},
		States: []domain.State{
			{ID: "briefing", Name: "Briefing", Type: domain.StateStart, IsInitial: true},
			{
				ID: "design", Name: "In Design", Type: domain.StateIntermediate,
				Timeouts: []domain.StateTimeout{
					{Duration: 5, Unit: domain.UnitDays, Action: domain.TimeoutNotify,
						Target: "design_lead", Message: "Design work running long"},
				},
			},
			{
				ID: "client_review", Name: "Client Review", Type: domain.StateIntermediate,
				EntryActions: []domain.Action{
					{
						ID: "send-proof", Type: domain.ActionEmail, Order: 1,
						Params: map[string]any{"template": "design_proof"},
					},
				},
				Timeouts: []domain.StateTimeout{
					{Duration: 7, Unit: domain.UnitDays, Action: domain.TimeoutAutoApprove,
						Transition: "client_approve", Message: "Proof approved automatically after seven days without response"},
				},
			},
			{ID: "approved", Name: "Approved", Type: domain.StateEnd, IsFinal: true},
		},
		Transitions: []domain.Transition{
			{ID: "start_design", Name: "Start Design", From: "briefing", To: "design", RequiredRole: "designer"},
			{ID: "submit_proof", Name: "Submit Proof", From: "design", To: "client_review", RequiredRole: "designer"},
			{
				ID: "client_approve", Name: "Client Approves", From: "client_review", To: "approved",
				Conditions: []domain.Condition{
					{Type: domain.ConditionApprovalStatus, Expected: "approved"},
				},
			},
			{ID: "request_changes", Name: "Request Changes", From: "client_review", To: "design"},
		},
		Settings: domain.Settings{
			BusinessHours: &domain.BusinessHours{StartHour: 9, EndHour: 17},
		},
	}
}
