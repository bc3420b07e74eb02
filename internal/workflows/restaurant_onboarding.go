package workflows

import (
	"time"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// RestaurantOnboarding is a sample process definition for bringing a new
// restaurant client onto the platform. Process definitions are plain data
// fed to the engine; domain services own their content.
func RestaurantOnboarding() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:      "restaurant-onboarding",
		Name:    "Restaurant Onboarding",
		Version: 1,
		Roles:   []string{"account_manager", "operations_manager", "finance_manager"},
		States: []domain.State{
			{
				ID: "draft", Name: "Draft", Type: domain.StateStart, IsInitial: true,
				RequiredFields: []string{"restaurantName"},
			},
			{
				ID: "review", Name: "Under Review", Type: domain.StateIntermediate,
				EntryActions: []domain.Action{
					{
						ID: "notify-ops", Type: domain.ActionNotification, Order: 1,
						Params: map[string]any{"target": "operations_manager", "template": "onboarding_review"},
					},
				},
				Timeouts: []domain.StateTimeout{
					{Duration: 2, Unit: domain.UnitDays, Action: domain.TimeoutEscalate,
						Target: "operations_manager", Message: "Onboarding review pending for more than two days"},
				},
			},
			{
				ID: "contract", Name: "Contract Signing", Type: domain.StateIntermediate,
				EntryActions: []domain.Action{
					{
						ID: "generate-contract", Type: domain.ActionFileGeneration, Order: 1,
						Params: map[string]any{"template": "standard_contract"},
						Retry:  &domain.RetryPolicy{MaxRetries: 3, Backoff: domain.BackoffExponential, Delay: 2 * time.Second},
					},
					{
						ID: "email-contract", Type: domain.ActionEmail, Order: 2, IsAsync: true,
						Params: map[string]any{"template": "contract_ready"},
					},
				},
			},
			{ID: "active", Name: "Active Client", Type: domain.StateEnd, IsFinal: true},
			{ID: "rejected", Name: "Rejected", Type: domain.StateEnd, IsFinal: true},
		},
		Transitions: []domain.Transition{
			{
				ID: "submit", Name: "Submit for Review", From: "draft", To: "review",
			},
			{
				ID: "approve", Name: "Approve Onboarding", From: "review", To: "contract",
				RequiredRole: "operations_manager",
				Conditions: []domain.Condition{
					{Type: domain.ConditionFieldValue, Field: "restaurantName", Operator: domain.OperatorExists},
				},
			},
			{
				ID: "reject", Name: "Reject Onboarding", From: "review", To: "rejected",
				RequiredRole: "operations_manager",
			},
			{
				ID: "sign", Name: "Contract Signed", From: "contract", To: "active",
				Conditions: []domain.Condition{
					{Type: domain.ConditionApprovalStatus, Expected: "approved"},
				},
				Actions: []domain.Action{
					{
						ID: "welcome-email", Type: domain.ActionEmail, Order: 1, IsAsync: true,
						Params: map[string]any{"template": "welcome"},
					},
				},
			},
		},
		Settings: domain.Settings{
			EscalationRules: []domain.EscalationRule{
				{Delay: 14, Unit: domain.UnitDays, Action: domain.TimeoutNotify,
					Target: "account_manager", Message: "Onboarding open for more than two weeks"},
			},
		},
	}
}
