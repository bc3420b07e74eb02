package main

import (
	"context"
	"log/slog"

	"github.com/brandflow-io/brandflow/internal/workflows"
	"github.com/brandflow-io/brandflow/pkg/brandflow"
	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	brandflow.SetupLogger()

	eng := brandflow.NewEngine()

	// Sample process definitions; domain services feed their own over the API.
	for _, def := range []*domain.WorkflowDefinition{
		workflows.RestaurantOnboarding(),
		workflows.DesignApproval(),
	} {
		if err := eng.RegisterWorkflow(def); err != nil {
			slog.Error("Failed to register workflow definition", "definition_id", def.ID, "error", err)
		}
	}

	// Logging stand-ins; real delivery gateways register their own handlers.
	for _, t := range []domain.ActionType{
		domain.ActionNotification,
		domain.ActionEmail,
		domain.ActionSMS,
		domain.ActionWebhook,
		domain.ActionDatabaseUpdate,
		domain.ActionApprovalRequest,
		domain.ActionFileGeneration,
	} {
		actionType := t
		eng.RegisterActionHandler(actionType, func(ctx context.Context, inst *domain.WorkflowInstance, action domain.Action) error {
			slog.Info("Action dispatched", "action_type", actionType, "action_id", action.ID,
				"workflow_id", inst.ID, "params", action.Params)
			return nil
		})
	}

	if err := brandflow.Start(eng, nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}
