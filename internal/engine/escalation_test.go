package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

func escalatingDefinition() *domain.WorkflowDefinition {
	def := approvalDefinition()
	def.States[1].Timeouts = []domain.StateTimeout{{
		Duration: 48,
		Unit:     domain.UnitHours,
		Action:   domain.TimeoutEscalate,
		Target:   "u-senior",
		Message:  "review is stuck",
	}}
	return def
}

func TestSweepEscalatesExactlyOnce(t *testing.T) {
	eng, clock := newTestEngine(t)
	require.NoError(t, eng.RegisterWorkflow(escalatingDefinition()))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, &StartOptions{Assignee: "u-reviewer"})
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))

	var escalated int
	eng.On(domain.EventWorkflowEscalated, func(domain.WorkflowEvent) { escalated++ })

	// Under the threshold nothing fires.
	clock.Advance(47 * time.Hour)
	eng.RunEscalationSweep(ctx)
	inst, _ := eng.GetWorkflow(id)
	assert.Equal(t, "u-reviewer", inst.Assignee)
	assert.Equal(t, 0, escalated)

	clock.Advance(2 * time.Hour)
	eng.RunEscalationSweep(ctx)
	inst, _ = eng.GetWorkflow(id)
	assert.Equal(t, "u-senior", inst.Assignee)
	assert.Equal(t, 1, escalated)
	last := inst.History[len(inst.History)-1]
	assert.Equal(t, domain.HistoryEscalated, last.Action)

	// Repeated sweeps never escalate the same breach again.
	clock.Advance(24 * time.Hour)
	eng.RunEscalationSweep(ctx)
	eng.RunEscalationSweep(ctx)
	assert.Equal(t, 1, escalated)
}

func TestSweepMeasuresTimeInCurrentState(t *testing.T) {
	eng, clock := newTestEngine(t)
	require.NoError(t, eng.RegisterWorkflow(escalatingDefinition()))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)

	// Sitting in draft for days does not trip the review timeout.
	clock.Advance(100 * time.Hour)
	eng.RunEscalationSweep(ctx)

	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))
	clock.Advance(10 * time.Hour)
	eng.RunEscalationSweep(ctx)

	inst, _ := eng.GetWorkflow(id)
	assert.Empty(t, inst.Assignee)
}

func TestSweepSkipsPausedAndCompleted(t *testing.T) {
	eng, clock := newTestEngine(t)
	require.NoError(t, eng.RegisterWorkflow(escalatingDefinition()))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))
	require.NoError(t, eng.PauseWorkflow(ctx, id, manager))

	clock.Advance(200 * time.Hour)
	eng.RunEscalationSweep(ctx)

	inst, _ := eng.GetWorkflow(id)
	assert.Empty(t, inst.Assignee)
}

func TestSweepNotifyRunsNotificationAction(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := approvalDefinition()
	def.States[1].Timeouts = []domain.StateTimeout{{
		Duration: 1,
		Unit:     domain.UnitDays,
		Action:   domain.TimeoutNotify,
		Target:   "u-manager",
		Message:  "still waiting on review",
	}}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	var notified []string
	eng.RegisterActionHandler(domain.ActionNotification, func(ctx context.Context, inst *domain.WorkflowInstance, a domain.Action) error {
		notified = append(notified, a.Params["message"].(string))
		return nil
	})

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))

	clock.Advance(25 * time.Hour)
	eng.RunEscalationSweep(ctx)
	eng.WaitForActions()

	assert.Equal(t, []string{"still waiting on review"}, notified)
}

func TestSweepAutoApproveFiresTransition(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := approvalDefinition()
	def.Transitions[1].Conditions = []domain.Condition{{
		Type: domain.ConditionApprovalStatus, Expected: "approved",
	}}
	def.States[1].Timeouts = []domain.StateTimeout{{
		Duration:   7,
		Unit:       domain.UnitDays,
		Action:     domain.TimeoutAutoApprove,
		Message:    "no response within a week",
		Transition: "approve",
	}}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))

	clock.Advance(8 * 24 * time.Hour)
	eng.RunEscalationSweep(ctx)

	inst, _ := eng.GetWorkflow(id)
	assert.Equal(t, "approved", inst.CurrentState)
	assert.Equal(t, domain.StatusCompleted, inst.Status)
	last, ok := inst.LastApproval()
	require.True(t, ok)
	assert.Equal(t, "approved", last.Decision)
	assert.Equal(t, domain.SystemParticipant.ID, last.Actor)
}

func TestSweepAutoRejectRecordsDecision(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := approvalDefinition()
	def.Transitions = append(def.Transitions, domain.Transition{
		ID: "reject", From: "review", To: "approved",
		Conditions: []domain.Condition{{Type: domain.ConditionApprovalStatus, Expected: "rejected"}},
	})
	def.States[1].Timeouts = []domain.StateTimeout{{
		Duration:   3,
		Unit:       domain.UnitDays,
		Action:     domain.TimeoutAutoReject,
		Message:    "expired",
		Transition: "reject",
	}}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))

	clock.Advance(4 * 24 * time.Hour)
	eng.RunEscalationSweep(ctx)

	inst, _ := eng.GetWorkflow(id)
	last, ok := inst.LastApproval()
	require.True(t, ok)
	assert.Equal(t, "rejected", last.Decision)
	assert.Equal(t, domain.StatusCompleted, inst.Status)
}

func TestSweepWorkflowEscalationRules(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := approvalDefinition()
	def.Settings.EscalationRules = []domain.EscalationRule{{
		Delay:   14,
		Unit:    domain.UnitDays,
		Action:  domain.TimeoutEscalate,
		Target:  "u-director",
		Message: "open for two weeks",
	}}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)

	// The rule is measured from workflow creation regardless of state hops.
	clock.Advance(13 * 24 * time.Hour)
	eng.RunEscalationSweep(ctx)
	inst, _ := eng.GetWorkflow(id)
	assert.Empty(t, inst.Assignee)

	clock.Advance(2 * 24 * time.Hour)
	eng.RunEscalationSweep(ctx)
	inst, _ = eng.GetWorkflow(id)
	assert.Equal(t, "u-director", inst.Assignee)

	eng.RunEscalationSweep(ctx)
	fired := 0
	for _, h := range inst.History {
		if h.Action == domain.HistoryEscalated {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}

func TestSweepEscalationRuleCondition(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := approvalDefinition()
	def.Settings.EscalationRules = []domain.EscalationRule{{
		Condition: &domain.Condition{
			Type: domain.ConditionFieldValue, Field: "priority",
			Operator: domain.OperatorEquals, Value: "high",
		},
		Delay:  1,
		Unit:   domain.UnitDays,
		Action: domain.TimeoutEscalate,
		Target: "u-director",
	}}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	low, err := eng.StartWorkflow(ctx, "approval", map[string]any{"priority": "low"}, clerk, nil)
	require.NoError(t, err)
	high, err := eng.StartWorkflow(ctx, "approval", map[string]any{"priority": "high"}, clerk, nil)
	require.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)
	eng.RunEscalationSweep(ctx)

	lowInst, _ := eng.GetWorkflow(low)
	highInst, _ := eng.GetWorkflow(high)
	assert.Empty(t, lowInst.Assignee)
	assert.Equal(t, "u-director", highInst.Assignee)
}

func TestBusinessHoursTimeoutsUseWorkingTime(t *testing.T) {
	eng, clock := newTestEngine(t)
	def := escalatingDefinition()
	def.States[1].Timeouts[0] = domain.StateTimeout{
		Duration: 8,
		Unit:     domain.UnitHours,
		Action:   domain.TimeoutEscalate,
		Target:   "u-senior",
	}
	def.Settings.BusinessHours = &domain.BusinessHours{StartHour: 9, EndHour: 17}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	// Friday 2024-03-01 10:00 UTC. Seven working hours remain today; the
	// weekend contributes nothing.
	id, err := eng.StartWorkflow(ctx, "approval", nil, clerk, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TransitionWorkflow(ctx, id, "submit", clerk, nil))

	// Monday 09:30: 7h Friday + 0.5h Monday of working time, under 8h.
	clock.Advance(71*time.Hour + 30*time.Minute)
	eng.RunEscalationSweep(ctx)
	inst, _ := eng.GetWorkflow(id)
	assert.Empty(t, inst.Assignee)

	// Monday 11:00: 9h of working time, threshold crossed.
	clock.Advance(90 * time.Minute)
	eng.RunEscalationSweep(ctx)
	inst, _ = eng.GetWorkflow(id)
	assert.Equal(t, "u-senior", inst.Assignee)
}
