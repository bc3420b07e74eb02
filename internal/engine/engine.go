package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brandflow-io/brandflow/pkg/brandflow/core"
	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// Engine owns the definition registry and all runtime instances and is the
// single entry point for every workflow mutation. It is an in-memory
// orchestrator sized for tens to low hundreds of concurrent instances;
// multiple engines can coexist, nothing is ambient global state.
type Engine struct {
	registry   *definitionRegistry
	conditions *conditionRegistry
	dispatcher *actionDispatcher
	bus        *eventBus
	clock      core.Clock
	retention  time.Duration

	mu        sync.RWMutex
	instances map[string]*instanceEntry
}

// instanceEntry pairs an instance with its mutation lock. Every write to
// currentState, history, status, tasks or the data bag happens with mu held
// so concurrent requests against the same instance are serialized.
type instanceEntry struct {
	mu   sync.Mutex
	inst *domain.WorkflowInstance
}

// StartOptions are optional parameters for starting an instance.
type StartOptions struct {
	Assignee     string
	Participants []string
}

// NewEngine creates an engine with the built-in condition evaluators
// installed. Completed instances older than retention are reclaimed by the
// cleanup sweep.
func NewEngine(clock core.Clock, retention time.Duration) *Engine {
	bus := newEventBus()
	return &Engine{
		registry:   newDefinitionRegistry(),
		conditions: newConditionRegistry(),
		dispatcher: newActionDispatcher(bus),
		bus:        bus,
		clock:      clock,
		retention:  retention,
		instances:  make(map[string]*instanceEntry),
	}
}

// RegisterWorkflow validates and stores a process definition.
func (e *Engine) RegisterWorkflow(def *domain.WorkflowDefinition) error {
	if err := e.registry.register(def); err != nil {
		return err
	}
	slog.Info("Registered workflow definition", "definition_id", def.ID, "name", def.Name, "version", def.Version)
	return nil
}

// GetWorkflowDefinition returns a registered definition, if present.
func (e *Engine) GetWorkflowDefinition(id string) (*domain.WorkflowDefinition, bool) {
	return e.registry.get(id)
}

// ListWorkflowDefinitions returns all registered definitions.
func (e *Engine) ListWorkflowDefinitions() []*domain.WorkflowDefinition {
	return e.registry.list()
}

// RegisterActionHandler installs the handler executed for an action type.
func (e *Engine) RegisterActionHandler(t domain.ActionType, h ActionHandler) {
	e.dispatcher.register(t, h)
}

// SetActionTimeout caps how long a single action handler invocation may run.
// Zero means no deadline. Set before handlers start firing.
func (e *Engine) SetActionTimeout(d time.Duration) {
	e.dispatcher.timeout = d
}

// RegisterConditionEvaluator overrides or extends the evaluator for a
// condition type.
func (e *Engine) RegisterConditionEvaluator(t domain.ConditionType, ev ConditionEvaluator) {
	e.conditions.register(t, ev)
}

// RegisterConditionFunc installs a named predicate for custom_function
// conditions.
func (e *Engine) RegisterConditionFunc(name string, fn ConditionFunc) {
	e.conditions.registerFunc(name, fn)
}

// On subscribes a handler to an event type and returns a subscription id.
func (e *Engine) On(t domain.EventType, h EventHandler) int {
	return e.bus.on(t, h)
}

// Off removes a subscription.
func (e *Engine) Off(t domain.EventType, id int) {
	e.bus.off(t, id)
}

// WaitForActions blocks until in-flight async actions and retries finish.
func (e *Engine) WaitForActions() {
	e.dispatcher.wait()
}

// StartWorkflow creates a new instance of a registered definition, seeds its
// data bag, runs the initial state's entry actions and emits
// workflow_started. Returns the new instance id.
func (e *Engine) StartWorkflow(ctx context.Context, definitionID string, initialData map[string]any, initiator domain.Participant, opts *StartOptions) (string, error) {
	def, ok := e.registry.get(definitionID)
	if !ok {
		return "", &NotFoundError{Kind: "definition", ID: definitionID}
	}
	initial, ok := def.InitialState()
	if !ok {
		// The registry guarantees one initial state; defensive only.
		return "", &NotFoundError{Kind: "state", ID: "initial"}
	}

	now := e.clock.Now()
	inst := &domain.WorkflowInstance{
		ID:            uuid.NewString(),
		DefinitionID:  definitionID,
		CurrentState:  initial.ID,
		Status:        domain.StatusRunning,
		Initiator:     initiator.ID,
		Data:          maps.Clone(initialData),
		CreatedAt:     now,
		UpdatedAt:     now,
		FiredTimeouts: make(map[string]bool),
	}
	if inst.Data == nil {
		inst.Data = make(map[string]any)
	}
	if opts != nil {
		inst.Assignee = opts.Assignee
		inst.Participants = slices.Clone(opts.Participants)
	}
	appendHistory(inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryStarted,
		ToState:     initial.ID,
		Actor:       initiator.ID,
		Description: fmt.Sprintf("Workflow %q started in state %q", def.Name, initial.Name),
	})

	// Snapshot before the instance becomes visible to concurrent
	// transitions and sweeps.
	snapshot := inst.Clone()

	e.mu.Lock()
	e.instances[inst.ID] = &instanceEntry{inst: inst}
	e.mu.Unlock()

	slog.Info("Workflow started", "workflow_id", inst.ID, "definition_id", definitionID,
		"state", initial.ID, "initiator", initiator.ID)

	e.dispatcher.run(ctx, snapshot, initial.EntryActions)
	e.bus.emit(domain.WorkflowEvent{
		Type:       domain.EventWorkflowStarted,
		InstanceID: inst.ID,
		Actor:      initiator.ID,
		Timestamp:  now,
		Data:       map[string]any{"definitionId": definitionID, "state": initial.ID},
	})
	return inst.ID, nil
}

// TransitionWorkflow fires a transition as a single logical step: permission
// check, condition evaluation, commit, actions, event. Any failure leaves
// the instance completely unchanged.
func (e *Engine) TransitionWorkflow(ctx context.Context, instanceID, transitionID string, actor domain.Participant, data map[string]any) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}

	entry.mu.Lock()
	after, err := e.applyTransition(ctx, entry.inst, transitionID, actor, data)
	entry.mu.Unlock()
	if err != nil {
		return err
	}
	after()
	return nil
}

// applyTransition performs the transition against a locked instance and
// returns the post-commit work (actions and events) to run after the lock is
// released, so a listener calling back into the engine cannot deadlock.
// Escalation reuses this under the same per-instance discipline.
func (e *Engine) applyTransition(ctx context.Context, inst *domain.WorkflowInstance, transitionID string, actor domain.Participant, data map[string]any) (func(), error) {
	switch inst.Status {
	case domain.StatusCompleted:
		return nil, &WorkflowCompletedError{InstanceID: inst.ID}
	case domain.StatusFailed, domain.StatusCancelled:
		return nil, &AlreadyCompletedError{Kind: "workflow", ID: inst.ID}
	case domain.StatusPaused:
		return nil, &WorkflowPausedError{InstanceID: inst.ID}
	}

	def, ok := e.registry.get(inst.DefinitionID)
	if !ok {
		return nil, &NotFoundError{Kind: "definition", ID: inst.DefinitionID}
	}
	// Matching on id and from state together rejects stale requests fired
	// against a state the instance has already left.
	transition, ok := def.TransitionByID(transitionID, inst.CurrentState)
	if !ok {
		return nil, &NotFoundError{Kind: "transition", ID: transitionID}
	}

	if transition.RequiredRole != "" && actor.Role != transition.RequiredRole {
		return nil, &PermissionError{Actor: actor.ID, Requirement: fmt.Sprintf("role %q", transition.RequiredRole)}
	}
	if !actor.HasPermissions(transition.RequiredPermissions) {
		return nil, &PermissionError{Actor: actor.ID, Requirement: fmt.Sprintf("permissions %v", transition.RequiredPermissions)}
	}

	now := e.clock.Now()
	condCtx := ConditionContext{Instance: inst, Data: data, Actor: actor, Now: now}
	if err := e.conditions.evaluateAll(transition.ID, transition.Conditions, condCtx); err != nil {
		return nil, err
	}

	target, ok := def.StateByID(transition.To)
	if !ok {
		// The registry rejects dangling transitions; defensive only.
		return nil, &NotFoundError{Kind: "state", ID: transition.To}
	}
	if err := checkRequiredFields(target, inst.Data, data); err != nil {
		return nil, err
	}

	// Commit point. No failure path below mutates before this line.
	maps.Copy(inst.Data, data)
	from := inst.CurrentState
	inst.CurrentState = target.ID
	inst.UpdatedAt = now
	appendHistory(inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryStateChanged,
		FromState:   from,
		ToState:     target.ID,
		Actor:       actor.ID,
		Description: fmt.Sprintf("Transition %q: %s -> %s", transition.ID, from, target.ID),
	})

	completed := false
	if target.IsFinal {
		inst.Status = domain.StatusCompleted
		done := now
		inst.CompletedAt = &done
		completed = true
	}

	slog.Info("Workflow transitioned", "workflow_id", inst.ID, "transition", transition.ID,
		"from", from, "to", target.ID, "actor", actor.ID, "completed", completed)

	snapshot := inst.Clone()
	transitionActions := transition.Actions
	entryActions := target.EntryActions
	actorID := actor.ID

	return func() {
		// Transition actions precede the target state's entry actions.
		e.dispatcher.run(ctx, snapshot, transitionActions)
		e.dispatcher.run(ctx, snapshot, entryActions)
		e.bus.emit(domain.WorkflowEvent{
			Type:       domain.EventStateChanged,
			InstanceID: snapshot.ID,
			Actor:      actorID,
			Timestamp:  now,
			Data:       map[string]any{"from": from, "to": target.ID, "transition": transition.ID},
		})
		if completed {
			e.bus.emit(domain.WorkflowEvent{
				Type:       domain.EventWorkflowCompleted,
				InstanceID: snapshot.ID,
				Actor:      actorID,
				Timestamp:  now,
				Data:       map[string]any{"state": target.ID},
			})
		}
	}, nil
}

// GetWorkflow returns a snapshot copy of an instance.
func (e *Engine) GetWorkflow(id string) (*domain.WorkflowInstance, bool) {
	entry, ok := e.entry(id)
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.inst.Clone(), true
}

// ListWorkflows returns snapshots of every instance. Plain scans; the engine
// is not indexed storage.
func (e *Engine) ListWorkflows() []*domain.WorkflowInstance {
	return e.scan(func(*domain.WorkflowInstance) bool { return true })
}

// ListWorkflowsByStatus returns snapshots of instances with the given status.
func (e *Engine) ListWorkflowsByStatus(status domain.WorkflowStatus) []*domain.WorkflowInstance {
	return e.scan(func(i *domain.WorkflowInstance) bool { return i.Status == status })
}

// ListWorkflowsByParticipant returns snapshots of instances the participant
// initiated, is assigned to or is listed on.
func (e *Engine) ListWorkflowsByParticipant(participantID string) []*domain.WorkflowInstance {
	return e.scan(func(i *domain.WorkflowInstance) bool { return i.HasParticipant(participantID) })
}

// AvailableTransitions returns the transitions leaving the instance's
// current state. Permission and condition checks still apply when one is
// fired; this is a read for presenting choices, not a promise they succeed.
func (e *Engine) AvailableTransitions(instanceID string) ([]domain.Transition, error) {
	entry, ok := e.entry(instanceID)
	if !ok {
		return nil, &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	definitionID := entry.inst.DefinitionID
	current := entry.inst.CurrentState
	entry.mu.Unlock()

	def, ok := e.registry.get(definitionID)
	if !ok {
		return nil, &NotFoundError{Kind: "definition", ID: definitionID}
	}
	return def.TransitionsFrom(current), nil
}

// PauseWorkflow suspends a running instance.
func (e *Engine) PauseWorkflow(ctx context.Context, instanceID string, actor domain.Participant) error {
	return e.setStatus(instanceID, actor, domain.StatusRunning, domain.StatusPaused,
		domain.HistoryPaused, domain.EventWorkflowPaused)
}

// ResumeWorkflow puts a paused instance back into running.
func (e *Engine) ResumeWorkflow(ctx context.Context, instanceID string, actor domain.Participant) error {
	return e.setStatus(instanceID, actor, domain.StatusPaused, domain.StatusRunning,
		domain.HistoryResumed, domain.EventWorkflowResumed)
}

// CancelWorkflow terminally cancels a running or paused instance.
func (e *Engine) CancelWorkflow(ctx context.Context, instanceID string, actor domain.Participant) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	inst := entry.inst
	if inst.Status.IsTerminal() {
		entry.mu.Unlock()
		return &AlreadyCompletedError{Kind: "workflow", ID: instanceID}
	}
	now := e.clock.Now()
	inst.Status = domain.StatusCancelled
	inst.UpdatedAt = now
	appendHistory(inst, domain.HistoryEntry{
		Timestamp: now,
		Action:    domain.HistoryCancelled,
		FromState: inst.CurrentState,
		ToState:   inst.CurrentState,
		Actor:     actor.ID,
	})
	entry.mu.Unlock()

	slog.Info("Workflow cancelled", "workflow_id", instanceID, "actor", actor.ID)
	e.bus.emit(domain.WorkflowEvent{
		Type:       domain.EventWorkflowCancelled,
		InstanceID: instanceID,
		Actor:      actor.ID,
		Timestamp:  now,
	})
	return nil
}

// AddComment appends a comment to the instance data bag.
func (e *Engine) AddComment(instanceID string, actor domain.Participant, text string) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := e.clock.Now()
	entry.inst.Comments = append(entry.inst.Comments, domain.Comment{Author: actor.ID, Text: text, Timestamp: now})
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryCommentAdded,
		Actor:       actor.ID,
		Description: text,
	})
	return nil
}

// AddApproval records an approval decision. The approval list feeds the
// approval_status condition; it is independent of tasks.
func (e *Engine) AddApproval(instanceID string, actor domain.Participant, decision, comment string) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := e.clock.Now()
	entry.inst.Approvals = append(entry.inst.Approvals, domain.Approval{
		Decision: decision, Actor: actor.ID, Comment: comment, Timestamp: now,
	})
	entry.inst.UpdatedAt = now
	appendHistory(entry.inst, domain.HistoryEntry{
		Timestamp:   now,
		Action:      domain.HistoryApprovalRecorded,
		Actor:       actor.ID,
		Description: fmt.Sprintf("Approval recorded: %s", decision),
	})
	return nil
}

func (e *Engine) entry(id string) (*instanceEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.instances[id]
	return entry, ok
}

func (e *Engine) entries() []*instanceEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*instanceEntry, 0, len(e.instances))
	for _, entry := range e.instances {
		out = append(out, entry)
	}
	return out
}

func (e *Engine) scan(match func(*domain.WorkflowInstance) bool) []*domain.WorkflowInstance {
	var out []*domain.WorkflowInstance
	for _, entry := range e.entries() {
		entry.mu.Lock()
		if match(entry.inst) {
			out = append(out, entry.inst.Clone())
		}
		entry.mu.Unlock()
	}
	return out
}

func (e *Engine) setStatus(instanceID string, actor domain.Participant, from, to domain.WorkflowStatus, ha domain.HistoryAction, et domain.EventType) error {
	entry, ok := e.entry(instanceID)
	if !ok {
		return &NotFoundError{Kind: "instance", ID: instanceID}
	}
	entry.mu.Lock()
	inst := entry.inst
	if inst.Status != from {
		status := inst.Status
		entry.mu.Unlock()
		if status.IsTerminal() {
			return &AlreadyCompletedError{Kind: "workflow", ID: instanceID}
		}
		return &InvalidStatusError{InstanceID: instanceID, Status: status, Expected: from}
	}
	now := e.clock.Now()
	inst.Status = to
	inst.UpdatedAt = now
	appendHistory(inst, domain.HistoryEntry{
		Timestamp: now,
		Action:    ha,
		FromState: inst.CurrentState,
		ToState:   inst.CurrentState,
		Actor:     actor.ID,
	})
	entry.mu.Unlock()

	e.bus.emit(domain.WorkflowEvent{Type: et, InstanceID: instanceID, Actor: actor.ID, Timestamp: now})
	return nil
}

// appendHistory keeps the audit trail append-only with non-decreasing
// timestamps even if the clock steps backwards.
func appendHistory(inst *domain.WorkflowInstance, entry domain.HistoryEntry) {
	if n := len(inst.History); n > 0 && entry.Timestamp.Before(inst.History[n-1].Timestamp) {
		entry.Timestamp = inst.History[n-1].Timestamp
	}
	inst.History = append(inst.History, entry)
}

func checkRequiredFields(target *domain.State, instData, callData map[string]any) error {
	for _, field := range target.RequiredFields {
		if _, ok := instData[field]; ok {
			continue
		}
		if _, ok := callData[field]; ok {
			continue
		}
		return &ValidationError{
			Rule:    "required_fields",
			Message: fmt.Sprintf("state %q requires field %q", target.ID, field),
		}
	}
	return nil
}
