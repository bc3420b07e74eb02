package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// ActionHandler executes one declarative side effect. The engine never
// hardcodes external I/O; delivery gateways register a handler per action
// type. The instance argument is a snapshot and must not be mutated.
type ActionHandler func(ctx context.Context, instance *domain.WorkflowInstance, action domain.Action) error

// actionDispatcher fans declared actions out to registered handlers.
// Execution is best effort: one action's failure is logged, published as an
// action_failed event and, when a retry policy is declared, handed to the
// retryer. It never aborts the remaining actions and never rolls back the
// committed state change.
type actionDispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.ActionType]ActionHandler
	bus      *eventBus
	timeout  time.Duration
	wg       sync.WaitGroup
}

func newActionDispatcher(bus *eventBus) *actionDispatcher {
	return &actionDispatcher{
		handlers: make(map[domain.ActionType]ActionHandler),
		bus:      bus,
	}
}

func (d *actionDispatcher) register(t domain.ActionType, h ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

func (d *actionDispatcher) lookup(t domain.ActionType) (ActionHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[t]
	return h, ok
}

// run executes actions in ascending order, declaration order breaking ties.
// Async actions return immediately and run on their own goroutine.
func (d *actionDispatcher) run(ctx context.Context, instance *domain.WorkflowInstance, actions []domain.Action) {
	if len(actions) == 0 {
		return
	}
	ordered := make([]domain.Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, action := range ordered {
		if action.IsAsync {
			// Async actions outlive the triggering request, so they must not
			// die with its context.
			detached := context.WithoutCancel(ctx)
			d.wg.Add(1)
			go func(a domain.Action) {
				defer d.wg.Done()
				d.runOne(detached, instance, a)
			}(action)
			continue
		}
		d.runOne(ctx, instance, action)
	}
}

func (d *actionDispatcher) runOne(ctx context.Context, instance *domain.WorkflowInstance, action domain.Action) {
	handler, ok := d.lookup(action.Type)
	if !ok {
		slog.Warn("No handler registered for action type, skipping",
			"action_id", action.ID, "action_type", action.Type, "workflow_id", instance.ID)
		return
	}

	err := d.invoke(ctx, handler, instance, action)
	if err == nil {
		return
	}

	execErr := &ActionExecutionError{ActionID: action.ID, ActionType: action.Type, Err: err}
	slog.Error("Action execution failed", "workflow_id", instance.ID,
		"action_id", action.ID, "action_type", action.Type, "error", err)
	d.bus.emit(domain.WorkflowEvent{
		Type:       domain.EventActionFailed,
		InstanceID: instance.ID,
		Timestamp:  time.Now(),
		Data:       map[string]any{"actionId": action.ID, "actionType": string(action.Type), "error": execErr.Error()},
	})

	if action.Retry != nil && action.Retry.MaxRetries > 0 {
		d.retry(ctx, handler, instance, action)
	}
}

// invoke calls the handler with panic isolation so a misbehaving integration
// cannot take down the engine.
func (d *actionDispatcher) invoke(ctx context.Context, handler ActionHandler, instance *domain.WorkflowInstance, action domain.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return handler(ctx, instance, action)
}

// retry re-runs a failed action on its own goroutine according to the
// declared policy. Exhausted retries are logged and given up on; the state
// machine's correctness never depends on side effect success.
func (d *actionDispatcher) retry(parent context.Context, handler ActionHandler, instance *domain.WorkflowInstance, action domain.Action) {
	ctx := context.WithoutCancel(parent)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		policy := backoff.WithContext(backoffFor(*action.Retry), ctx)
		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			retryErr := d.invoke(ctx, handler, instance, action)
			if retryErr != nil {
				slog.Warn("Action retry failed", "workflow_id", instance.ID,
					"action_id", action.ID, "attempt", attempt, "error", retryErr)
			}
			return retryErr
		}, policy)
		if err != nil {
			slog.Error("Action retries exhausted", "workflow_id", instance.ID,
				"action_id", action.ID, "attempts", attempt, "error", err)
			return
		}
		slog.Info("Action succeeded after retry", "workflow_id", instance.ID,
			"action_id", action.ID, "attempts", attempt)
	}()
}

// wait blocks until all async and retrying actions have finished. Used by
// shutdown and tests.
func (d *actionDispatcher) wait() { d.wg.Wait() }

// backoffFor builds the retry schedule for a policy. The dispatcher has
// already made the initial attempt, so the schedule allows MaxRetries
// further executions in total.
func backoffFor(policy domain.RetryPolicy) backoff.BackOff {
	var b backoff.BackOff
	switch policy.Backoff {
	case domain.BackoffExponential:
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = policy.Delay
		// The constructor latches its first interval; Reset applies ours.
		exp.Reset()
		b = exp
	case domain.BackoffLinear:
		b = &linearBackOff{delay: policy.Delay}
	default:
		b = backoff.NewConstantBackOff(policy.Delay)
	}
	return backoff.WithMaxRetries(b, uint64(policy.MaxRetries-1))
}

// linearBackOff grows the delay by the base amount each attempt.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.delay
}

func (l *linearBackOff) Reset() { l.attempt = 0 }
