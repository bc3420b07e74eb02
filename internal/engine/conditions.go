package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// ConditionContext is the read-only view a condition evaluates against. The
// instance is the snapshot held under the engine's instance lock; Data is
// call-supplied data that has not been merged into the instance yet.
type ConditionContext struct {
	Instance *domain.WorkflowInstance
	Data     map[string]any
	Actor    domain.Participant
	Now      time.Time
}

// Field resolves a named field from the instance data bag, falling back to
// the call-supplied data.
func (c ConditionContext) Field(name string) (any, bool) {
	if c.Instance != nil && c.Instance.Data != nil {
		if v, ok := c.Instance.Data[name]; ok {
			return v, true
		}
	}
	if v, ok := c.Data[name]; ok {
		return v, true
	}
	return nil, false
}

// ConditionEvaluator decides a single condition kind. Evaluators must be
// pure: evaluation never mutates the instance.
type ConditionEvaluator interface {
	Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error)
}

// ConditionFunc is a named predicate usable from custom_function conditions.
type ConditionFunc func(ctx ConditionContext) bool

// conditionRegistry maps condition types to their evaluator. Built-in kinds
// are installed by the engine constructor; callers may override or extend.
type conditionRegistry struct {
	mu         sync.RWMutex
	evaluators map[domain.ConditionType]ConditionEvaluator
	functions  map[string]ConditionFunc
}

func newConditionRegistry() *conditionRegistry {
	r := &conditionRegistry{
		evaluators: make(map[domain.ConditionType]ConditionEvaluator),
		functions:  make(map[string]ConditionFunc),
	}
	r.evaluators[domain.ConditionFieldValue] = fieldValueEvaluator{}
	r.evaluators[domain.ConditionApprovalStatus] = approvalStatusEvaluator{}
	r.evaluators[domain.ConditionUserRole] = userRoleEvaluator{}
	r.evaluators[domain.ConditionTimeElapsed] = timeElapsedEvaluator{}
	r.evaluators[domain.ConditionCustomFunction] = customFunctionEvaluator{registry: r}
	return r
}

func (r *conditionRegistry) register(t domain.ConditionType, e ConditionEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[t] = e
}

func (r *conditionRegistry) registerFunc(name string, fn ConditionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[name] = fn
}

func (r *conditionRegistry) lookupFunc(name string) (ConditionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

// evaluateAll applies every condition with logical AND. All conditions are
// evaluated even after the first failure so that evaluation has no
// short-circuit side effects and the error can name every failed guard.
func (r *conditionRegistry) evaluateAll(transitionID string, conds []domain.Condition, ctx ConditionContext) error {
	var failed []string
	for i, cond := range conds {
		r.mu.RLock()
		eval, ok := r.evaluators[cond.Type]
		r.mu.RUnlock()
		if !ok {
			failed = append(failed, fmt.Sprintf("condition[%d]: no evaluator for type %q", i, cond.Type))
			continue
		}
		met, err := eval.Evaluate(cond, ctx)
		if err != nil {
			failed = append(failed, fmt.Sprintf("condition[%d] (%s): %v", i, cond.Type, err))
			continue
		}
		if !met {
			failed = append(failed, fmt.Sprintf("condition[%d] (%s) not satisfied", i, cond.Type))
		}
	}
	if len(failed) > 0 {
		return &ConditionsNotMetError{TransitionID: transitionID, Failed: failed}
	}
	return nil
}

// fieldValueEvaluator compares a named field against a literal.
type fieldValueEvaluator struct{}

func (fieldValueEvaluator) Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error) {
	val, present := ctx.Field(cond.Field)

	switch cond.Operator {
	case domain.OperatorExists:
		return present && val != nil, nil
	case domain.OperatorEquals:
		return present && looseEqual(val, cond.Value), nil
	case domain.OperatorNotEquals:
		return !present || !looseEqual(val, cond.Value), nil
	case domain.OperatorGreaterThan, domain.OperatorLessThan:
		if !present {
			return false, nil
		}
		a, okA := toFloat(val)
		b, okB := toFloat(cond.Value)
		if !okA || !okB {
			return false, fmt.Errorf("field %q is not numeric", cond.Field)
		}
		if cond.Operator == domain.OperatorGreaterThan {
			return a > b, nil
		}
		return a < b, nil
	case domain.OperatorContains:
		if !present {
			return false, nil
		}
		return strings.Contains(asString(val), asString(cond.Value)), nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

// approvalStatusEvaluator compares the last recorded approval with the
// expected decision. With no approvals, only the sentinel "none" passes.
type approvalStatusEvaluator struct{}

func (approvalStatusEvaluator) Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error) {
	last, ok := ctx.Instance.LastApproval()
	if !ok {
		return cond.Expected == domain.ApprovalExpectedNone, nil
	}
	return last.Decision == cond.Expected, nil
}

// userRoleEvaluator checks the acting participant's role. Declared as an
// extension point in the source system but always true there; here it is a
// real check, which is a deliberate behavioral change.
type userRoleEvaluator struct{}

func (userRoleEvaluator) Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error) {
	if cond.Role == "" {
		return true, nil
	}
	return ctx.Actor.Role == cond.Role, nil
}

// timeElapsedEvaluator passes once the instance has sat in its current state
// for at least the configured duration.
type timeElapsedEvaluator struct{}

func (timeElapsedEvaluator) Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error) {
	elapsed := ctx.Now.Sub(ctx.Instance.EnteredCurrentStateAt())
	return elapsed >= unitOf(cond), nil
}

func unitOf(cond domain.Condition) time.Duration {
	switch cond.Unit {
	case domain.UnitHours:
		return time.Duration(cond.Duration) * time.Hour
	case domain.UnitDays:
		return time.Duration(cond.Duration) * 24 * time.Hour
	default:
		return time.Duration(cond.Duration) * time.Minute
	}
}

// customFunctionEvaluator dispatches to a named registered predicate. An
// unknown name fails the condition rather than passing silently.
type customFunctionEvaluator struct {
	registry *conditionRegistry
}

func (e customFunctionEvaluator) Evaluate(cond domain.Condition, ctx ConditionContext) (bool, error) {
	fn, ok := e.registry.lookupFunc(cond.Name)
	if !ok {
		return false, fmt.Errorf("no registered condition function %q", cond.Name)
	}
	return fn(ctx), nil
}

func looseEqual(a, b any) bool {
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			return fa == fb
		}
	}
	return asString(a) == asString(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
