package domain

import "time"

// StateType classifies a state within a workflow definition.
type StateType string

const (
	StateStart        StateType = "start"
	StateIntermediate StateType = "intermediate"
	StateEnd          StateType = "end"
)

// ConditionType identifies the predicate kind used to guard a transition.
type ConditionType string

const (
	ConditionFieldValue     ConditionType = "field_value"
	ConditionApprovalStatus ConditionType = "approval_status"
	ConditionUserRole       ConditionType = "user_role"
	ConditionTimeElapsed    ConditionType = "time_elapsed"
	ConditionCustomFunction ConditionType = "custom_function"
)

// Operator is the comparison used by a field_value condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorExists      Operator = "exists"
)

// ApprovalExpectedNone is the sentinel expected value that makes an
// approval_status condition pass when no approvals have been recorded yet.
const ApprovalExpectedNone = "none"

// ActionType tags a declarative side effect with the handler that executes it.
type ActionType string

const (
	ActionNotification    ActionType = "notification"
	ActionEmail           ActionType = "email"
	ActionSMS             ActionType = "sms"
	ActionWebhook         ActionType = "webhook"
	ActionDatabaseUpdate  ActionType = "database_update"
	ActionApprovalRequest ActionType = "approval_request"
	ActionFileGeneration  ActionType = "file_generation"
)

// TimeoutAction is what the escalation scheduler does when a state timeout is breached.
type TimeoutAction string

const (
	TimeoutEscalate    TimeoutAction = "escalate"
	TimeoutAutoApprove TimeoutAction = "auto_approve"
	TimeoutAutoReject  TimeoutAction = "auto_reject"
	TimeoutNotify      TimeoutAction = "notify"
)

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// TimeUnit qualifies the Duration field of timeouts and escalation rules.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
)

// WorkflowDefinition is the immutable template of one business process:
// its states, the guarded transitions between them, the roles that may act
// on it and workflow level settings. Definitions are registered once at
// configuration time and never mutated afterwards.
type WorkflowDefinition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
	Roles       []string     `json:"roles,omitempty"`
	Settings    Settings     `json:"settings"`
}

// StateByID returns the state with the given id, if it exists.
func (d *WorkflowDefinition) StateByID(id string) (*State, bool) {
	for i := range d.States {
		if d.States[i].ID == id {
			return &d.States[i], true
		}
	}
	return nil, false
}

// InitialState returns the state flagged as initial, if any.
func (d *WorkflowDefinition) InitialState() (*State, bool) {
	for i := range d.States {
		if d.States[i].IsInitial {
			return &d.States[i], true
		}
	}
	return nil, false
}

// TransitionByID returns the transition with the given id whose from state
// matches the supplied state. A transition id valid for a different from
// state is treated as absent so stale requests resolve to not found.
func (d *WorkflowDefinition) TransitionByID(id, from string) (*Transition, bool) {
	for i := range d.Transitions {
		if d.Transitions[i].ID == id && d.Transitions[i].From == from {
			return &d.Transitions[i], true
		}
	}
	return nil, false
}

// TransitionsFrom returns every transition leaving the given state.
func (d *WorkflowDefinition) TransitionsFrom(from string) []Transition {
	var out []Transition
	for _, t := range d.Transitions {
		if t.From == from {
			out = append(out, t)
		}
	}
	return out
}

// State is one named point in a process. Entry actions run every time an
// instance enters the state; timeouts feed the escalation scheduler.
type State struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           StateType           `json:"type"`
	IsInitial      bool                `json:"isInitial,omitempty"`
	IsFinal        bool                `json:"isFinal,omitempty"`
	EntryActions   []Action            `json:"entryActions,omitempty"`
	Timeouts       []StateTimeout      `json:"timeouts,omitempty"`
	Permissions    map[string][]string `json:"permissions,omitempty"` // role -> permissions granted while in this state
	RequiredFields []string            `json:"requiredFields,omitempty"`
}

// Transition is a directed edge between two states. RequiredRole and
// RequiredPermissions gate who may fire it; Conditions are AND combined.
type Transition struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	From                string      `json:"from"`
	To                  string      `json:"to"`
	RequiredRole        string      `json:"requiredRole,omitempty"`
	RequiredPermissions []string    `json:"requiredPermissions,omitempty"`
	Conditions          []Condition `json:"conditions,omitempty"`
	Actions             []Action    `json:"actions,omitempty"`
}

// Condition guards a transition. The Type decides which fields are read:
// field_value uses Field/Operator/Value, approval_status uses Expected,
// user_role uses Role, time_elapsed uses Duration/Unit and custom_function
// uses Name to look up a registered predicate.
type Condition struct {
	Type     ConditionType `json:"type"`
	Field    string        `json:"field,omitempty"`
	Operator Operator      `json:"operator,omitempty"`
	Value    any           `json:"value,omitempty"`
	Expected string        `json:"expected,omitempty"`
	Role     string        `json:"role,omitempty"`
	Duration int           `json:"duration,omitempty"`
	Unit     TimeUnit      `json:"unit,omitempty"`
	Name     string        `json:"name,omitempty"`
}

// Action is a declarative side effect attached to a state entry or a
// transition. Actions run in ascending Order; IsAsync actions must not block
// the transition that triggered them.
type Action struct {
	ID      string         `json:"id"`
	Type    ActionType     `json:"type"`
	Name    string         `json:"name,omitempty"`
	Order   int            `json:"order,omitempty"`
	IsAsync bool           `json:"isAsync,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Retry   *RetryPolicy   `json:"retryPolicy,omitempty"`
}

// RetryPolicy declares that a failed action should be retried.
type RetryPolicy struct {
	MaxRetries int             `json:"maxRetries"`
	Backoff    BackoffStrategy `json:"backoff"`
	Delay      time.Duration   `json:"delay"`
}

// Settings carries workflow level configuration: escalation rules evaluated
// across all running instances and the optional business hours window used
// when interpreting timeout durations.
type Settings struct {
	DefaultTimeout  time.Duration    `json:"defaultTimeout,omitempty"`
	EscalationRules []EscalationRule `json:"escalationRules,omitempty"`
	BusinessHours   *BusinessHours   `json:"businessHours,omitempty"`
}

// StateTimeout configures one automatic response to an instance sitting in a
// state for too long. Transition names the transition id fired by
// auto_approve and auto_reject.
type StateTimeout struct {
	Duration   int           `json:"duration"`
	Unit       TimeUnit      `json:"unit"`
	Action     TimeoutAction `json:"action"`
	Target     string        `json:"target,omitempty"`
	Message    string        `json:"message,omitempty"`
	Transition string        `json:"transition,omitempty"`
}

// AsDuration converts the timeout to a wall clock duration.
func (t StateTimeout) AsDuration() time.Duration {
	return unitDuration(t.Duration, t.Unit)
}

// EscalationRule is a workflow level timeout: once Delay has passed and the
// condition holds, the configured action fires.
type EscalationRule struct {
	Condition *Condition    `json:"condition,omitempty"`
	Delay     int           `json:"delay"`
	Unit      TimeUnit      `json:"unit"`
	Action    TimeoutAction `json:"action"`
	Target    string        `json:"target,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// AsDuration converts the rule delay to a wall clock duration.
func (r EscalationRule) AsDuration() time.Duration {
	return unitDuration(r.Delay, r.Unit)
}

func unitDuration(n int, unit TimeUnit) time.Duration {
	switch unit {
	case UnitHours:
		return time.Duration(n) * time.Hour
	case UnitDays:
		return time.Duration(n) * 24 * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}
