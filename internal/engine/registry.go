package engine

import (
	"fmt"
	"sync"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// definitionRegistry stores validated, immutable workflow definitions keyed
// by id. Registration is all-or-nothing: a definition that fails validation
// leaves the registry untouched.
type definitionRegistry struct {
	mu   sync.RWMutex
	defs map[string]*domain.WorkflowDefinition
}

func newDefinitionRegistry() *definitionRegistry {
	return &definitionRegistry{defs: make(map[string]*domain.WorkflowDefinition)}
}

// register validates and stores a definition. Re-registering an existing id
// overwrites the previous version; running instances keep the definition id
// they were started with and resolve it at transition time.
func (r *definitionRegistry) register(def *domain.WorkflowDefinition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

// get returns the definition or false; read-only lookups never fail loudly.
func (r *definitionRegistry) get(id string) (*domain.WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

func (r *definitionRegistry) list() []*domain.WorkflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.WorkflowDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

func validateDefinition(def *domain.WorkflowDefinition) error {
	if def == nil {
		return &ValidationError{Rule: "definition", Message: "definition is nil"}
	}
	if def.ID == "" {
		return &ValidationError{Rule: "id", Message: "definition id is required"}
	}
	if def.Name == "" {
		return &ValidationError{Rule: "name", Message: "definition name is required"}
	}
	if len(def.States) == 0 {
		return &ValidationError{Rule: "states", Message: "definition must declare at least one state"}
	}

	initials := 0
	finals := 0
	seen := make(map[string]bool, len(def.States))
	for _, s := range def.States {
		if s.ID == "" {
			return &ValidationError{Rule: "states", Message: "every state needs an id"}
		}
		if seen[s.ID] {
			return &ValidationError{Rule: "states", Message: fmt.Sprintf("duplicate state id %q", s.ID)}
		}
		seen[s.ID] = true
		if s.IsInitial {
			initials++
		}
		if s.IsFinal {
			finals++
		}
	}
	if initials != 1 {
		return &ValidationError{Rule: "initial_state", Message: fmt.Sprintf("definition must have exactly one initial state, found %d", initials)}
	}
	if finals == 0 {
		return &ValidationError{Rule: "final_state", Message: "definition must have at least one final state"}
	}

	// Referential checks keep dangling transitions out of the registry so
	// the executor's target state lookup stays defensive only.
	for _, t := range def.Transitions {
		if t.ID == "" {
			return &ValidationError{Rule: "transitions", Message: "every transition needs an id"}
		}
		if !seen[t.From] {
			return &ValidationError{Rule: "transitions", Message: fmt.Sprintf("transition %q references unknown from state %q", t.ID, t.From)}
		}
		if !seen[t.To] {
			return &ValidationError{Rule: "transitions", Message: fmt.Sprintf("transition %q references unknown to state %q", t.ID, t.To)}
		}
	}
	return nil
}
