package domain

import "slices"

// Participant is the already-authenticated acting user handed to the engine.
// Resolving credentials into a participant is the caller's concern.
type Participant struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermissions reports whether the participant's permission set is a
// superset of required.
func (p Participant) HasPermissions(required []string) bool {
	for _, r := range required {
		if !slices.Contains(p.Permissions, r) {
			return false
		}
	}
	return true
}

// SystemParticipant is the actor recorded for engine-synthesized mutations
// such as auto approvals fired by the escalation scheduler.
var SystemParticipant = Participant{ID: "system", Name: "System"}
