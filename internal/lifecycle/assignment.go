package lifecycle

import (
	"fleetgate/internal/policy"
)

type AssignmentStatus string

const (
	AssignmentAssigned    AssignmentStatus = "assigned"
	AssignmentRescheduled AssignmentStatus = "rescheduled"
	AssignmentDone        AssignmentStatus = "done"
	AssignmentDelayed     AssignmentStatus = "delayed"
)

type AssignmentActionKind string

const (
	// AssignmentReschedule is not triggerable directly: it fires as a side
	// effect of editing scheduled_date while the assignment is still assigned.
	AssignmentReschedule  AssignmentActionKind = "reschedule"
	AssignmentMarkDone    AssignmentActionKind = "mark_done"
	AssignmentMarkDelayed AssignmentActionKind = "mark_delayed"
)

type AssignmentAction struct {
	Kind AssignmentActionKind
}

// CanTransitionAssignment reports whether role may apply act to cur.
// Done is terminal.
func CanTransitionAssignment(cur AssignmentStatus, act AssignmentAction, role policy.Role) bool {
	if cur == AssignmentDone {
		return false
	}
	switch act.Kind {
	case AssignmentReschedule:
		return cur == AssignmentAssigned && policy.IsStaff(role)
	case AssignmentMarkDone:
		return policy.IsStaff(role)
	case AssignmentMarkDelayed:
		return cur != AssignmentDelayed && policy.IsStaff(role)
	}
	return false
}

// ApplyAssignment computes the next status for a legal action.
func ApplyAssignment(cur AssignmentStatus, act AssignmentAction) (AssignmentStatus, error) {
	if cur == AssignmentDone {
		return cur, ErrIllegalTransition
	}
	switch act.Kind {
	case AssignmentReschedule:
		if cur != AssignmentAssigned {
			return cur, ErrIllegalTransition
		}
		return AssignmentRescheduled, nil
	case AssignmentMarkDone:
		return AssignmentDone, nil
	case AssignmentMarkDelayed:
		if cur == AssignmentDelayed {
			return cur, ErrIllegalTransition
		}
		return AssignmentDelayed, nil
	}
	return cur, ErrIllegalTransition
}

// CanEditAssignment reports whether an assignment's fields may still be
// edited at all. Done assignments are frozen.
func CanEditAssignment(cur AssignmentStatus) bool {
	return cur != AssignmentDone
}

// NextAssignmentStatus is the edit-time side effect: changing the scheduled
// date of a still-assigned assignment moves it to rescheduled; any other edit
// leaves the status alone.
func NextAssignmentStatus(cur AssignmentStatus, dateChanged bool) AssignmentStatus {
	if dateChanged && cur == AssignmentAssigned {
		return AssignmentRescheduled
	}
	return cur
}

// CanCreateInspectionFrom reports whether an inspection may be created from
// an assignment. This is a side-channel action, not a status transition.
func CanCreateInspectionFrom(cur AssignmentStatus) bool {
	return cur != AssignmentDone
}
