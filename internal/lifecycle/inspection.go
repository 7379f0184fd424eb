package lifecycle

import (
	"fleetgate/internal/policy"
)

type InspectionStatus string

const (
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
	InspectionCancelled  InspectionStatus = "cancelled"
)

type InspectionResult string

const (
	ResultPass    InspectionResult = "pass"
	ResultFail    InspectionResult = "fail"
	ResultPending InspectionResult = "pending"
)

type InspectionType string

const (
	TypeRoutine      InspectionType = "routine"
	TypeFollowUp     InspectionType = "follow_up"
	TypeReInspection InspectionType = "re_inspection"
)

func (t InspectionType) Valid() bool {
	return t == TypeRoutine || t == TypeFollowUp || t == TypeReInspection
}

// InspectionState is the transition-relevant slice of an inspection row.
type InspectionState struct {
	Status   InspectionStatus
	Result   InspectionResult
	Verified bool
}

type InspectionActionKind string

const (
	InspectionStart  InspectionActionKind = "start"
	InspectionSubmit InspectionActionKind = "submit"
	InspectionCancel InspectionActionKind = "cancel"
	InspectionVerify InspectionActionKind = "verify"
)

// InspectionAction describes a requested transition. Submit carries the
// result and whether a failure reason (canonical tag or free-text remark)
// accompanies it.
type InspectionAction struct {
	Kind             InspectionActionKind
	Result           InspectionResult
	HasFailureReason bool
}

// CanTransitionInspection reports whether role may apply act to cur.
// Completed and cancelled are terminal except for the one-time verify step.
func CanTransitionInspection(cur InspectionState, act InspectionAction, role policy.Role) bool {
	switch act.Kind {
	case InspectionStart:
		return cur.Status == InspectionScheduled && policy.IsStaff(role)
	case InspectionSubmit:
		if cur.Status != InspectionScheduled && cur.Status != InspectionInProgress {
			return false
		}
		if act.Result != ResultPass && act.Result != ResultFail {
			return false
		}
		if act.Result == ResultFail && !act.HasFailureReason {
			return false
		}
		return policy.IsStaff(role)
	case InspectionCancel:
		if cur.Status != InspectionScheduled && cur.Status != InspectionInProgress {
			return false
		}
		return role == policy.RoleOwner || role == policy.RoleAdmin
	case InspectionVerify:
		// Write-once: the conditional update on verified_at closes the race
		// between two verifier sessions; this gate keeps the action hidden.
		return cur.Status == InspectionCompleted && !cur.Verified && role == policy.RoleVerifier
	}
	return false
}

// ApplyInspection computes the next state for a legal action.
func ApplyInspection(cur InspectionState, act InspectionAction) (InspectionState, error) {
	switch act.Kind {
	case InspectionStart:
		if cur.Status != InspectionScheduled {
			return cur, ErrIllegalTransition
		}
		return InspectionState{Status: InspectionInProgress, Result: cur.Result}, nil
	case InspectionSubmit:
		if cur.Status != InspectionScheduled && cur.Status != InspectionInProgress {
			return cur, ErrIllegalTransition
		}
		if act.Result != ResultPass && act.Result != ResultFail {
			return cur, ErrIllegalTransition
		}
		if act.Result == ResultFail && !act.HasFailureReason {
			return cur, ErrIllegalTransition
		}
		return InspectionState{Status: InspectionCompleted, Result: act.Result}, nil
	case InspectionCancel:
		if cur.Status != InspectionScheduled && cur.Status != InspectionInProgress {
			return cur, ErrIllegalTransition
		}
		return InspectionState{Status: InspectionCancelled, Result: cur.Result}, nil
	case InspectionVerify:
		if cur.Status != InspectionCompleted || cur.Verified {
			return cur, ErrIllegalTransition
		}
		return InspectionState{Status: InspectionCompleted, Result: cur.Result, Verified: true}, nil
	}
	return cur, ErrIllegalTransition
}
