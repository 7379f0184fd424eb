// Package lifecycle encodes the legal state transitions for vehicles,
// inspections and assignments in one place. Handlers consult CanTransition*
// to decide whether to accept an action and Apply* to compute the next state;
// anything not listed here is illegal.
package lifecycle

import (
	"errors"
	"time"

	"fleetgate/internal/policy"
)

type VehicleStatus string

const (
	VehicleVerified       VehicleStatus = "verified"
	VehicleUpdateRequired VehicleStatus = "updated_inspection_required"
	VehicleOverdue        VehicleStatus = "inspection_overdue"
	VehicleRejected       VehicleStatus = "rejected"
	VehicleBlacklisted    VehicleStatus = "blacklisted"
)

var AllVehicleStatuses = []VehicleStatus{
	VehicleVerified, VehicleUpdateRequired, VehicleOverdue, VehicleRejected, VehicleBlacklisted,
}

func (s VehicleStatus) Valid() bool {
	for _, v := range AllVehicleStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// VehicleState pairs the stored status with the blacklist override flag.
// The flag takes precedence over the status wherever both are read together.
type VehicleState struct {
	Status      VehicleStatus
	Blacklisted bool
}

type VehicleActionKind string

const (
	VehicleSetStatus   VehicleActionKind = "set_status"
	VehicleBlacklist   VehicleActionKind = "blacklist"
	VehicleUnblacklist VehicleActionKind = "unblacklist"
)

// VehicleAction describes one requested transition. Target is required for
// set_status; for unblacklist it is optional and defaults to
// updated_inspection_required.
type VehicleAction struct {
	Kind   VehicleActionKind
	Target VehicleStatus
}

var ErrIllegalTransition = errors.New("illegal state transition")

// CanTransitionVehicle reports whether role may apply act to cur.
func CanTransitionVehicle(cur VehicleState, act VehicleAction, role policy.Role) bool {
	switch act.Kind {
	case VehicleBlacklist:
		return role == policy.RoleOwner || role == policy.RoleAdmin
	case VehicleUnblacklist:
		if !cur.Blacklisted {
			return false
		}
		if act.Target != "" && (!act.Target.Valid() || act.Target == VehicleBlacklisted) {
			return false
		}
		return role == policy.RoleOwner || role == policy.RoleAdmin
	case VehicleSetStatus:
		// Direct status selection never enters or leaves the blacklist;
		// that goes through the dedicated actions above.
		if cur.Blacklisted || act.Target == VehicleBlacklisted || !act.Target.Valid() {
			return false
		}
		return policy.IsStaff(role)
	}
	return false
}

// ApplyVehicle computes the next state for a legal action. Role legality is
// CanTransitionVehicle's concern; ApplyVehicle validates only state shape.
func ApplyVehicle(cur VehicleState, act VehicleAction) (VehicleState, error) {
	switch act.Kind {
	case VehicleBlacklist:
		return VehicleState{Status: VehicleBlacklisted, Blacklisted: true}, nil
	case VehicleUnblacklist:
		if !cur.Blacklisted {
			return cur, ErrIllegalTransition
		}
		target := act.Target
		if target == "" {
			target = VehicleUpdateRequired
		}
		if !target.Valid() || target == VehicleBlacklisted {
			return cur, ErrIllegalTransition
		}
		return VehicleState{Status: target, Blacklisted: false}, nil
	case VehicleSetStatus:
		if cur.Blacklisted || act.Target == VehicleBlacklisted || !act.Target.Valid() {
			return cur, ErrIllegalTransition
		}
		return VehicleState{Status: act.Target, Blacklisted: false}, nil
	}
	return cur, ErrIllegalTransition
}

// EffectiveVehicleStatus is the display status: the blacklist flag wins over
// the stored status, and a verified vehicle whose next inspection date has
// elapsed shows as inspection_overdue. The derivation bridges the gap until
// the periodic sweep persists the transition; the store stays authoritative.
func EffectiveVehicleStatus(cur VehicleState, nextInspection *time.Time, now time.Time) VehicleStatus {
	if cur.Blacklisted {
		return VehicleBlacklisted
	}
	if cur.Status == VehicleVerified && nextInspection != nil && nextInspection.Before(now) {
		return VehicleOverdue
	}
	return cur.Status
}
