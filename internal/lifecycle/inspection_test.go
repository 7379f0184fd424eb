package lifecycle

import (
	"testing"

	"fleetgate/internal/policy"
)

func TestInspectionSubmit(t *testing.T) {
	for _, status := range []InspectionStatus{InspectionScheduled, InspectionInProgress} {
		cur := InspectionState{Status: status, Result: ResultPending}

		if !CanTransitionInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultPass}, policy.RoleInspector) {
			t.Errorf("%s: inspector should submit pass", status)
		}
		next, err := ApplyInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultPass})
		if err != nil || next.Status != InspectionCompleted || next.Result != ResultPass {
			t.Errorf("%s: submit pass: %+v, %v", status, next, err)
		}

		// fail without a failure reason is rejected before any write.
		if CanTransitionInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultFail}, policy.RoleInspector) {
			t.Errorf("%s: fail without reason must be refused", status)
		}
		if _, err := ApplyInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultFail}); err != ErrIllegalTransition {
			t.Errorf("%s: fail without reason: err = %v", status, err)
		}
		next, err = ApplyInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultFail, HasFailureReason: true})
		if err != nil || next.Status != InspectionCompleted || next.Result != ResultFail {
			t.Errorf("%s: submit fail: %+v, %v", status, next, err)
		}

		// pending is not a submittable result.
		if CanTransitionInspection(cur, InspectionAction{Kind: InspectionSubmit, Result: ResultPending}, policy.RoleAdmin) {
			t.Errorf("%s: pending result must be refused", status)
		}
	}
}

func TestInspectionTerminalStates(t *testing.T) {
	completed := InspectionState{Status: InspectionCompleted, Result: ResultPass}
	cancelled := InspectionState{Status: InspectionCancelled, Result: ResultPending}

	for _, cur := range []InspectionState{completed, cancelled} {
		for _, kind := range []InspectionActionKind{InspectionStart, InspectionSubmit, InspectionCancel} {
			act := InspectionAction{Kind: kind, Result: ResultPass, HasFailureReason: true}
			for _, role := range policy.AllRoles {
				if CanTransitionInspection(cur, act, role) {
					t.Errorf("%s on %s by %s must be illegal", kind, cur.Status, role)
				}
			}
			if _, err := ApplyInspection(cur, act); err != ErrIllegalTransition {
				t.Errorf("%s on %s: err = %v", kind, cur.Status, err)
			}
		}
	}
}

func TestInspectionCancel(t *testing.T) {
	cur := InspectionState{Status: InspectionScheduled, Result: ResultPending}
	for _, role := range []policy.Role{policy.RoleOwner, policy.RoleAdmin} {
		if !CanTransitionInspection(cur, InspectionAction{Kind: InspectionCancel}, role) {
			t.Errorf("%s should cancel", role)
		}
	}
	for _, role := range []policy.Role{policy.RoleInspector, policy.RoleContractor, policy.RoleVerifier} {
		if CanTransitionInspection(cur, InspectionAction{Kind: InspectionCancel}, role) {
			t.Errorf("%s must not cancel", role)
		}
	}
	next, err := ApplyInspection(cur, InspectionAction{Kind: InspectionCancel})
	if err != nil || next.Status != InspectionCancelled {
		t.Fatalf("cancel: %+v, %v", next, err)
	}
}

func TestInspectionVerify(t *testing.T) {
	completed := InspectionState{Status: InspectionCompleted, Result: ResultPass}

	if !CanTransitionInspection(completed, InspectionAction{Kind: InspectionVerify}, policy.RoleVerifier) {
		t.Fatal("verifier should verify a completed inspection")
	}
	for _, role := range []policy.Role{policy.RoleOwner, policy.RoleAdmin, policy.RoleInspector, policy.RoleContractor} {
		if CanTransitionInspection(completed, InspectionAction{Kind: InspectionVerify}, role) {
			t.Errorf("%s must not verify", role)
		}
	}

	next, err := ApplyInspection(completed, InspectionAction{Kind: InspectionVerify})
	if err != nil || !next.Verified {
		t.Fatalf("verify: %+v, %v", next, err)
	}

	// Write-once: the action disappears once verified.
	if CanTransitionInspection(next, InspectionAction{Kind: InspectionVerify}, policy.RoleVerifier) {
		t.Error("second verify must be refused")
	}
	if _, err := ApplyInspection(next, InspectionAction{Kind: InspectionVerify}); err != ErrIllegalTransition {
		t.Errorf("second verify: err = %v", err)
	}

	// Verify never applies to anything but completed rows.
	for _, status := range []InspectionStatus{InspectionScheduled, InspectionInProgress, InspectionCancelled} {
		if CanTransitionInspection(InspectionState{Status: status}, InspectionAction{Kind: InspectionVerify}, policy.RoleVerifier) {
			t.Errorf("verify on %s must be illegal", status)
		}
	}
}

func TestInspectionStart(t *testing.T) {
	cur := InspectionState{Status: InspectionScheduled, Result: ResultPending}
	next, err := ApplyInspection(cur, InspectionAction{Kind: InspectionStart})
	if err != nil || next.Status != InspectionInProgress {
		t.Fatalf("start: %+v, %v", next, err)
	}
	if _, err := ApplyInspection(next, InspectionAction{Kind: InspectionStart}); err != ErrIllegalTransition {
		t.Errorf("double start: err = %v", err)
	}
}
