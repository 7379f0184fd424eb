package handlers

import (
	"net/http"
	"testing"

	"fleetgate/internal/models"
	"fleetgate/internal/policy"
)

func TestFailureReasonUniqueName(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	h := CreateFailureReason(db, lg)

	rec := do(t, http.MethodPost, "/v1/failure-reasons", "/v1/failure-reasons", h,
		claimsFor(policy.RoleAdmin), map[string]any{"name": "Brakes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: code = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, http.MethodPost, "/v1/failure-reasons", "/v1/failure-reasons", h,
		claimsFor(policy.RoleAdmin), map[string]any{"name": "Brakes"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: code = %d", rec.Code)
	}

	rec = do(t, http.MethodPost, "/v1/failure-reasons", "/v1/failure-reasons", h,
		claimsFor(policy.RoleAdmin), map[string]any{"name": "  <b></b>  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty after sanitize: code = %d", rec.Code)
	}
}

func TestFailureReasonDeactivateKeepsHistory(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	fr := models.FailureReason{Name: "Oil Leak", IsActive: true}
	if err := db.Create(&fr).Error; err != nil {
		t.Fatal(err)
	}

	rec := do(t, http.MethodPatch, "/v1/failure-reasons/{id}", "/v1/failure-reasons/"+fr.ID,
		UpdateFailureReason(db, lg), claimsFor(policy.RoleAdmin), map[string]any{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: code = %d", rec.Code)
	}
	var got models.FailureReason
	if err := db.First(&got, "id = ?", fr.ID).Error; err != nil {
		t.Fatalf("row gone after deactivate: %v", err)
	}
	if got.IsActive {
		t.Error("still active")
	}

	// The full list keeps deactivated rows; active=1 hides them.
	var all, active []models.FailureReason
	rec = do(t, http.MethodGet, "/v1/failure-reasons", "/v1/failure-reasons",
		ListFailureReasons(db, lg), claimsFor(policy.RoleAdmin), nil)
	decodeBody(t, rec, &all)
	rec = do(t, http.MethodGet, "/v1/failure-reasons", "/v1/failure-reasons?active=1",
		ListFailureReasons(db, lg), claimsFor(policy.RoleAdmin), nil)
	decodeBody(t, rec, &active)
	if len(all) != 1 || len(active) != 0 {
		t.Errorf("all=%d active=%d", len(all), len(active))
	}
}
