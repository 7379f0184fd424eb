package handlers

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"fleetgate/internal/lifecycle"
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
)

func TestSubmitInspectionFailRequiresReason(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234", Status: string(lifecycle.VehicleUpdateRequired)}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	in := models.Inspection{
		VehicleEquipmentID: v.ID,
		InspectionType:     string(lifecycle.TypeRoutine),
		ScheduledDate:      time.Now(),
		Result:             string(lifecycle.ResultPending),
		Status:             string(lifecycle.InspectionScheduled),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	h := SubmitInspection(db, lg)
	claims := claimsFor(policy.RoleInspector)

	// fail with no reason is rejected before any write.
	rec := do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit", h, claims,
		map[string]any{"result": "fail"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("fail without reason: code = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.Inspection
	if err := db.First(&got, "id = ?", in.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != string(lifecycle.InspectionScheduled) {
		t.Errorf("status mutated on rejected submit: %s", got.Status)
	}

	// fail with a free-text remark completes.
	rec = do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit", h, claims,
		map[string]any{"result": "fail", "failure_remark": "cracked windshield"})
	if rec.Code != http.StatusOK {
		t.Fatalf("fail with remark: code = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := db.First(&got, "id = ?", in.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != string(lifecycle.InspectionCompleted) || got.Result != string(lifecycle.ResultFail) {
		t.Errorf("after submit: status=%s result=%s", got.Status, got.Result)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.FailureRemark == nil || *got.FailureRemark != "cracked windshield" {
		t.Errorf("failure_remark = %v", got.FailureRemark)
	}
}

func TestSubmitInspectionWithCanonicalReasonsAndChecklist(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234"}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	brakes := models.FailureReason{Name: "Brakes", IsActive: true}
	oil := models.FailureReason{Name: "Oil Leak", IsActive: true}
	if err := db.Create(&brakes).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&oil).Error; err != nil {
		t.Fatal(err)
	}
	in := models.Inspection{
		VehicleEquipmentID: v.ID,
		InspectionType:     string(lifecycle.TypeRoutine),
		ScheduledDate:      time.Now(),
		Result:             string(lifecycle.ResultPending),
		Status:             string(lifecycle.InspectionInProgress),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	rec := do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit",
		SubmitInspection(db, lg), claimsFor(policy.RoleInspector),
		map[string]any{
			"result":             "fail",
			"failure_reason_ids": []string{brakes.ID, oil.ID},
			"failure_remark":     "rear light loose",
			"checklist_items": []map[string]any{
				{"item_name": "Brakes", "passed": false, "notes": "soft pedal"},
				{"item_name": "Lights", "passed": true},
			},
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: code = %d, body %s", rec.Code, rec.Body.String())
	}

	var got models.Inspection
	if err := db.Preload("FailureReasons").Preload("ChecklistItems").First(&got, "id = ?", in.ID).Error; err != nil {
		t.Fatal(err)
	}
	if len(got.FailureReasons) != 2 {
		t.Errorf("failure reasons = %d", len(got.FailureReasons))
	}
	if len(got.ChecklistItems) != 2 {
		t.Errorf("checklist items = %d", len(got.ChecklistItems))
	}

	// The legacy display string carries tags plus the Other remark.
	names := make([]string, 0, len(got.FailureReasons))
	for _, fr := range got.FailureReasons {
		names = append(names, fr.Name)
	}
	legacy := formatFailureReason(names, got.FailureRemark)
	if legacy != "Brakes, Oil Leak, Other: rear light loose" && legacy != "Oil Leak, Brakes, Other: rear light loose" {
		t.Errorf("legacy format = %q", legacy)
	}

	// Terminal: a second submit is refused.
	rec = do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit",
		SubmitInspection(db, lg), claimsFor(policy.RoleInspector),
		map[string]any{"result": "pass"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("second submit: code = %d", rec.Code)
	}
}

func TestSubmitInspectionAssignedInspectorOnly(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234"}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	other := "99999999-9999-9999-9999-999999999999"
	in := models.Inspection{
		VehicleEquipmentID:  v.ID,
		InspectionType:      string(lifecycle.TypeRoutine),
		AssignedInspectorID: &other,
		ScheduledDate:       time.Now(),
		Result:              string(lifecycle.ResultPending),
		Status:              string(lifecycle.InspectionScheduled),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	rec := do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit",
		SubmitInspection(db, lg), claimsFor(policy.RoleInspector),
		map[string]any{"result": "pass"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("other inspector: code = %d", rec.Code)
	}

	// Admin may step in.
	rec = do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit",
		SubmitInspection(db, lg), claimsFor(policy.RoleAdmin),
		map[string]any{"result": "pass"})
	if rec.Code != http.StatusOK {
		t.Errorf("admin submit: code = %d, body %s", rec.Code, rec.Body.String())
	}
}

// Two concurrent verify attempts: exactly one conditional write may win.
func TestVerifyInspectionRace(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234"}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	in := models.Inspection{
		VehicleEquipmentID: v.ID,
		InspectionType:     string(lifecycle.TypeRoutine),
		ScheduledDate:      now,
		Result:             string(lifecycle.ResultPass),
		Status:             string(lifecycle.InspectionCompleted),
		CompletedAt:        &now,
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	h := VerifyInspection(db, lg)
	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claims := claimsFor(policy.RoleVerifier)
			rec := do(t, http.MethodPost, "/v1/inspections/{id}/verify", "/v1/inspections/"+in.ID+"/verify", h, claims, nil)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict, http.StatusForbidden:
			conflict++
		default:
			t.Fatalf("unexpected code %d", c)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("codes = %v, want exactly one success", codes)
	}

	var got models.Inspection
	if err := db.First(&got, "id = ?", in.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.VerifiedAt == nil || got.VerifiedBy == nil {
		t.Fatal("verified_at/verified_by not set")
	}

	// A third attempt sees the write-once guard.
	rec := do(t, http.MethodPost, "/v1/inspections/{id}/verify", "/v1/inspections/"+in.ID+"/verify", h,
		claimsFor(policy.RoleVerifier), nil)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusConflict {
		t.Errorf("third verify: code = %d", rec.Code)
	}
}

func TestVerifyInspectionRoleAndStatusGates(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234"}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	in := models.Inspection{
		VehicleEquipmentID: v.ID,
		InspectionType:     string(lifecycle.TypeRoutine),
		ScheduledDate:      time.Now(),
		Result:             string(lifecycle.ResultPending),
		Status:             string(lifecycle.InspectionScheduled),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	// Not completed yet.
	rec := do(t, http.MethodPost, "/v1/inspections/{id}/verify", "/v1/inspections/"+in.ID+"/verify",
		VerifyInspection(db, lg), claimsFor(policy.RoleVerifier), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("verify scheduled: code = %d", rec.Code)
	}
}

func TestCancelInspection(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	v := models.VehicleEquipment{PlateNumber: "ABC1234"}
	if err := db.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	in := models.Inspection{
		VehicleEquipmentID: v.ID,
		InspectionType:     string(lifecycle.TypeRoutine),
		ScheduledDate:      time.Now(),
		Result:             string(lifecycle.ResultPending),
		Status:             string(lifecycle.InspectionScheduled),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatal(err)
	}

	// Inspectors cannot cancel.
	rec := do(t, http.MethodPost, "/v1/inspections/{id}/cancel", "/v1/inspections/"+in.ID+"/cancel",
		CancelInspection(db, lg), claimsFor(policy.RoleInspector), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("inspector cancel: code = %d", rec.Code)
	}

	rec = do(t, http.MethodPost, "/v1/inspections/{id}/cancel", "/v1/inspections/"+in.ID+"/cancel",
		CancelInspection(db, lg), claimsFor(policy.RoleAdmin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin cancel: code = %d", rec.Code)
	}

	// Cancelled is terminal; no submission afterward.
	rec = do(t, http.MethodPost, "/v1/inspections/{id}/submit", "/v1/inspections/"+in.ID+"/submit",
		SubmitInspection(db, lg), claimsFor(policy.RoleAdmin),
		map[string]any{"result": "pass"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("submit after cancel: code = %d", rec.Code)
	}
}
