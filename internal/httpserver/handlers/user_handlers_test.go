package handlers

import (
	"net/http"
	"testing"

	"fleetgate/internal/models"
	"fleetgate/internal/policy"
)

func TestCreateUserRoleGating(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	h := CreateUser(db, lg)

	// Admins cannot mint admins or owners.
	rec := do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleAdmin),
		map[string]any{"email": "a@example.com", "password": "Passw0rdOk", "full_name": "A B", "role": "admin"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin creating admin: code = %d", rec.Code)
	}

	rec = do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleOwner),
		map[string]any{"email": "a@example.com", "password": "Passw0rdOk", "full_name": "A B", "role": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner creating admin: code = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleAdmin),
		map[string]any{"email": "i@example.com", "password": "Passw0rdOk", "full_name": "In Spector", "role": "inspector"})
	if rec.Code != http.StatusOK {
		t.Errorf("admin creating inspector: code = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleAdmin),
		map[string]any{"email": "x@example.com", "password": "Passw0rdOk", "full_name": "X Y", "role": "dispatcher"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown role: code = %d", rec.Code)
	}
}

func TestCreateContractorRequiresCompany(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	h := CreateUser(db, lg)

	rec := do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleAdmin),
		map[string]any{"email": "c@example.com", "password": "Passw0rdOk", "full_name": "C D", "role": "contractor"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("contractor without company: code = %d", rec.Code)
	}

	co := models.Company{Name: "Alpha Logistics"}
	if err := db.Create(&co).Error; err != nil {
		t.Fatal(err)
	}
	rec = do(t, http.MethodPost, "/v1/users", "/v1/users", h, claimsFor(policy.RoleAdmin),
		map[string]any{"email": "c@example.com", "password": "Passw0rdOk", "full_name": "C D",
			"role": "contractor", "company_id": co.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("contractor with company: code = %d, body %s", rec.Code, rec.Body.String())
	}
	var u models.User
	if err := db.First(&u, "email = ?", "c@example.com").Error; err != nil {
		t.Fatal(err)
	}
	if u.CompanyID == nil || *u.CompanyID != co.ID {
		t.Errorf("company not stored: %v", u.CompanyID)
	}
}

func TestUpdateUserDeactivateNotDelete(t *testing.T) {
	db := testDB(t)
	lg := testLogger()
	u := models.User{Email: "i@example.com", PasswordHash: "x", FullName: "In Spector",
		Role: string(policy.RoleInspector), IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	h := UpdateUser(db, lg)

	rec := do(t, http.MethodPatch, "/v1/users/{id}", "/v1/users/"+u.ID, h,
		claimsFor(policy.RoleAdmin), map[string]any{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: code = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.User
	if err := db.First(&got, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("row gone after deactivate: %v", err)
	}
	if got.IsActive {
		t.Error("still active")
	}

	// Role changes are owner-only.
	rec = do(t, http.MethodPatch, "/v1/users/{id}", "/v1/users/"+u.ID, h,
		claimsFor(policy.RoleAdmin), map[string]any{"role": "admin"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin role change: code = %d", rec.Code)
	}
	rec = do(t, http.MethodPatch, "/v1/users/{id}", "/v1/users/"+u.ID, h,
		claimsFor(policy.RoleOwner), map[string]any{"role": "admin"})
	if rec.Code != http.StatusOK {
		t.Errorf("owner role change: code = %d", rec.Code)
	}
}
