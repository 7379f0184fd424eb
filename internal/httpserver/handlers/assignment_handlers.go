package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/audit"
	"fleetgate/internal/auth"
	"fleetgate/internal/lifecycle"
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
	"fleetgate/internal/validate"
)

func scopeAssignments(q *gorm.DB, claims auth.Claims) *gorm.DB {
	if claims.EffectiveRole() != policy.RoleContractor {
		return q
	}
	if claims.CompanyID == nil {
		return q.Where("1 = 0")
	}
	return q.Where("company_id = ?", *claims.CompanyID)
}

func ListAssignments(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := scopeAssignments(db.Model(&models.Assignment{}), claims).
			Preload("Company").Preload("Inspector")
		if status := r.URL.Query().Get("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		var rows []models.Assignment
		if err := q.Order("scheduled_date desc").Limit(200).Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		// Inspector names are the only sensitive field on an assignment.
		role := claims.EffectiveRole()
		if !policy.Unmasked(role) {
			for i := range rows {
				if rows[i].Inspector != nil {
					rows[i].Inspector.FullName = policy.MaskName(rows[i].Inspector.FullName, role)
				}
			}
		}
		respondJSON(w, rows)
	}
}

func GetAssignment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		var a models.Assignment
		err := scopeAssignments(db.Model(&models.Assignment{}), claims).
			Preload("Company").Preload("Inspector").
			First(&a, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		role := claims.EffectiveRole()
		if a.Inspector != nil && !policy.Unmasked(role) {
			a.Inspector.FullName = policy.MaskName(a.Inspector.FullName, role)
		}
		respondJSON(w, a)
	}
}

func CreateAssignment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CompanyID     string    `json:"company_id"`
			InspectorID   *string   `json:"inspector_id"`
			ScheduledDate time.Time `json:"scheduled_date"`
			Notes         *string   `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.CompanyID == "" || req.ScheduledDate.IsZero() {
			respondError(w, http.StatusBadRequest, "company_id and scheduled_date required")
			return
		}
		var c models.Company
		if err := db.First(&c, "id = ?", req.CompanyID).Error; err != nil {
			respondError(w, http.StatusBadRequest, "unknown company")
			return
		}
		claims := auth.FromContext(r.Context())
		a := models.Assignment{
			CompanyID:     req.CompanyID,
			InspectorID:   req.InspectorID,
			ScheduledDate: req.ScheduledDate,
			Status:        string(lifecycle.AssignmentAssigned),
			Notes:         req.Notes,
			CreatedBy:     &claims.Subject,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := db.Create(&a).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "ASSIGN", "assignments", a.ID, nil,
			map[string]any{"company_id": a.CompanyID, "scheduled_date": a.ScheduledDate}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"id": a.ID})
	}
}

// UpdateAssignment edits the editable fields. Changing the scheduled date of
// a still-assigned assignment auto-transitions it to rescheduled; any other
// edit leaves the status alone. Done assignments refuse all edits.
func UpdateAssignment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CompanyID     *string    `json:"company_id"`
			InspectorID   *string    `json:"inspector_id"`
			ScheduledDate *time.Time `json:"scheduled_date"`
			Notes         *string    `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var a models.Assignment
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := lifecycle.AssignmentStatus(a.Status)
		if !lifecycle.CanEditAssignment(cur) {
			respondError(w, http.StatusConflict, "assignment is done and can no longer be edited")
			return
		}
		old := map[string]any{"status": a.Status, "scheduled_date": a.ScheduledDate}

		dateChanged := false
		if req.ScheduledDate != nil && !req.ScheduledDate.Equal(a.ScheduledDate) {
			a.ScheduledDate = *req.ScheduledDate
			dateChanged = true
		}
		if req.CompanyID != nil && *req.CompanyID != "" {
			a.CompanyID = *req.CompanyID
		}
		if req.InspectorID != nil {
			a.InspectorID = req.InspectorID
		}
		if req.Notes != nil {
			a.Notes = validate.SanitizeField(*req.Notes, 1000)
		}
		a.Status = string(lifecycle.NextAssignmentStatus(cur, dateChanged))
		a.UpdatedAt = time.Now()
		if err := db.Save(&a).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "assignments", a.ID, old,
			map[string]any{"status": a.Status, "scheduled_date": a.ScheduledDate}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"updated": true, "status": a.Status})
	}
}

// SetAssignmentStatus handles the explicit transitions: mark done, mark
// delayed. Rescheduled is not reachable here; it only happens as an edit
// side effect.
func SetAssignmentStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var kind lifecycle.AssignmentActionKind
		switch lifecycle.AssignmentStatus(req.Status) {
		case lifecycle.AssignmentDone:
			kind = lifecycle.AssignmentMarkDone
		case lifecycle.AssignmentDelayed:
			kind = lifecycle.AssignmentMarkDelayed
		default:
			respondError(w, http.StatusBadRequest, "status must be done or delayed")
			return
		}
		var a models.Assignment
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := lifecycle.AssignmentStatus(a.Status)
		act := lifecycle.AssignmentAction{Kind: kind}
		if !lifecycle.CanTransitionAssignment(cur, act, auth.FromContext(r.Context()).EffectiveRole()) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		next, err := lifecycle.ApplyAssignment(cur, act)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		res := db.Model(&models.Assignment{}).Where("id = ?", a.ID).
			Updates(map[string]any{"status": string(next), "updated_at": time.Now()})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "assignments", a.ID,
			map[string]any{"status": a.Status}, map[string]any{"status": string(next)}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"status": string(next)})
	}
}

// CreateInspectionFromAssignment is the side-channel action: it requires the
// assignment be non-done but is not itself a status transition.
func CreateInspectionFromAssignment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VehicleEquipmentID string  `json:"vehicle_equipment_id"`
			InspectionType     string  `json:"inspection_type"`
			Notes              *string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var a models.Assignment
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if !lifecycle.CanCreateInspectionFrom(lifecycle.AssignmentStatus(a.Status)) {
			respondError(w, http.StatusConflict, "assignment is done")
			return
		}
		if req.VehicleEquipmentID == "" {
			respondError(w, http.StatusBadRequest, "vehicle_equipment_id required")
			return
		}
		var v models.VehicleEquipment
		if err := db.First(&v, "id = ?", req.VehicleEquipmentID).Error; err != nil {
			respondError(w, http.StatusBadRequest, "unknown vehicle")
			return
		}
		if a.CompanyID != "" && (v.CompanyID == nil || *v.CompanyID != a.CompanyID) {
			respondError(w, http.StatusBadRequest, "vehicle does not belong to the assignment's company")
			return
		}
		itype := req.InspectionType
		if itype == "" {
			itype = string(lifecycle.TypeRoutine)
		}
		if !lifecycle.InspectionType(itype).Valid() {
			respondError(w, http.StatusBadRequest, "invalid inspection_type")
			return
		}
		claims := auth.FromContext(r.Context())
		in := models.Inspection{
			VehicleEquipmentID:  req.VehicleEquipmentID,
			AssignmentID:        &a.ID,
			InspectionType:      itype,
			AssignedInspectorID: a.InspectorID,
			AssignedBy:          &claims.Subject,
			ScheduledDate:       a.ScheduledDate,
			Result:              string(lifecycle.ResultPending),
			Status:              string(lifecycle.InspectionScheduled),
			Notes:               req.Notes,
			CreatedAt:           time.Now(),
			UpdatedAt:           time.Now(),
		}
		if err := db.Create(&in).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "inspections", in.ID, nil,
			map[string]any{"assignment_id": a.ID, "vehicle_equipment_id": in.VehicleEquipmentID}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"id": in.ID})
	}
}
