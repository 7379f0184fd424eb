package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
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

type inspectionDTO struct {
	ID             string                 `json:"id"`
	VehicleID      string                 `json:"vehicle_equipment_id"`
	AssignmentID   *string                `json:"assignment_id,omitempty"`
	InspectionType string                 `json:"inspection_type"`
	InspectorID    *string                `json:"assigned_inspector_id,omitempty"`
	InspectorName  *string                `json:"inspector_name,omitempty"`
	ScheduledDate  time.Time              `json:"scheduled_date"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	Result         string                 `json:"result"`
	FailureReasons []string               `json:"failure_reasons,omitempty"`
	FailureRemark  *string                `json:"failure_remark,omitempty"`
	FailureReason  string                 `json:"failure_reason,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	VerifiedBy     *string                `json:"verified_by,omitempty"`
	VerifiedAt     *time.Time             `json:"verified_at,omitempty"`
	Status         string                 `json:"status"`
	Vehicle        *vehicleDTO            `json:"vehicle_equipment,omitempty"`
	Checklist      []models.ChecklistItem `json:"checklist_items,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// formatFailureReason renders the structured reasons in the legacy
// comma-joined form, "Brakes, Oil Leak, Other: <remark>".
func formatFailureReason(reasons []string, remark *string) string {
	parts := append([]string(nil), reasons...)
	if remark != nil && *remark != "" {
		parts = append(parts, "Other: "+*remark)
	}
	return strings.Join(parts, ", ")
}

func maskInspection(in models.Inspection, role policy.Role, now time.Time) inspectionDTO {
	dto := inspectionDTO{
		ID:             in.ID,
		VehicleID:      in.VehicleEquipmentID,
		AssignmentID:   in.AssignmentID,
		InspectionType: in.InspectionType,
		InspectorID:    in.AssignedInspectorID,
		ScheduledDate:  in.ScheduledDate,
		StartedAt:      in.StartedAt,
		CompletedAt:    in.CompletedAt,
		Result:         in.Result,
		FailureRemark:  in.FailureRemark,
		Notes:          in.Notes,
		VerifiedBy:     in.VerifiedBy,
		VerifiedAt:     in.VerifiedAt,
		Status:         in.Status,
		Checklist:      in.ChecklistItems,
		CreatedAt:      in.CreatedAt,
	}
	for _, fr := range in.FailureReasons {
		dto.FailureReasons = append(dto.FailureReasons, fr.Name)
	}
	dto.FailureReason = formatFailureReason(dto.FailureReasons, in.FailureRemark)
	if in.Inspector != nil {
		name := policy.MaskName(in.Inspector.FullName, role)
		dto.InspectorName = &name
	}
	if in.VehicleEquipment != nil {
		v := maskVehicle(*in.VehicleEquipment, role, now)
		dto.Vehicle = &v
	}
	return dto
}

// scopeInspections mirrors scopeVehicles: contractors only see inspections of
// their own company's vehicles.
func scopeInspections(q *gorm.DB, claims auth.Claims) *gorm.DB {
	if claims.EffectiveRole() != policy.RoleContractor {
		return q
	}
	if claims.CompanyID == nil {
		return q.Where("1 = 0")
	}
	return q.Where("vehicle_equipment_id IN (?)",
		q.Session(&gorm.Session{NewDB: true}).Model(&models.VehicleEquipment{}).
			Select("id").Where("company_id = ?", *claims.CompanyID))
}

func ListInspections(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := scopeInspections(db.Model(&models.Inspection{}), claims).
			Preload("VehicleEquipment").Preload("Inspector").Preload("FailureReasons")
		if status := r.URL.Query().Get("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if vid := r.URL.Query().Get("vehicle_equipment_id"); vid != "" {
			q = q.Where("vehicle_equipment_id = ?", vid)
		}
		if r.URL.Query().Get("unverified") == "1" {
			q = q.Where("status = ? AND verified_at IS NULL", string(lifecycle.InspectionCompleted))
		}
		var rows []models.Inspection
		if err := q.Order("scheduled_date desc").Limit(200).Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		role := claims.EffectiveRole()
		now := time.Now()
		out := make([]inspectionDTO, 0, len(rows))
		for _, in := range rows {
			out = append(out, maskInspection(in, role, now))
		}
		respondJSON(w, out)
	}
}

func GetInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		var in models.Inspection
		err := scopeInspections(db.Model(&models.Inspection{}), claims).
			Preload("VehicleEquipment").Preload("Inspector").
			Preload("FailureReasons").Preload("ChecklistItems").
			First(&in, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, maskInspection(in, claims.EffectiveRole(), time.Now()))
	}
}

func CreateInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VehicleEquipmentID string    `json:"vehicle_equipment_id"`
			InspectionType     string    `json:"inspection_type"`
			InspectorID        *string   `json:"assigned_inspector_id"`
			ScheduledDate      time.Time `json:"scheduled_date"`
			Notes              *string   `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.VehicleEquipmentID == "" || req.ScheduledDate.IsZero() {
			respondError(w, http.StatusBadRequest, "vehicle_equipment_id and scheduled_date required")
			return
		}
		if !lifecycle.InspectionType(req.InspectionType).Valid() {
			respondError(w, http.StatusBadRequest, "invalid inspection_type")
			return
		}
		var v models.VehicleEquipment
		if err := db.First(&v, "id = ?", req.VehicleEquipmentID).Error; err != nil {
			respondError(w, http.StatusBadRequest, "unknown vehicle")
			return
		}
		claims := auth.FromContext(r.Context())
		in := models.Inspection{
			VehicleEquipmentID:  req.VehicleEquipmentID,
			InspectionType:      req.InspectionType,
			AssignedInspectorID: req.InspectorID,
			AssignedBy:          &claims.Subject,
			ScheduledDate:       req.ScheduledDate,
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
			map[string]any{"vehicle_equipment_id": in.VehicleEquipmentID, "inspection_type": in.InspectionType}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"id": in.ID})
	}
}

func StartInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.Inspection
		if err := db.First(&in, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := inspectionState(in)
		act := lifecycle.InspectionAction{Kind: lifecycle.InspectionStart}
		if !lifecycle.CanTransitionInspection(cur, act, auth.FromContext(r.Context()).EffectiveRole()) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		now := time.Now()
		err := db.Model(&models.Inspection{}).Where("id = ?", in.ID).
			Updates(map[string]any{
				"status":     string(lifecycle.InspectionInProgress),
				"started_at": now,
				"updated_at": now,
			}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, map[string]any{"status": string(lifecycle.InspectionInProgress)})
	}
}

func inspectionState(in models.Inspection) lifecycle.InspectionState {
	return lifecycle.InspectionState{
		Status:   lifecycle.InspectionStatus(in.Status),
		Result:   lifecycle.InspectionResult(in.Result),
		Verified: in.VerifiedAt != nil,
	}
}

type checklistItemReq struct {
	ItemName        string  `json:"item_name"`
	ItemDescription *string `json:"item_description"`
	Passed          *bool   `json:"passed"`
	Notes           *string `json:"notes"`
}

// SubmitInspection records the result. Fail requires at least one canonical
// reason or a non-empty remark; the check runs before any write. Checklist
// items are appended once here and never touched again.
func SubmitInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Result           string             `json:"result"`
			FailureReasonIDs []string           `json:"failure_reason_ids"`
			FailureRemark    *string            `json:"failure_remark"`
			Notes            *string            `json:"notes"`
			Checklist        []checklistItemReq `json:"checklist_items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var in models.Inspection
		if err := db.First(&in, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		claims := auth.FromContext(r.Context())
		role := claims.EffectiveRole()
		// Submission belongs to the assigned inspector; owner/admin may step in.
		if role == policy.RoleInspector && in.AssignedInspectorID != nil && *in.AssignedInspectorID != claims.Subject {
			respondError(w, http.StatusForbidden, "inspection is assigned to another inspector")
			return
		}

		remark := ""
		if req.FailureRemark != nil {
			remark = validate.SanitizeText(*req.FailureRemark)
		}
		var reasons []models.FailureReason
		if len(req.FailureReasonIDs) > 0 {
			if err := db.Where("id IN ? AND is_active = ?", req.FailureReasonIDs, true).Find(&reasons).Error; err != nil || len(reasons) != len(req.FailureReasonIDs) {
				respondError(w, http.StatusBadRequest, "unknown failure reason")
				return
			}
		}
		act := lifecycle.InspectionAction{
			Kind:             lifecycle.InspectionSubmit,
			Result:           lifecycle.InspectionResult(req.Result),
			HasFailureReason: len(reasons) > 0 || remark != "",
		}
		cur := inspectionState(in)
		if !lifecycle.CanTransitionInspection(cur, act, role) {
			if act.Result == lifecycle.ResultFail && !act.HasFailureReason {
				respondError(w, http.StatusBadRequest, "a failed inspection needs at least one failure reason")
				return
			}
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		next, err := lifecycle.ApplyInspection(cur, act)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		now := time.Now()
		updates := map[string]any{
			"result":       string(next.Result),
			"status":       string(next.Status),
			"completed_at": now,
			"updated_at":   now,
		}
		if req.Notes != nil {
			updates["notes"] = validate.SanitizeField(*req.Notes, 1000)
		}
		if next.Result == lifecycle.ResultFail && remark != "" {
			updates["failure_remark"] = remark
		} else {
			updates["failure_remark"] = nil
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Inspection{}).Where("id = ?", in.ID).Updates(updates).Error; err != nil {
				return err
			}
			if next.Result == lifecycle.ResultFail {
				if err := tx.Model(&in).Association("FailureReasons").Replace(reasons); err != nil {
					return err
				}
			}
			for _, item := range req.Checklist {
				name := validate.SanitizeText(item.ItemName)
				if name == "" {
					continue
				}
				row := models.ChecklistItem{
					InspectionID:    in.ID,
					ItemName:        name,
					ItemDescription: item.ItemDescription,
					Passed:          item.Passed,
					Notes:           item.Notes,
					CheckedAt:       &now,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "SUBMIT", "inspections", in.ID,
			map[string]any{"status": in.Status, "result": in.Result},
			map[string]any{"status": string(next.Status), "result": string(next.Result)}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"status": string(next.Status), "result": string(next.Result)})
	}
}

// CancelInspection is the only way to retire an inspection; rows are never
// hard-deleted.
func CancelInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.Inspection
		if err := db.First(&in, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := inspectionState(in)
		act := lifecycle.InspectionAction{Kind: lifecycle.InspectionCancel}
		if !lifecycle.CanTransitionInspection(cur, act, auth.FromContext(r.Context()).EffectiveRole()) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		err := db.Model(&models.Inspection{}).Where("id = ?", in.ID).
			Updates(map[string]any{"status": string(lifecycle.InspectionCancelled), "updated_at": time.Now()}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "inspections", in.ID,
			map[string]any{"status": in.Status}, map[string]any{"status": string(lifecycle.InspectionCancelled)}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"status": string(lifecycle.InspectionCancelled)})
	}
}

// VerifyInspection is the one at-most-once step in the system. The UPDATE is
// conditioned on verified_at IS NULL so two concurrent verifier sessions
// cannot both win; zero rows affected means someone else already verified.
func VerifyInspection(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.Inspection
		if err := db.First(&in, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		claims := auth.FromContext(r.Context())
		cur := inspectionState(in)
		act := lifecycle.InspectionAction{Kind: lifecycle.InspectionVerify}
		if !lifecycle.CanTransitionInspection(cur, act, claims.EffectiveRole()) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		now := time.Now()
		res := db.Model(&models.Inspection{}).
			Where("id = ? AND verified_at IS NULL AND status = ?", in.ID, string(lifecycle.InspectionCompleted)).
			Updates(map[string]any{
				"verified_by": claims.Subject,
				"verified_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusConflict, "already verified")
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "inspections", in.ID,
			map[string]any{"verified_at": nil}, map[string]any{"verified_at": now}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"verified": true})
	}
}
