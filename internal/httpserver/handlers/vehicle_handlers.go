package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
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

// vehicleDTO is the response shape for vehicle rows. Masking happens here,
// over rows the caller was already allowed to fetch; minimal-data roles get
// driver name and national ID dropped entirely.
type vehicleDTO struct {
	ID                 string                `json:"id"`
	PlateNumber        string                `json:"plate_number"`
	DriverName         *string               `json:"driver_name,omitempty"`
	NationalID         *string               `json:"national_id,omitempty"`
	CompanyID          *string               `json:"company_id,omitempty"`
	EquipmentTypeID    *string               `json:"equipment_type_id,omitempty"`
	YearOfManufacture  *int                  `json:"year_of_manufacture,omitempty"`
	Project            *string               `json:"project,omitempty"`
	Gate               *string               `json:"gate,omitempty"`
	Status             string                `json:"status"`
	EffectiveStatus    string                `json:"effective_status"`
	Blacklisted        bool                  `json:"blacklisted"`
	NextInspectionDate *time.Time            `json:"next_inspection_date,omitempty"`
	Company            *models.Company       `json:"company,omitempty"`
	EquipmentType      *models.EquipmentType `json:"equipment_type,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func maskVehicle(v models.VehicleEquipment, role policy.Role, now time.Time) vehicleDTO {
	dto := vehicleDTO{
		ID:                 v.ID,
		PlateNumber:        policy.MaskPlateNumber(v.PlateNumber, role),
		CompanyID:          v.CompanyID,
		EquipmentTypeID:    v.EquipmentTypeID,
		YearOfManufacture:  v.YearOfManufacture,
		Project:            v.Project,
		Gate:               v.Gate,
		Status:             v.Status,
		Blacklisted:        v.Blacklisted,
		NextInspectionDate: v.NextInspectionDate,
		Company:            v.Company,
		EquipmentType:      v.EquipmentType,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
	state := lifecycle.VehicleState{Status: lifecycle.VehicleStatus(v.Status), Blacklisted: v.Blacklisted}
	dto.EffectiveStatus = string(lifecycle.EffectiveVehicleStatus(state, v.NextInspectionDate, now))
	if !policy.IsMinimalDataRole(role) {
		if v.DriverName != nil {
			name := policy.MaskName(*v.DriverName, role)
			dto.DriverName = &name
		}
		if v.NationalID != nil {
			nid := policy.MaskNationalID(*v.NationalID, role)
			dto.NationalID = &nid
		}
	}
	return dto
}

// filterEffectiveStatus expresses the derived display status in SQL, so the
// filter composes with limit/offset instead of shortening pages after the
// fetch. It must mirror lifecycle.EffectiveVehicleStatus exactly.
func filterEffectiveStatus(q *gorm.DB, status string, now time.Time) *gorm.DB {
	switch lifecycle.VehicleStatus(status) {
	case lifecycle.VehicleBlacklisted:
		return q.Where("blacklisted = ?", true)
	case lifecycle.VehicleOverdue:
		return q.Where("blacklisted = ? AND (status = ? OR (status = ? AND next_inspection_date < ?))",
			false, string(lifecycle.VehicleOverdue), string(lifecycle.VehicleVerified), now)
	case lifecycle.VehicleVerified:
		return q.Where("blacklisted = ? AND status = ? AND (next_inspection_date IS NULL OR next_inspection_date >= ?)",
			false, string(lifecycle.VehicleVerified), now)
	default:
		return q.Where("blacklisted = ? AND status = ?", false, status)
	}
}

// scopeVehicles restricts the query for roles that may only see their own
// company's rows. The store-side scoping is the authorization boundary;
// masking above only shapes fields within it.
func scopeVehicles(q *gorm.DB, claims auth.Claims) *gorm.DB {
	if claims.EffectiveRole() != policy.RoleContractor {
		return q
	}
	if claims.CompanyID == nil {
		return q.Where("1 = 0")
	}
	return q.Where("company_id = ?", *claims.CompanyID)
}

func ListVehicles(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		role := claims.EffectiveRole()
		now := time.Now()

		q := scopeVehicles(db.Model(&models.VehicleEquipment{}), claims).
			Preload("Company").Preload("EquipmentType")
		if companyID := r.URL.Query().Get("company_id"); companyID != "" {
			q = q.Where("company_id = ?", companyID)
		}
		if plate := validate.CleanPlateNumber(r.URL.Query().Get("plate")); plate != "" {
			q = q.Where("plate_number LIKE ?", "%"+plate+"%")
		}
		if bl := r.URL.Query().Get("blacklisted"); bl == "1" {
			q = q.Where("blacklisted = ?", true)
		}
		// Filters on the derived display status, so overdue vehicles are
		// findable before the sweep persists the transition.
		if status := r.URL.Query().Get("status"); status != "" {
			q = filterEffectiveStatus(q, status, now)
		}

		limit := 50
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
			limit = n
		}
		offset := 0
		if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n > 0 {
			offset = n
		}

		var rows []models.VehicleEquipment
		if err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}

		out := make([]vehicleDTO, 0, len(rows))
		for _, v := range rows {
			out = append(out, maskVehicle(v, role, now))
		}
		respondJSON(w, out)
	}
}

func GetVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		var v models.VehicleEquipment
		err := scopeVehicles(db.Model(&models.VehicleEquipment{}), claims).
			Preload("Company").Preload("EquipmentType").
			First(&v, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, maskVehicle(v, claims.EffectiveRole(), time.Now()))
	}
}

func CreateVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlateNumber        string     `json:"plate_number"`
			DriverName         *string    `json:"driver_name"`
			NationalID         *string    `json:"national_id"`
			CompanyID          *string    `json:"company_id"`
			EquipmentTypeID    *string    `json:"equipment_type_id"`
			YearOfManufacture  *int       `json:"year_of_manufacture"`
			Project            *string    `json:"project"`
			Gate               *string    `json:"gate"`
			NextInspectionDate *time.Time `json:"next_inspection_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		plate := validate.CleanPlateNumber(req.PlateNumber)
		if msg := validate.PlateNumber(plate); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		claims := auth.FromContext(r.Context())
		v := models.VehicleEquipment{
			PlateNumber:        plate,
			DriverName:         req.DriverName,
			NationalID:         req.NationalID,
			CompanyID:          req.CompanyID,
			EquipmentTypeID:    req.EquipmentTypeID,
			YearOfManufacture:  req.YearOfManufacture,
			Project:            req.Project,
			Gate:               req.Gate,
			Status:             string(lifecycle.VehicleUpdateRequired),
			NextInspectionDate: req.NextInspectionDate,
			CreatedBy:          &claims.Subject,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		}
		if err := db.Create(&v).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "vehicle_equipment", v.ID, nil,
			map[string]any{"plate_number": v.PlateNumber, "status": v.Status}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, maskVehicle(v, claims.EffectiveRole(), time.Now()))
	}
}

func UpdateVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			PlateNumber        *string    `json:"plate_number"`
			DriverName         *string    `json:"driver_name"`
			NationalID         *string    `json:"national_id"`
			CompanyID          *string    `json:"company_id"`
			EquipmentTypeID    *string    `json:"equipment_type_id"`
			YearOfManufacture  *int       `json:"year_of_manufacture"`
			Project            *string    `json:"project"`
			Gate               *string    `json:"gate"`
			NextInspectionDate *time.Time `json:"next_inspection_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var v models.VehicleEquipment
		if err := db.First(&v, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		old := map[string]any{"plate_number": v.PlateNumber}
		if req.PlateNumber != nil {
			plate := validate.CleanPlateNumber(*req.PlateNumber)
			if msg := validate.PlateNumber(plate); msg != "" {
				respondError(w, http.StatusBadRequest, msg)
				return
			}
			v.PlateNumber = plate
		}
		if req.DriverName != nil {
			v.DriverName = req.DriverName
		}
		if req.NationalID != nil {
			v.NationalID = req.NationalID
		}
		if req.CompanyID != nil {
			v.CompanyID = req.CompanyID
		}
		if req.EquipmentTypeID != nil {
			v.EquipmentTypeID = req.EquipmentTypeID
		}
		if req.YearOfManufacture != nil {
			v.YearOfManufacture = req.YearOfManufacture
		}
		if req.Project != nil {
			v.Project = req.Project
		}
		if req.Gate != nil {
			v.Gate = req.Gate
		}
		if req.NextInspectionDate != nil {
			v.NextInspectionDate = req.NextInspectionDate
		}
		v.UpdatedAt = time.Now()
		if err := db.Save(&v).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "vehicle_equipment", v.ID, old,
			map[string]any{"plate_number": v.PlateNumber}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

// SetVehicleStatus is the direct status selection. The update is a single
// conditional write keyed on the primary key; concurrent edits resolve last
// write wins, matching the rest of the system.
func SetVehicleStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var v models.VehicleEquipment
		if err := db.First(&v, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := lifecycle.VehicleState{Status: lifecycle.VehicleStatus(v.Status), Blacklisted: v.Blacklisted}
		act := lifecycle.VehicleAction{Kind: lifecycle.VehicleSetStatus, Target: lifecycle.VehicleStatus(req.Status)}
		role := auth.FromContext(r.Context()).EffectiveRole()
		if !lifecycle.CanTransitionVehicle(cur, act, role) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		next, err := lifecycle.ApplyVehicle(cur, act)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		res := db.Model(&models.VehicleEquipment{}).Where("id = ?", v.ID).
			Updates(map[string]any{"status": string(next.Status), "updated_at": time.Now()})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "vehicle_equipment", v.ID,
			map[string]any{"status": v.Status}, map[string]any{"status": string(next.Status)}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"status": string(next.Status)})
	}
}

// SetBlacklist toggles the blacklist override. Un-blacklisting may name a
// target status; it defaults to updated_inspection_required.
func SetBlacklist(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Blacklisted bool   `json:"blacklisted"`
			Status      string `json:"status,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var v models.VehicleEquipment
		if err := db.First(&v, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		cur := lifecycle.VehicleState{Status: lifecycle.VehicleStatus(v.Status), Blacklisted: v.Blacklisted}
		act := lifecycle.VehicleAction{Kind: lifecycle.VehicleBlacklist}
		if !req.Blacklisted {
			act = lifecycle.VehicleAction{Kind: lifecycle.VehicleUnblacklist, Target: lifecycle.VehicleStatus(req.Status)}
		}
		role := auth.FromContext(r.Context()).EffectiveRole()
		if !lifecycle.CanTransitionVehicle(cur, act, role) {
			respondError(w, http.StatusForbidden, "transition not allowed")
			return
		}
		next, err := lifecycle.ApplyVehicle(cur, act)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		// One row, two columns, no partial application.
		res := db.Model(&models.VehicleEquipment{}).Where("id = ?", v.ID).
			Updates(map[string]any{
				"status":      string(next.Status),
				"blacklisted": next.Blacklisted,
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "vehicle_equipment", v.ID,
			map[string]any{"status": v.Status, "blacklisted": v.Blacklisted},
			map[string]any{"status": string(next.Status), "blacklisted": next.Blacklisted}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"status": string(next.Status), "blacklisted": next.Blacklisted})
	}
}

// LookupVehicle resolves a plate to a masked summary, for gate staff checking
// a vehicle at entry.
func LookupVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plate := validate.CleanPlateNumber(r.URL.Query().Get("plate"))
		if msg := validate.PlateNumber(plate); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		claims := auth.FromContext(r.Context())
		var v models.VehicleEquipment
		err := scopeVehicles(db.Model(&models.VehicleEquipment{}), claims).
			Preload("Company").First(&v, "plate_number = ?", plate).Error
		if err != nil {
			respondError(w, http.StatusNotFound, "no vehicle with that plate")
			return
		}
		role := claims.EffectiveRole()
		dto := maskVehicle(v, role, time.Now())
		respondJSON(w, map[string]any{
			"id":               policy.MaskID(v.ID, role),
			"plate_number":     dto.PlateNumber,
			"effective_status": dto.EffectiveStatus,
			"blacklisted":      dto.Blacklisted,
			"company":          dto.Company,
		})
	}
}
