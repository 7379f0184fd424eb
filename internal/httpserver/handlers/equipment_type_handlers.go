package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/audit"
	"fleetgate/internal/models"
	"fleetgate/internal/validate"
)

func ListEquipmentTypes(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ts []models.EquipmentType
		if err := db.Order("name asc").Find(&ts).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, ts)
	}
}

func CreateEquipmentType(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name           string  `json:"name"`
			Category       string  `json:"category"`
			Classification *string `json:"classification"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		name := validate.SanitizeText(req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, "name required")
			return
		}
		if req.Category != "vehicle" && req.Category != "heavy_equipment" {
			respondError(w, http.StatusBadRequest, "category must be vehicle or heavy_equipment")
			return
		}
		t := models.EquipmentType{
			Name:           name,
			Category:       req.Category,
			Classification: req.Classification,
			IsActive:       true,
			CreatedAt:      time.Now(),
		}
		if err := db.Create(&t).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "equipment_types", t.ID, nil, map[string]any{"name": t.Name}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, t)
	}
}

func UpdateEquipmentType(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name           *string `json:"name"`
			Classification *string `json:"classification"`
			IsActive       *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var t models.EquipmentType
		if err := db.First(&t, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if req.Name != nil {
			if name := validate.SanitizeText(*req.Name); name != "" {
				t.Name = name
			}
		}
		if req.Classification != nil {
			t.Classification = req.Classification
		}
		if req.IsActive != nil {
			t.IsActive = *req.IsActive
		}
		if err := db.Save(&t).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
