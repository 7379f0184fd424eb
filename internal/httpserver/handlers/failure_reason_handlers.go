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

func ListFailureReasons(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rs []models.FailureReason
		q := db.Order("name asc")
		if r.URL.Query().Get("active") == "1" {
			q = q.Where("is_active = ?", true)
		}
		if err := q.Find(&rs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, rs)
	}
}

func CreateFailureReason(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
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
		fr := models.FailureReason{Name: name, IsActive: true, CreatedAt: time.Now()}
		if err := db.Create(&fr).Error; err != nil {
			// Most likely the unique name constraint.
			respondError(w, http.StatusConflict, "a failure reason with that name already exists")
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "failure_reasons", fr.ID, nil, map[string]any{"name": fr.Name}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, fr)
	}
}

func UpdateFailureReason(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name     *string `json:"name"`
			IsActive *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var fr models.FailureReason
		if err := db.First(&fr, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		old := map[string]any{"name": fr.Name, "is_active": fr.IsActive}
		if req.Name != nil {
			if name := validate.SanitizeText(*req.Name); name != "" {
				fr.Name = name
			}
		}
		if req.IsActive != nil {
			fr.IsActive = *req.IsActive
		}
		if err := db.Save(&fr).Error; err != nil {
			respondError(w, http.StatusConflict, "a failure reason with that name already exists")
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "failure_reasons", fr.ID, old,
			map[string]any{"name": fr.Name, "is_active": fr.IsActive}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
