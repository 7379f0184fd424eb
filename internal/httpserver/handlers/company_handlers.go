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

func ListCompanies(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cs []models.Company
		q := db.Order("name asc")
		if r.URL.Query().Get("active") == "1" {
			q = q.Where("is_active = ?", true)
		}
		if err := q.Find(&cs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, cs)
	}
}

func CreateCompany(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name    string  `json:"name"`
			Code    *string `json:"code"`
			Project *string `json:"project"`
			Gate    *string `json:"gate"`
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
		c := models.Company{
			Name:      name,
			Code:      req.Code,
			Project:   req.Project,
			Gate:      req.Gate,
			IsActive:  true,
			CreatedAt: time.Now(),
		}
		if err := db.Create(&c).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "companies", c.ID, nil, map[string]any{"name": c.Name}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, c)
	}
}

func UpdateCompany(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name     *string `json:"name"`
			Code     *string `json:"code"`
			Project  *string `json:"project"`
			Gate     *string `json:"gate"`
			IsActive *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var c models.Company
		if err := db.First(&c, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		old := map[string]any{"name": c.Name, "is_active": c.IsActive}
		if req.Name != nil {
			if name := validate.SanitizeText(*req.Name); name != "" {
				c.Name = name
			}
		}
		if req.Code != nil {
			c.Code = req.Code
		}
		if req.Project != nil {
			c.Project = req.Project
		}
		if req.Gate != nil {
			c.Gate = req.Gate
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		if err := db.Save(&c).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "companies", c.ID, old,
			map[string]any{"name": c.Name, "is_active": c.IsActive}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
