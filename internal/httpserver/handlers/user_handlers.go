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
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
	"fleetgate/internal/ratelimit"
	"fleetgate/internal/validate"
)

func actorFrom(r *http.Request) audit.Actor {
	c := auth.FromContext(r.Context())
	return audit.Actor{ID: c.Subject, Email: c.Email, Role: string(c.Role), IP: ratelimit.ClientIP(r)}
}

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.Order("created_at desc").Find(&users).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, users)
	}
}

// CreateUser provisions an account. Admins may provision inspectors,
// contractors and verifiers; only the owner may provision owners or admins.
// A contractor must be tied to a company.
func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email     string  `json:"email"`
			Password  string  `json:"password"`
			FullName  string  `json:"full_name"`
			Role      string  `json:"role"`
			Phone     *string `json:"phone"`
			CompanyID *string `json:"company_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.FullName = validate.SanitizeText(req.FullName)
		if req.Email == "" || req.Password == "" || req.FullName == "" {
			respondError(w, http.StatusBadRequest, "email, password and full_name required")
			return
		}
		if msg := validate.Password(req.Password); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		role, err := policy.ParseRole(req.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		caller := auth.FromContext(r.Context()).EffectiveRole()
		if (role == policy.RoleOwner || role == policy.RoleAdmin) && caller != policy.RoleOwner {
			respondError(w, http.StatusForbidden, "only the owner may provision this role")
			return
		}
		if role == policy.RoleContractor && (req.CompanyID == nil || *req.CompanyID == "") {
			respondError(w, http.StatusBadRequest, "contractor accounts require a company")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		u := models.User{
			Email:        req.Email,
			PasswordHash: hash,
			FullName:     req.FullName,
			Role:         string(role),
			Phone:        req.Phone,
			CompanyID:    req.CompanyID,
			IsActive:     true,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusBadRequest, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "CREATE", "users", u.ID, nil,
			map[string]any{"email": u.Email, "role": u.Role}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"id": u.ID})
	}
}

// UpdateUser edits an account. Accounts are deactivated via is_active, never
// deleted. Role changes are owner-only.
func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Email     *string `json:"email"`
			FullName  *string `json:"full_name"`
			Role      *string `json:"role"`
			Phone     *string `json:"phone"`
			CompanyID *string `json:"company_id"`
			IsActive  *bool   `json:"is_active"`
			Password  *string `json:"password,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		old := map[string]any{"email": u.Email, "role": u.Role, "is_active": u.IsActive}

		caller := auth.FromContext(r.Context()).EffectiveRole()
		if req.Role != nil && *req.Role != u.Role {
			if caller != policy.RoleOwner {
				respondError(w, http.StatusForbidden, "only the owner may change roles")
				return
			}
			role, err := policy.ParseRole(*req.Role)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			u.Role = string(role)
		}
		if req.Email != nil {
			u.Email = strings.TrimSpace(strings.ToLower(*req.Email))
		}
		if req.FullName != nil {
			if name := validate.SanitizeText(*req.FullName); name != "" {
				u.FullName = name
			}
		}
		if req.Phone != nil {
			u.Phone = req.Phone
		}
		if req.CompanyID != nil {
			u.CompanyID = req.CompanyID
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if u.Role == string(policy.RoleContractor) && (u.CompanyID == nil || *u.CompanyID == "") {
			respondError(w, http.StatusBadRequest, "contractor accounts require a company")
			return
		}
		if req.Password != nil && *req.Password != "" {
			if msg := validate.Password(*req.Password); msg != "" {
				respondError(w, http.StatusBadRequest, msg)
				return
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "hash error")
				return
			}
			u.PasswordHash = hash
		}
		u.UpdatedAt = time.Now()
		if err := db.Save(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		if err := audit.Record(db, actorFrom(r), "UPDATE", "users", u.ID, old,
			map[string]any{"email": u.Email, "role": u.Role, "is_active": u.IsActive}); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
