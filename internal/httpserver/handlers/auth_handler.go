package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/audit"
	"fleetgate/internal/auth"
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
	"fleetgate/internal/ratelimit"
	"fleetgate/internal/validate"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(db *gorm.DB, lg *zap.SugaredLogger, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ratelimit.ClientIP(r)
		if !limiter.Allow(ip) {
			respondError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !u.IsActive {
			respondError(w, http.StatusUnauthorized, "account disabled")
			return
		}
		jti := uuid.NewString()
		sess := models.Session{
			JTI:       jti,
			UserID:    u.ID,
			ExpiresAt: time.Now().Add(auth.TokenTTL()),
			CreatedAt: time.Now(),
		}
		if err := db.Create(&sess).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		tok, err := auth.Sign(u.ID, u.Role, jti)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "token error")
			return
		}
		if err := audit.Record(db, audit.Actor{ID: u.ID, Email: u.Email, Role: u.Role, IP: ip}, "LOGIN", "users", u.ID, nil, nil); err != nil {
			lg.Warnw("audit write failed", "error", err)
		}
		respondJSON(w, map[string]any{"token": tok, "role": u.Role})
	}
}

func Logout(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now()
		if err := db.Model(&models.Session{}).Where("jti = ?", claims.JTI).Update("revoked_at", now).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}

func ChangePassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Current string `json:"current_password"`
			New     string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validate.Password(req.New); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		claims := auth.FromContext(r.Context())
		var u models.User
		if err := db.First(&u, "id = ?", claims.Subject).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Current); err != nil {
			respondError(w, http.StatusUnauthorized, "current password incorrect")
			return
		}
		hash, err := auth.HashPassword(req.New)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		if err := db.Model(&u).Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		var u models.User
		if err := db.First(&u, "id = ?", claims.Subject).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		view := claims.View()
		resp := map[string]any{
			"id":             u.ID,
			"email":          u.Email,
			"full_name":      u.FullName,
			"role":           u.Role,
			"effective_role": view.EffectiveRole(),
			"preview_active": view.PreviewActive(),
			"is_active":      u.IsActive,
		}
		if claims.ViewAs != nil {
			resp["view_as_role"] = *claims.ViewAs
		}
		respondJSON(w, resp)
	}
}

// SetViewAs is the owner's POV switch. The override lives on the session row,
// so it survives requests without any client-side global and dies with the
// session.
func SetViewAs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role *string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		claims := auth.FromContext(r.Context())
		var target *policy.Role
		if req.Role != nil && *req.Role != "" {
			parsed, err := policy.ParseRole(*req.Role)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			target = &parsed
		}
		view := policy.View{Actual: claims.Role, ViewAs: claims.ViewAs}
		override, err := view.SetViewAs(target)
		if err != nil {
			code := http.StatusForbidden
			if err == policy.ErrBadViewAsRole {
				code = http.StatusBadRequest
			}
			respondError(w, code, err.Error())
			return
		}
		var stored *string
		if override != nil {
			s := string(*override)
			stored = &s
		}
		if err := db.Model(&models.Session{}).Where("jti = ?", claims.JTI).Update("view_as_role", stored).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		resp := map[string]any{"ok": true}
		if stored != nil {
			resp["view_as_role"] = *stored
		}
		respondJSON(w, resp)
	}
}
