package auth

import (
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"fleetgate/internal/models"
	"fleetgate/internal/policy"
)

// JWTAuth verifies the bearer token, checks the backing session row for
// revocation/expiry, and reloads the user so deactivation and role edits
// apply immediately. The session's view-as override rides along in claims.
func JWTAuth(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			tc, err := verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			var sess models.Session
			if tc.JTI == "" || db.First(&sess, "jti = ?", tc.JTI).Error != nil {
				http.Error(w, "session not found", http.StatusUnauthorized)
				return
			}
			if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
				http.Error(w, "session expired/revoked", http.StatusUnauthorized)
				return
			}
			var u models.User
			if db.First(&u, "id = ?", sess.UserID).Error != nil || !u.IsActive {
				http.Error(w, "account disabled", http.StatusUnauthorized)
				return
			}
			role, err := policy.ParseRole(u.Role)
			if err != nil {
				http.Error(w, "account misconfigured", http.StatusUnauthorized)
				return
			}
			claims := Claims{Subject: u.ID, Email: u.Email, Role: role, CompanyID: u.CompanyID, JTI: sess.JTI}
			if sess.ViewAsRole != nil {
				if v, err := policy.ParseRole(*sess.ViewAsRole); err == nil {
					claims.ViewAs = &v
				}
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAnyRole gates a route on the caller's effective role, so an owner
// previewing a weaker role loses access along with it.
func RequireAnyRole(roles ...policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := FromContext(r.Context()).EffectiveRole()
			for _, role := range roles {
				if got == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// RequireStaff admits owner, admin and inspector.
func RequireStaff() func(http.Handler) http.Handler {
	return RequireAnyRole(policy.RoleOwner, policy.RoleAdmin, policy.RoleInspector)
}
