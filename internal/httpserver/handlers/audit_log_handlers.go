package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/audit"
	"fleetgate/internal/models"
)

type auditLogDTO struct {
	ID        int64          `json:"id"`
	UserEmail *string        `json:"user_email,omitempty"`
	UserRole  *string        `json:"user_role,omitempty"`
	Action    string         `json:"action"`
	TableName *string        `json:"table_name,omitempty"`
	RecordID  *string        `json:"record_id,omitempty"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
	IPAddress *string        `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListAuditLogs renders recent audit rows with sensitive keys redacted.
// The stored rows keep their raw values.
func ListAuditLogs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Model(&models.AuditLog{})
		if table := r.URL.Query().Get("table"); table != "" {
			q = q.Where("table_name = ?", table)
		}
		if action := r.URL.Query().Get("action"); action != "" {
			q = q.Where("action = ?", action)
		}
		limit := 200
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
			limit = n
		}
		var rows []models.AuditLog
		if err := q.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		out := make([]auditLogDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, auditLogDTO{
				ID:        row.ID,
				UserEmail: row.UserEmail,
				UserRole:  row.UserRole,
				Action:    row.Action,
				TableName: row.TableName,
				RecordID:  row.RecordID,
				OldValues: audit.Redact(row.OldValues),
				NewValues: audit.Redact(row.NewValues),
				IPAddress: row.IPAddress,
				CreatedAt: row.CreatedAt,
			})
		}
		respondJSON(w, out)
	}
}
