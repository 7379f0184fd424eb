// Package audit records append-only audit rows and redacts sensitive keys
// at render time. Stored values stay raw.
package audit

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"fleetgate/internal/models"
)

type Actor struct {
	ID    string
	Email string
	Role  string
	IP    string
}

// Record appends one audit row. Audit writes never fail the triggering
// mutation; the error is returned for logging only.
func Record(db *gorm.DB, actor Actor, action, table, recordID string, oldValues, newValues any) error {
	row := models.AuditLog{
		Action:    action,
		OldValues: toJSONB(oldValues),
		NewValues: toJSONB(newValues),
		CreatedAt: time.Now(),
	}
	if actor.ID != "" {
		row.UserID = &actor.ID
	}
	if actor.Email != "" {
		row.UserEmail = &actor.Email
	}
	if actor.Role != "" {
		row.UserRole = &actor.Role
	}
	if actor.IP != "" {
		row.IPAddress = &actor.IP
	}
	if table != "" {
		row.TableName = &table
	}
	if recordID != "" {
		row.RecordID = &recordID
	}
	return db.Create(&row).Error
}

func toJSONB(v any) models.JSONB {
	if v == nil {
		return models.JSONB("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return models.JSONB("{}")
	}
	return models.JSONB(b)
}

// sensitiveKeys are replaced with a placeholder when audit rows are rendered.
var sensitiveKeys = []string{"national_id", "password", "password_hash", "api_key", "secret"}

const redactedPlaceholder = "[REDACTED]"

// Redact returns a render-safe copy of a stored old/new values blob. The
// stored row is untouched.
func Redact(raw models.JSONB) map[string]any {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data == nil {
		return map[string]any{}
	}
	for _, key := range sensitiveKeys {
		if _, ok := data[key]; ok {
			data[key] = redactedPlaceholder
		}
	}
	return data
}
