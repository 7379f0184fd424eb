package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/auth"
	"fleetgate/internal/lifecycle"
	"fleetgate/internal/models"
)

// Dashboard aggregates counts for the landing page. Vehicle counts are keyed
// on the derived display status, so freshly-overdue vehicles count as overdue
// before the sweep runs.
func Dashboard(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now()

		var vehicles []models.VehicleEquipment
		if err := scopeVehicles(db.Model(&models.VehicleEquipment{}), claims).
			Select("status", "blacklisted", "next_inspection_date").Find(&vehicles).Error; err != nil {
			respondError(w, http.StatusInternalServerError, genericWriteError)
			return
		}
		byStatus := map[string]int{}
		for _, v := range vehicles {
			state := lifecycle.VehicleState{Status: lifecycle.VehicleStatus(v.Status), Blacklisted: v.Blacklisted}
			byStatus[string(lifecycle.EffectiveVehicleStatus(state, v.NextInspectionDate, now))]++
		}

		var pendingInspections, unverified int64
		db.Model(&models.Inspection{}).
			Where("status IN ?", []string{string(lifecycle.InspectionScheduled), string(lifecycle.InspectionInProgress)}).
			Count(&pendingInspections)
		db.Model(&models.Inspection{}).
			Where("status = ? AND verified_at IS NULL", string(lifecycle.InspectionCompleted)).
			Count(&unverified)

		var openAssignments, delayedAssignments int64
		db.Model(&models.Assignment{}).
			Where("status IN ?", []string{string(lifecycle.AssignmentAssigned), string(lifecycle.AssignmentRescheduled)}).
			Count(&openAssignments)
		db.Model(&models.Assignment{}).
			Where("status = ?", string(lifecycle.AssignmentDelayed)).
			Count(&delayedAssignments)

		respondJSON(w, map[string]any{
			"vehicles_by_status":   byStatus,
			"pending_inspections":  pendingInspections,
			"unverified_completed": unverified,
			"open_assignments":     openAssignments,
			"delayed_assignments":  delayedAssignments,
		})
	}
}
