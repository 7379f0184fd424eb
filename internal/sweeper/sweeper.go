// Package sweeper persists the verified -> inspection_overdue transition at
// the data layer. The policy layer derives the same status at read time to
// cover the window between sweeps; this job is the system of record.
package sweeper

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/lifecycle"
	"fleetgate/internal/models"
)

const DefaultSchedule = "@hourly"

type Sweeper struct {
	db   *gorm.DB
	lg   *zap.SugaredLogger
	cron *cron.Cron
}

func New(db *gorm.DB, lg *zap.SugaredLogger) *Sweeper {
	return &Sweeper{db: db, lg: lg, cron: cron.New()}
}

// Start schedules the sweep and runs one immediately to catch up after
// downtime. spec accepts standard 5-field cron expressions or descriptors
// like "@hourly".
func (s *Sweeper) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return err
	}
	go s.run()
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	n, err := s.SweepOnce(time.Now())
	if err != nil {
		s.lg.Errorw("overdue sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.lg.Infow("overdue sweep", "vehicles_marked", n)
	}
}

// SweepOnce marks every verified, non-blacklisted vehicle whose next
// inspection date has elapsed. A single UPDATE, so a concurrent status edit
// is either folded in before or wins after; no partial application.
func (s *Sweeper) SweepOnce(now time.Time) (int64, error) {
	res := s.db.Model(&models.VehicleEquipment{}).
		Where("status = ? AND blacklisted = ? AND next_inspection_date IS NOT NULL AND next_inspection_date < ?",
			string(lifecycle.VehicleVerified), false, now).
		Updates(map[string]any{
			"status":     string(lifecycle.VehicleOverdue),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
