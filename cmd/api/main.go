package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fleetgate/internal/auth"
	"fleetgate/internal/httpserver"
	"fleetgate/internal/logger"
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
	"fleetgate/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Company{}, &models.EquipmentType{},
		&models.VehicleEquipment{}, &models.FailureReason{},
		&models.Inspection{}, &models.ChecklistItem{}, &models.Assignment{},
		&models.AuditLog{}, &models.Session{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultOwner(db, lg)
	seedFailureReasons(db, lg)

	sw := sweeper.New(db, lg)
	if err := sw.Start(os.Getenv("OVERDUE_SWEEP_CRON")); err != nil {
		lg.Fatalw("sweeper start failed", "error", err)
	}
	defer sw.Stop()

	router := httpserver.NewRouter(db, lg)
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func seedDefaultOwner(db *gorm.DB, lg *zap.SugaredLogger) {
	email := strings.ToLower(os.Getenv("SEED_OWNER_EMAIL"))
	if email == "" {
		email = "owner@fleetgate.local"
	}
	var count int64
	db.Model(&models.User{}).Where("role = ?", string(policy.RoleOwner)).Count(&count)
	if count > 0 {
		return
	}
	password := os.Getenv("SEED_OWNER_PASSWORD")
	if password == "" {
		password = "ChangeMe123"
	}
	hash, _ := auth.HashPassword(password)
	u := models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "System Owner",
		Role:         string(policy.RoleOwner),
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Warnw("owner seed failed", "error", err)
		return
	}
	lg.Infow("seeded default owner", "email", email)
}

// canonicalFailureReasons is the starting set; admins maintain the list from
// there.
var canonicalFailureReasons = []string{
	"Expired TUV/Certification",
	"Brakes",
	"Lights & Signals",
	"Tires & Wheels",
	"Steering",
	"Oil Leak",
	"Engine Issues",
	"Body Damage",
	"Safety Equipment Missing",
	"Electrical Issues",
	"Exhaust & Emissions",
	"Seatbelts",
	"Documentation Issues",
}

func seedFailureReasons(db *gorm.DB, lg *zap.SugaredLogger) {
	for _, name := range canonicalFailureReasons {
		var count int64
		db.Model(&models.FailureReason{}).Where("name = ?", name).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&models.FailureReason{Name: name, IsActive: true, CreatedAt: time.Now()}).Error; err != nil {
			lg.Warnw("failure reason seed failed", "name", name, "error", err)
		}
	}
}
