package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fleetgate/internal/auth"
	"fleetgate/internal/models"
	"fleetgate/internal/policy"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so every session sees the same in-memory database and
	// concurrent writers serialize instead of hitting SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{}, &models.Company{}, &models.EquipmentType{},
		&models.VehicleEquipment{}, &models.FailureReason{},
		&models.Inspection{}, &models.ChecklistItem{}, &models.Assignment{},
		&models.AuditLog{}, &models.Session{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// do routes a request through a throwaway chi router so URL params resolve,
// with claims already in context as if JWTAuth had run.
func do(t *testing.T, method, pattern, path string, h http.HandlerFunc, claims auth.Claims, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func claimsFor(role policy.Role) auth.Claims {
	return auth.Claims{Subject: "00000000-0000-0000-0000-000000000001", Role: role, JTI: "test-jti"}
}

func strPtr(s string) *string { return &s }
