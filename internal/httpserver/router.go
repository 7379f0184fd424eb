package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetgate/internal/auth"
	"fleetgate/internal/httpserver/handlers"
	"fleetgate/internal/policy"
	"fleetgate/internal/ratelimit"
)

func NewRouter(db *gorm.DB, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	loginLimiter := ratelimit.New(10, 15*time.Minute)
	r.Post("/v1/auth/login", handlers.Login(db, lg, loginLimiter))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))

		protected.Get("/v1/me", handlers.Me(db, lg))
		protected.Post("/v1/auth/logout", handlers.Logout(db))
		protected.Post("/v1/auth/password", handlers.ChangePassword(db, lg))
		protected.Put("/v1/me/view-as", handlers.SetViewAs(db, lg))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAnyRole(policy.RoleOwner, policy.RoleAdmin))
			admin.Get("/v1/users", handlers.ListUsers(db, lg))
			admin.Post("/v1/users", handlers.CreateUser(db, lg))
			admin.Patch("/v1/users/{id}", handlers.UpdateUser(db, lg))

			admin.Post("/v1/companies", handlers.CreateCompany(db, lg))
			admin.Patch("/v1/companies/{id}", handlers.UpdateCompany(db, lg))
			admin.Post("/v1/equipment-types", handlers.CreateEquipmentType(db, lg))
			admin.Patch("/v1/equipment-types/{id}", handlers.UpdateEquipmentType(db, lg))

			admin.Post("/v1/failure-reasons", handlers.CreateFailureReason(db, lg))
			admin.Patch("/v1/failure-reasons/{id}", handlers.UpdateFailureReason(db, lg))

			admin.Get("/v1/audit-logs", handlers.ListAuditLogs(db, lg))

			admin.Post("/v1/vehicles/{id}/blacklist", handlers.SetBlacklist(db, lg))
			admin.Post("/v1/inspections/{id}/cancel", handlers.CancelInspection(db, lg))

			admin.Post("/v1/assignments", handlers.CreateAssignment(db, lg))
			admin.Patch("/v1/assignments/{id}", handlers.UpdateAssignment(db, lg))
		})

		protected.Get("/v1/companies", handlers.ListCompanies(db, lg))
		protected.Get("/v1/equipment-types", handlers.ListEquipmentTypes(db, lg))
		protected.Get("/v1/failure-reasons", handlers.ListFailureReasons(db, lg))

		protected.Get("/v1/vehicles", handlers.ListVehicles(db, lg))
		protected.Get("/v1/vehicles/{id}", handlers.GetVehicle(db, lg))
		protected.Get("/v1/lookup", handlers.LookupVehicle(db, lg))
		protected.Group(func(staff chi.Router) {
			staff.Use(auth.RequireStaff())
			staff.Post("/v1/vehicles", handlers.CreateVehicle(db, lg))
			staff.Patch("/v1/vehicles/{id}", handlers.UpdateVehicle(db, lg))
			staff.Post("/v1/vehicles/{id}/status", handlers.SetVehicleStatus(db, lg))

			staff.Post("/v1/inspections", handlers.CreateInspection(db, lg))
			staff.Post("/v1/inspections/{id}/start", handlers.StartInspection(db, lg))
			staff.Post("/v1/inspections/{id}/submit", handlers.SubmitInspection(db, lg))

			staff.Post("/v1/assignments/{id}/status", handlers.SetAssignmentStatus(db, lg))
			staff.Post("/v1/assignments/{id}/inspections", handlers.CreateInspectionFromAssignment(db, lg))
		})

		protected.Get("/v1/inspections", handlers.ListInspections(db, lg))
		protected.Get("/v1/inspections/{id}", handlers.GetInspection(db, lg))
		protected.With(auth.RequireAnyRole(policy.RoleVerifier)).
			Post("/v1/inspections/{id}/verify", handlers.VerifyInspection(db, lg))

		protected.Get("/v1/assignments", handlers.ListAssignments(db, lg))
		protected.Get("/v1/assignments/{id}", handlers.GetAssignment(db, lg))

		protected.Get("/v1/dashboard", handlers.Dashboard(db, lg))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
