package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"tuitiondesk/backend/internal/gateway/handlers"
	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/shared"
	"tuitiondesk/backend/internal/student"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svc *Services, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   svc.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: svc.Config.CORS.AllowCredentials,
		MaxAge:           svc.Config.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svc.Auth}
	institutionHandler := &handlers.InstitutionHandler{Institutions: svc.Institutions}
	studentHandler := &handlers.StudentHandler{Students: svc.Students}
	batchHandler := &handlers.BatchHandler{Batches: svc.Batches, Students: svc.Students, Fees: svc.Fees}
	attendanceHandler := &handlers.AttendanceHandler{Attendance: svc.Attendance}
	examHandler := &handlers.ExamHandler{Exams: svc.Exams}
	feeHandler := &handlers.FeeHandler{Fees: svc.Fees}
	expenseHandler := &handlers.ExpenseHandler{Expenses: svc.Expenses}

	// 3. Liveness, health and static uploads
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API is running..."))
	})
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := shared.PingMongoDB(req.Context(), svc.Client); err != nil {
			util.WriteJSONError(w, http.StatusServiceUnavailable, "Database unreachable")
			return
		}
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ok"})
	})
	uploads := http.StripPrefix(student.PublicPrefix, http.FileServer(http.Dir(svc.Students.Photos().Dir())))
	r.Handle(student.PublicPrefix+"*", uploads)

	// 4. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---
		r.Post("/institutions", institutionHandler.CreateInstitution)
		r.Get("/institutions", institutionHandler.ListInstitutions)

		r.Post("/owners", institutionHandler.RegisterOwner)
		r.Post("/owners/login", authHandler.RoleLogin(shared.RoleOwner))
		r.Post("/admins/login", authHandler.RoleLogin(shared.RoleAdmin))
		r.Post("/teachers/login", authHandler.RoleLogin(shared.RoleTeacher))

		r.Post("/students", studentHandler.Register)
		r.Post("/students/login", authHandler.RoleLogin(shared.RoleStudent))
		r.Get("/students/institutions", institutionHandler.ListInstitutions)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			// Auth
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			// Staff accounts
			r.Post("/admins", institutionHandler.CreateAdmin)
			r.Get("/admins", institutionHandler.ListAdmins)
			r.Post("/teachers", institutionHandler.CreateTeacher)
			r.Get("/teachers", institutionHandler.ListTeachers)

			// Students
			r.Get("/students/pending", studentHandler.Pending)
			r.Put("/students/approve/{id}", studentHandler.Approve)
			r.Put("/students/profile", studentHandler.UpdateProfile)

			// Batches
			r.Route("/batches", func(r chi.Router) {
				r.Get("/students", batchHandler.StudentsByClass)
				r.Post("/", batchHandler.Create)
				r.Get("/", batchHandler.List)
				r.Put("/{id}", batchHandler.Update)
			})

			// Attendance
			r.Route("/attendance", func(r chi.Router) {
				r.Get("/batch/{batchId}", attendanceHandler.BatchStudents)
				r.Get("/me", attendanceHandler.Mine)
				r.Post("/", attendanceHandler.Mark)
				r.Get("/", attendanceHandler.View)
				r.Put("/{id}", attendanceHandler.Update)
			})

			// Exams
			r.Route("/exams", func(r chi.Router) {
				r.Post("/", examHandler.Create)
				r.Get("/", examHandler.List)
				r.Post("/marks", examHandler.SubmitMarks)
				r.Get("/results/me", examHandler.MyResults)
				r.Get("/{examId}/grading-sheet", examHandler.GradingSheet)
			})

			// Fees
			r.Route("/fees", func(r chi.Router) {
				r.Post("/structure", feeHandler.SetStructure)
				r.Get("/my-fees", feeHandler.MyFees)
				r.Get("/students/{studentId}", feeHandler.StudentLedger)
				r.Post("/pay", feeHandler.Pay)
				r.Get("/admin/stats", feeHandler.Stats)
				r.Get("/transactions", feeHandler.Transactions)
			})

			// Expenses
			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", expenseHandler.Add)
				r.Get("/", expenseHandler.List)
			})
		})
	})

	return r
}
