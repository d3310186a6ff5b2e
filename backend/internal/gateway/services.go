package gateway

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"tuitiondesk/backend/internal/attendance"
	"tuitiondesk/backend/internal/auth"
	"tuitiondesk/backend/internal/batch"
	"tuitiondesk/backend/internal/exam"
	"tuitiondesk/backend/internal/expense"
	"tuitiondesk/backend/internal/fee"
	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/institution"
	"tuitiondesk/backend/internal/shared"
	"tuitiondesk/backend/internal/student"
)

// Services holds every domain service the router dispatches to.
// It is built once in main.go and shared by all handlers.
type Services struct {
	Client       *mongo.Client
	Config       *shared.ServiceConfig
	Auth         *auth.AuthService
	Institutions *institution.InstitutionService
	Students     *student.StudentService
	Batches      *batch.BatchService
	Attendance   *attendance.AttendanceService
	Exams        *exam.ExamService
	Fees         *fee.FeeService
	Expenses     *expense.ExpenseService
}

// NewServices wires the services over one database handle
func NewServices(client *mongo.Client, db *mongo.Database, cfg *shared.ServiceConfig, logger *zap.Logger) (*Services, error) {
	resolver := identity.NewResolver(db, logger.Named("identity"))
	authService := auth.NewAuthService(db, cfg, resolver, logger.Named("auth"))
	batches := batch.NewBatchService(db, logger.Named("batch"))
	photos, err := student.NewPhotoStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		return nil, err
	}

	return &Services{
		Client:       client,
		Config:       cfg,
		Auth:         authService,
		Institutions: institution.NewInstitutionService(db, authService, logger.Named("institution")),
		Students:     student.NewStudentService(db, authService, photos, logger.Named("student")),
		Batches:      batches,
		Attendance:   attendance.NewAttendanceService(db, batches, logger.Named("attendance")),
		Exams:        exam.NewExamService(db, batches, logger.Named("exam")),
		Fees:         fee.NewFeeService(db, batches, logger.Named("fee")),
		Expenses:     expense.NewExpenseService(db, logger.Named("expense")),
	}, nil
}
