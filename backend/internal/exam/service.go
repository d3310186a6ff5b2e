// Package exam manages exam blueprints and grades submitted marks.
package exam

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/batch"
	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

// ExamService implements exam creation and grading
type ExamService struct {
	log        *zap.Logger
	batches    *batch.BatchService
	examsCol   *mongo.Collection
	resultsCol *mongo.Collection
}

// CreateInput is the exam blueprint form
type CreateInput struct {
	BatchID       string
	Name          string
	ScheduledDate string
	Duration      string
	Subjects      []shared.Subject
}

// GradingSheet is the exam, its students and whatever was already graded
type GradingSheet struct {
	ExamDetails     *shared.Exam            `json:"examDetails"`
	Students        []shared.StudentSummary `json:"students"`
	ExistingResults []shared.ExamResult     `json:"existingResults"`
}

// StudentResult is a result with the exam it belongs to
type StudentResult struct {
	shared.ExamResult
	ExamName      string    `json:"examName"`
	ScheduledDate time.Time `json:"scheduledDate"`
}

// NewExamService creates a new ExamService instance
func NewExamService(db *mongo.Database, batches *batch.BatchService, logger *zap.Logger) *ExamService {
	return &ExamService{
		log:        logger,
		batches:    batches,
		examsCol:   db.Collection(shared.ColExams),
		resultsCol: db.Collection(shared.ColExamResults),
	}
}

// Create stores a new exam blueprint for a batch
func (s *ExamService) Create(ctx context.Context, caller *identity.Principal, in CreateInput) (*shared.Exam, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || in.BatchID == "" || in.ScheduledDate == "" {
		return nil, status.Error(codes.InvalidArgument, "batchId, name and scheduledDate are required")
	}
	if msg := ValidateSubjects(in.Subjects); msg != "" {
		return nil, status.Error(codes.InvalidArgument, msg)
	}
	scheduled, err := shared.ParseDate(in.ScheduledDate)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "Invalid scheduledDate")
	}

	b, err := s.batches.Lookup(ctx, caller, in.BatchID)
	if err != nil {
		return nil, err
	}

	subjects := make([]shared.Subject, len(in.Subjects))
	for i, sub := range in.Subjects {
		sub.Name = strings.TrimSpace(sub.Name)
		subjects[i] = sub
	}

	exam := shared.Exam{
		ID:            shared.GenerateID(shared.PrefixExam),
		InstitutionID: caller.InstitutionID,
		BatchID:       b.ID,
		Name:          name,
		ScheduledDate: scheduled,
		Duration:      in.Duration,
		Subjects:      subjects,
		CreatedBy:     caller.ID,
		CreatorRole:   caller.Role,
		CreatedAt:     time.Now(),
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.examsCol.InsertOne(queryCtx, exam); err != nil {
		s.log.Error("insert exam", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &exam, nil
}

// List returns the institution's exams, optionally for one batch
func (s *ExamService) List(ctx context.Context, caller *identity.Principal, batchID string) ([]shared.Exam, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	filter := bson.M{"institution_id": caller.InstitutionID}
	if batchID != "" {
		filter["batch_id"] = batchID
	}

	exams := []shared.Exam{}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: -1}})
	if err := shared.FindAll(ctx, s.examsCol, filter, &exams, opts); err != nil {
		s.log.Error("list exams", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return exams, nil
}

// GradingSheet combines the blueprint, the batch roster and existing results
func (s *ExamService) GradingSheet(ctx context.Context, caller *identity.Principal, examID string) (*GradingSheet, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	exam, err := s.get(ctx, caller, examID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.Lookup(ctx, caller, exam.BatchID)
	if err != nil {
		return nil, err
	}
	students, err := s.batches.Roster(ctx, b)
	if err != nil {
		return nil, err
	}

	results := []shared.ExamResult{}
	if err := shared.FindAll(ctx, s.resultsCol, bson.M{"exam_id": exam.ID}, &results); err != nil {
		s.log.Error("existing results", zap.String("exam_id", exam.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	sheet := &GradingSheet{
		ExamDetails:     exam,
		Students:        make([]shared.StudentSummary, 0, len(students)),
		ExistingResults: results,
	}
	for i := range students {
		sheet.Students = append(sheet.Students, students[i].Summarize())
	}
	return sheet, nil
}

// SubmitMarks grades every entry and upserts one result per (exam, student)
// in a single unordered bulk write. It returns the graded results.
func (s *ExamService) SubmitMarks(ctx context.Context, caller *identity.Principal, examID string, entries []MarkEntry) ([]shared.ExamResult, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	if examID == "" || len(entries) == 0 {
		return nil, status.Error(codes.InvalidArgument, "examId and studentMarks are required")
	}

	exam, err := s.get(ctx, caller, examID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.Lookup(ctx, caller, exam.BatchID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.StudentID == "" {
			return nil, status.Error(codes.InvalidArgument, "studentId is required for every entry")
		}
		if _, dup := seen[e.StudentID]; dup {
			return nil, status.Errorf(codes.InvalidArgument, "Duplicate marks for student %s", e.StudentID)
		}
		seen[e.StudentID] = struct{}{}
		if !b.HasStudent(e.StudentID) {
			return nil, status.Errorf(codes.InvalidArgument, "Student %s is not enrolled in this exam's batch", e.StudentID)
		}
	}

	now := time.Now()
	results := make([]shared.ExamResult, 0, len(entries))
	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		res := Grade(exam, e)
		res.UpdatedAt = now
		results = append(results, res)

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"exam_id": exam.ID, "student_id": e.StudentID}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"batch_id":             res.BatchID,
					"institution_id":       res.InstitutionID,
					"is_absent":            res.IsAbsent,
					"subject_results":      res.SubjectResults,
					"total_max_marks":      res.TotalMaxMarks,
					"total_obtained_marks": res.TotalObtainedMarks,
					"percentage":           res.Percentage,
					"result_status":        res.ResultStatus,
					"updated_at":           now,
				},
				"$setOnInsert": bson.M{
					"_id":        shared.GenerateID(shared.PrefixResult),
					"created_at": now,
				},
			}).
			SetUpsert(true))
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	res, err := s.resultsCol.BulkWrite(queryCtx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		s.log.Error("submit marks", zap.String("exam_id", exam.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("marks submitted",
		zap.String("exam_id", exam.ID),
		zap.Int64("inserted", res.UpsertedCount),
		zap.Int64("updated", res.ModifiedCount))
	return results, nil
}

// MyResults returns the calling student's results, newest exam first
func (s *ExamService) MyResults(ctx context.Context, caller *identity.Principal) ([]StudentResult, error) {
	if !caller.Is(shared.RoleStudent) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	var results []shared.ExamResult
	if err := shared.FindAll(ctx, s.resultsCol, bson.M{"student_id": caller.ID}, &results); err != nil {
		s.log.Error("student results", zap.String("student_id", caller.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	examIDs := make([]string, 0, len(results))
	for _, r := range results {
		examIDs = append(examIDs, r.ExamID)
	}
	var exams []shared.Exam
	if len(examIDs) > 0 {
		if err := shared.FindAll(ctx, s.examsCol, bson.M{"_id": bson.M{"$in": examIDs}}, &exams); err != nil {
			s.log.Error("result exams", zap.Error(err))
			return nil, status.Error(codes.Internal, "Server Error")
		}
	}
	byID := make(map[string]shared.Exam, len(exams))
	for _, e := range exams {
		byID[e.ID] = e
	}

	out := make([]StudentResult, 0, len(results))
	for _, r := range results {
		e := byID[r.ExamID]
		out = append(out, StudentResult{ExamResult: r, ExamName: e.Name, ScheduledDate: e.ScheduledDate})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledDate.After(out[j].ScheduledDate)
	})
	return out, nil
}

func (s *ExamService) get(ctx context.Context, caller *identity.Principal, examID string) (*shared.Exam, error) {
	var exam shared.Exam
	if err := shared.FindOneWithTimeout(ctx, s.examsCol, bson.M{"_id": examID}, &exam); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Exam not found")
		}
		s.log.Error("get exam", zap.String("exam_id", examID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if !caller.Manages(exam.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	return &exam, nil
}
