// Package attendance records per-session attendance for batches.
package attendance

import (
	"context"
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

// MsgDuplicateSession is returned when a batch session is marked twice
const MsgDuplicateSession = "Attendance already taken for this session. Use update to edit."

// AttendanceService implements attendance marking and reporting
type AttendanceService struct {
	log           *zap.Logger
	batches       *batch.BatchService
	attendanceCol *mongo.Collection
}

// MarkInput is one attendance submission
type MarkInput struct {
	BatchID          string
	Date             string
	StartTime        string
	EndTime          string
	Session          string
	AbsentStudentIDs []string
}

// MarkResult echoes the stored record split by status
type MarkResult struct {
	Record  *shared.Attendance
	Present []shared.AttendanceRecord
	Absent  []shared.AttendanceRecord
}

// BatchRoster is the attendance form of a batch
type BatchRoster struct {
	BatchName string                  `json:"batchName"`
	ClassName string                  `json:"className"`
	Students  []shared.StudentSummary `json:"students"`
}

// RecordView is an attendance record with its batch name
type RecordView struct {
	shared.Attendance
	BatchName string `json:"batchName,omitempty"`
	ClassName string `json:"className,omitempty"`
}

// SessionStatus is one session from a student's point of view
type SessionStatus struct {
	AttendanceID string    `json:"attendanceId"`
	Date         time.Time `json:"date"`
	Session      string    `json:"session"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	Status       string    `json:"status"`
}

// StudentAttendance is what a student sees of their own attendance
type StudentAttendance struct {
	BatchName string          `json:"batchName"`
	Summary   Summary         `json:"summary"`
	Sessions  []SessionStatus `json:"sessions"`
}

// NewAttendanceService creates a new AttendanceService instance
func NewAttendanceService(db *mongo.Database, batches *batch.BatchService, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{
		log:           logger,
		batches:       batches,
		attendanceCol: db.Collection(shared.ColAttendance),
	}
}

// BatchStudents returns the roster used to fill the attendance form
func (s *AttendanceService) BatchStudents(ctx context.Context, caller *identity.Principal, batchID string) (*BatchRoster, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	b, err := s.batches.Lookup(ctx, caller, batchID)
	if err != nil {
		return nil, err
	}
	students, err := s.batches.Roster(ctx, b)
	if err != nil {
		return nil, err
	}

	roster := &BatchRoster{BatchName: b.Name, ClassName: b.ClassName, Students: make([]shared.StudentSummary, 0, len(students))}
	for i := range students {
		roster.Students = append(roster.Students, students[i].Summarize())
	}
	return roster, nil
}

// Mark stores a new session record. A second submission for the same batch,
// date and session fails with MsgDuplicateSession.
func (s *AttendanceService) Mark(ctx context.Context, caller *identity.Principal, in MarkInput) (*MarkResult, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Only Teachers, Admins, or Owners can take attendance")
	}
	if in.BatchID == "" || in.Date == "" || in.Session == "" {
		return nil, status.Error(codes.InvalidArgument, "batchId, date and session are required")
	}
	if !shared.IsValidSession(in.Session) {
		return nil, status.Error(codes.InvalidArgument, "session must be Morning, Afternoon or Evening")
	}
	date, err := shared.ParseDate(in.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "Invalid date")
	}

	b, err := s.batches.Lookup(ctx, caller, in.BatchID)
	if err != nil {
		return nil, err
	}
	students, err := s.batches.Roster(ctx, b)
	if err != nil {
		return nil, err
	}

	records, metrics := BuildRecords(students, in.AbsentStudentIDs)
	now := time.Now()
	record := shared.Attendance{
		ID:            shared.GenerateID(shared.PrefixAttendance),
		InstitutionID: b.InstitutionID,
		BatchID:       b.ID,
		Date:          shared.DayStart(date),
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Session:       in.Session,
		Records:       records,
		Metrics:       metrics,
		TakenBy:       caller.Actor(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.attendanceCol.InsertOne(queryCtx, record); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, status.Error(codes.InvalidArgument, MsgDuplicateSession)
		}
		s.log.Error("insert attendance", zap.String("batch_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	present, absent := Split(records)
	return &MarkResult{Record: &record, Present: present, Absent: absent}, nil
}

// Update re-derives every status of a stored record from a new absentee list
func (s *AttendanceService) Update(ctx context.Context, caller *identity.Principal, attendanceID string, absentIDs []string) (*shared.Attendance, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Only Admins or Owners can edit attendance")
	}

	var record shared.Attendance
	if err := shared.FindOneWithTimeout(ctx, s.attendanceCol, bson.M{"_id": attendanceID}, &record); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Attendance record not found")
		}
		s.log.Error("find attendance", zap.String("attendance_id", attendanceID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if !caller.Manages(record.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	record.Metrics = Restamp(record.Records, absentIDs)
	record.UpdatedAt = time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	_, err := s.attendanceCol.UpdateOne(queryCtx, bson.M{"_id": record.ID}, bson.M{
		"$set": bson.M{
			"records":    record.Records,
			"metrics":    record.Metrics,
			"updated_at": record.UpdatedAt,
		},
	})
	if err != nil {
		s.log.Error("update attendance", zap.String("attendance_id", record.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &record, nil
}

// View lists the institution's records, newest first, optionally filtered
func (s *AttendanceService) View(ctx context.Context, caller *identity.Principal, batchID, date string) ([]RecordView, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	filter := bson.M{"institution_id": caller.InstitutionID}
	if batchID != "" {
		filter["batch_id"] = batchID
	}
	if date != "" {
		d, err := shared.ParseDate(date)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "Invalid date")
		}
		filter["date"] = shared.DayStart(d)
	}

	var records []shared.Attendance
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}})
	if err := shared.FindAll(ctx, s.attendanceCol, filter, &records, opts); err != nil {
		s.log.Error("view attendance", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	names := map[string]*shared.Batch{}
	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		b, ok := names[r.BatchID]
		if !ok {
			b, _ = s.batches.Lookup(ctx, caller, r.BatchID)
			names[r.BatchID] = b
		}
		v := RecordView{Attendance: r}
		if b != nil {
			v.BatchName, v.ClassName = b.Name, b.ClassName
		}
		views = append(views, v)
	}
	return views, nil
}

// MyAttendance returns the calling student's sessions and attendance rate
func (s *AttendanceService) MyAttendance(ctx context.Context, caller *identity.Principal) (*StudentAttendance, error) {
	if !caller.Is(shared.RoleStudent) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	b, err := s.batches.BatchOf(ctx, caller)
	if err != nil {
		return nil, err
	}

	var records []shared.Attendance
	filter := bson.M{"batch_id": b.ID, "records.student_id": caller.ID}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if err := shared.FindAll(ctx, s.attendanceCol, filter, &records, opts); err != nil {
		s.log.Error("student attendance", zap.String("student_id", caller.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	result := &StudentAttendance{BatchName: b.Name, Sessions: []SessionStatus{}}
	var statuses []string
	for _, r := range records {
		for _, rec := range r.Records {
			if rec.StudentID != caller.ID {
				continue
			}
			statuses = append(statuses, rec.Status)
			result.Sessions = append(result.Sessions, SessionStatus{
				AttendanceID: r.ID,
				Date:         r.Date,
				Session:      r.Session,
				StartTime:    r.StartTime,
				EndTime:      r.EndTime,
				Status:       rec.Status,
			})
		}
	}
	result.Summary = Summarize(statuses)
	return result, nil
}
