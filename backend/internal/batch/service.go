// Package batch manages student batches and answers roster lookups for the
// attendance, exam and fee services.
package batch

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

	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

// BatchService implements batch management
type BatchService struct {
	log        *zap.Logger
	batchesCol *mongo.Collection
	usersCol   *mongo.Collection
}

// CreateInput is the new-batch form
type CreateInput struct {
	Name       string
	ClassName  string
	StudentIDs []string
}

// View is a batch with its students expanded
type View struct {
	shared.Batch
	StudentDetails []shared.StudentSummary `json:"studentDetails"`
}

// NewBatchService creates a new BatchService instance
func NewBatchService(db *mongo.Database, logger *zap.Logger) *BatchService {
	return &BatchService{
		log:        logger,
		batchesCol: db.Collection(shared.ColBatches),
		usersCol:   db.Collection(shared.ColPrincipals),
	}
}

// Create adds a batch to the caller's institution
func (s *BatchService) Create(ctx context.Context, caller *identity.Principal, in CreateInput) (*shared.Batch, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || in.ClassName == "" || in.StudentIDs == nil {
		return nil, status.Error(codes.InvalidArgument, "Please provide name, className, and studentIds")
	}
	if !shared.IsValidClass(in.ClassName) {
		return nil, status.Errorf(codes.InvalidArgument, "className must be one of %s", strings.Join(shared.Classes, ", "))
	}

	studentIDs := Dedupe(in.StudentIDs)
	if err := s.checkMembership(ctx, caller.InstitutionID, studentIDs, ""); err != nil {
		return nil, err
	}

	batch := shared.Batch{
		ID:            shared.GenerateID(shared.PrefixBatch),
		InstitutionID: caller.InstitutionID,
		Name:          name,
		ClassName:     in.ClassName,
		Students:      studentIDs,
		CreatedBy:     caller.ID,
		CreatorRole:   caller.Role,
		CreatedAt:     time.Now(),
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.batchesCol.InsertOne(queryCtx, batch); err != nil {
		s.log.Error("insert batch", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("batch created",
		zap.String("batch_id", batch.ID),
		zap.Int("students", len(batch.Students)))
	return &batch, nil
}

// Update renames a batch and/or adds students to it
func (s *BatchService) Update(ctx context.Context, caller *identity.Principal, batchID, name string, studentIDs []string) (*shared.Batch, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	existing, err := s.Lookup(ctx, caller, batchID)
	if err != nil {
		return nil, err
	}

	update := bson.M{}
	if name = strings.TrimSpace(name); name != "" {
		update["$set"] = bson.M{"name": name}
	}
	if ids := Dedupe(studentIDs); len(ids) > 0 {
		if err := s.checkMembership(ctx, caller.InstitutionID, ids, existing.ID); err != nil {
			return nil, err
		}
		update["$addToSet"] = bson.M{"students": bson.M{"$each": ids}}
	}
	if len(update) == 0 {
		return nil, status.Error(codes.InvalidArgument, "No update data provided")
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	var updated shared.Batch
	err = s.batchesCol.FindOneAndUpdate(queryCtx,
		bson.M{"_id": existing.ID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		s.log.Error("update batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &updated, nil
}

// List returns the institution's batches, newest first, with student summaries
func (s *BatchService) List(ctx context.Context, caller *identity.Principal) ([]View, error) {
	if !caller.IsStaff() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	var batches []shared.Batch
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := shared.FindAll(ctx, s.batchesCol, bson.M{"institution_id": caller.InstitutionID}, &batches, opts); err != nil {
		s.log.Error("list batches", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	var allIDs []string
	for _, b := range batches {
		allIDs = append(allIDs, b.Students...)
	}
	students, err := s.fetchStudents(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]shared.StudentSummary, len(students))
	for i := range students {
		byID[students[i].ID] = students[i].Summarize()
	}

	views := make([]View, 0, len(batches))
	for _, b := range batches {
		v := View{Batch: b, StudentDetails: []shared.StudentSummary{}}
		for _, id := range b.Students {
			if summary, ok := byID[id]; ok {
				v.StudentDetails = append(v.StudentDetails, summary)
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// Lookup fetches a batch and checks it belongs to the caller's institution
func (s *BatchService) Lookup(ctx context.Context, caller *identity.Principal, batchID string) (*shared.Batch, error) {
	if batchID == "" {
		return nil, status.Error(codes.InvalidArgument, "Batch ID required")
	}

	var batch shared.Batch
	if err := shared.FindOneWithTimeout(ctx, s.batchesCol, bson.M{"_id": batchID}, &batch); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Batch not found")
		}
		s.log.Error("lookup batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if !caller.Manages(batch.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Not authorized to access this batch")
	}
	return &batch, nil
}

// Roster returns the students enrolled in the batch, ordered by register number
func (s *BatchService) Roster(ctx context.Context, batch *shared.Batch) ([]shared.User, error) {
	students, err := s.fetchStudents(ctx, batch.Students)
	if err != nil {
		return nil, err
	}
	sort.Slice(students, func(i, j int) bool {
		return students[i].RegisterNumber < students[j].RegisterNumber
	})
	return students, nil
}

// BatchOf returns the batch the student is enrolled in
func (s *BatchService) BatchOf(ctx context.Context, student *identity.Principal) (*shared.Batch, error) {
	var batch shared.Batch
	filter := bson.M{"institution_id": student.InstitutionID, "students": student.ID}
	if err := shared.FindOneWithTimeout(ctx, s.batchesCol, filter, &batch); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "You are not assigned to a batch yet")
		}
		s.log.Error("batch of student", zap.String("student_id", student.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &batch, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *BatchService) fetchStudents(ctx context.Context, ids []string) ([]shared.User, error) {
	students := []shared.User{}
	if len(ids) == 0 {
		return students, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}, "role": shared.RoleStudent}
	opts := options.Find().SetProjection(bson.M{"password_hash": 0})
	if err := shared.FindAll(ctx, s.usersCol, filter, &students, opts); err != nil {
		s.log.Error("fetch students", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return students, nil
}

// checkMembership enforces that every id is a student of the institution and
// that none of them sits in a batch other than excludeBatchID.
func (s *BatchService) checkMembership(ctx context.Context, institutionID string, ids []string, excludeBatchID string) error {
	if len(ids) == 0 {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	count, err := s.usersCol.CountDocuments(queryCtx, bson.M{
		"_id":            bson.M{"$in": ids},
		"role":           shared.RoleStudent,
		"institution_id": institutionID,
	})
	if err != nil {
		s.log.Error("count batch students", zap.Error(err))
		return status.Error(codes.Internal, "Server Error")
	}
	if int(count) != len(ids) {
		return status.Error(codes.InvalidArgument, "Some students do not belong to this institution")
	}

	filter := bson.M{"institution_id": institutionID, "students": bson.M{"$in": ids}}
	if excludeBatchID != "" {
		filter["_id"] = bson.M{"$ne": excludeBatchID}
	}
	var others []shared.Batch
	if err := shared.FindAll(ctx, s.batchesCol, filter, &others); err != nil {
		s.log.Error("find conflicting batches", zap.Error(err))
		return status.Error(codes.Internal, "Server Error")
	}

	if conflicts := Conflicts(others, ids); len(conflicts) > 0 {
		return status.Errorf(codes.InvalidArgument,
			"Students already assigned to another batch: %s", strings.Join(conflicts, ", "))
	}
	return nil
}

// Dedupe drops blank and repeated ids, keeping first-seen order
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Conflicts lists the ids that already appear in one of the batches
func Conflicts(batches []shared.Batch, ids []string) []string {
	taken := make(map[string]struct{})
	for _, b := range batches {
		for _, id := range b.Students {
			taken[id] = struct{}{}
		}
	}
	var conflicts []string
	for _, id := range ids {
		if _, ok := taken[id]; ok {
			conflicts = append(conflicts, id)
		}
	}
	return conflicts
}
