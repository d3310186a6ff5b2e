// Package student handles student self-registration, approval and profiles.
package student

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/auth"
	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

const minPasswordLength = 6

// StudentService implements the student account operations
type StudentService struct {
	db              *mongo.Database
	log             *zap.Logger
	auth            *auth.AuthService
	photos          *PhotoStore
	institutionsCol *mongo.Collection
	usersCol        *mongo.Collection
}

// RegisterInput is the public registration form
type RegisterInput struct {
	FirstName     string
	LastName      string
	DOB           string
	InstitutionID string
}

// Registration is returned once, right after registering
type Registration struct {
	StudentID         string `json:"studentId"`
	RegisterNumber    string `json:"registerNumber"`
	TemporaryPassword string `json:"temporaryPassword"`
}

// ProfileUpdate carries the fields a student may change. Empty fields are left alone.
type ProfileUpdate struct {
	ClassName      string
	Medium         string
	Syllabus       string
	SchoolName     string
	FatherName     string
	MotherName     string
	PhoneNumber    string
	WhatsappNumber string
	Address        string
	Password       string
	ProfilePhoto   string
}

// NewStudentService creates a new StudentService instance
func NewStudentService(db *mongo.Database, authService *auth.AuthService, photos *PhotoStore, logger *zap.Logger) *StudentService {
	return &StudentService{
		db:              db,
		log:             logger,
		auth:            authService,
		photos:          photos,
		institutionsCol: db.Collection(shared.ColInstitutions),
		usersCol:        db.Collection(shared.ColPrincipals),
	}
}

// Photos exposes the photo store used for profile uploads
func (s *StudentService) Photos() *PhotoStore { return s.photos }

// Register creates an unapproved student with a generated register number and temporary password
func (s *StudentService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" || in.DOB == "" || in.InstitutionID == "" {
		return nil, status.Error(codes.InvalidArgument, "Please enter all fields")
	}

	dob, err := shared.ParseDate(in.DOB)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "Invalid date of birth")
	}
	dob = shared.DayStart(dob)

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	// 1. Bump the institution's student counter atomically
	var inst shared.Institution
	err = s.institutionsCol.FindOneAndUpdate(
		queryCtx,
		bson.M{"_id": in.InstitutionID},
		bson.M{"$inc": bson.M{"student_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inst)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Institution not found")
		}
		s.log.Error("bump student counter", zap.String("institution_id", in.InstitutionID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	// 2. Derive credentials. Institutions sharing a prefix share one counter.
	prefix := RegisterPrefix(inst.Name)
	seq, err := shared.NextSequence(queryCtx, s.db, RegisterSequenceKey(prefix))
	if err != nil {
		s.log.Error("next register sequence", zap.String("prefix", prefix), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	registerNumber := RegisterNumber(prefix, seq)
	tempPassword := TemporaryPassword(firstName, dob)

	hash, err := s.auth.HashPassword(tempPassword)
	if err != nil {
		return nil, status.Error(codes.Internal, "Server Error")
	}

	// 3. Insert the student
	now := time.Now()
	student := shared.User{
		ID:             shared.GenerateID(shared.PrefixUser),
		Role:           shared.RoleStudent,
		InstitutionID:  inst.ID,
		Name:           firstName + " " + lastName,
		FirstName:      firstName,
		LastName:       lastName,
		DOB:            &dob,
		RegisterNumber: registerNumber,
		PasswordHash:   hash,
		IsApproved:     false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.usersCol.InsertOne(queryCtx, student); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, status.Error(codes.Aborted, "Register number already taken, please retry")
		}
		s.log.Error("insert student", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("register_number", registerNumber))

	return &Registration{
		StudentID:         student.ID,
		RegisterNumber:    registerNumber,
		TemporaryPassword: tempPassword,
	}, nil
}

// ListPending returns the caller's unapproved students
func (s *StudentService) ListPending(ctx context.Context, caller *identity.Principal) ([]shared.User, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	filter := bson.M{
		"institution_id": caller.InstitutionID,
		"role":           shared.RoleStudent,
		"is_approved":    false,
	}
	opts := options.Find().
		SetProjection(bson.M{"password_hash": 0}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	students := []shared.User{}
	if err := shared.FindAll(ctx, s.usersCol, filter, &students, opts); err != nil {
		s.log.Error("list pending students", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return students, nil
}

// Approve lets a student of the caller's institution log in
func (s *StudentService) Approve(ctx context.Context, caller *identity.Principal, studentID string) (*shared.User, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !caller.Manages(student.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Not authorized to approve students from other institutions")
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	now := time.Now()
	_, err = s.usersCol.UpdateOne(queryCtx, bson.M{"_id": studentID}, bson.M{
		"$set": bson.M{"is_approved": true, "updated_at": now},
	})
	if err != nil {
		s.log.Error("approve student", zap.String("student_id", studentID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	student.IsApproved = true
	student.UpdatedAt = now
	return student, nil
}

// UpdateProfile applies the non-empty fields of the update to the calling student
func (s *StudentService) UpdateProfile(ctx context.Context, caller *identity.Principal, in ProfileUpdate) (*shared.User, error) {
	if !caller.Is(shared.RoleStudent) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	if err := validateProfile(in); err != nil {
		return nil, err
	}

	fields := bson.M{}
	setIf := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			fields[key] = v
		}
	}
	setIf("class_name", in.ClassName)
	setIf("medium", in.Medium)
	setIf("syllabus", in.Syllabus)
	setIf("school_name", in.SchoolName)
	setIf("father_name", in.FatherName)
	setIf("mother_name", in.MotherName)
	setIf("phone_number", in.PhoneNumber)
	setIf("whatsapp_number", in.WhatsappNumber)
	setIf("address", in.Address)
	setIf("profile_photo", in.ProfilePhoto)

	if in.Password != "" {
		hash, err := s.auth.HashPassword(in.Password)
		if err != nil {
			return nil, status.Error(codes.Internal, "Server Error")
		}
		fields["password_hash"] = hash
	}
	fields["updated_at"] = time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"password_hash": 0})

	var updated shared.User
	err := s.usersCol.FindOneAndUpdate(queryCtx,
		bson.M{"_id": caller.ID, "role": shared.RoleStudent},
		bson.M{"$set": fields},
		opts,
	).Decode(&updated)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Student not found")
		}
		s.log.Error("update profile", zap.String("student_id", caller.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	if in.Password != "" {
		s.auth.RevokeSessions(ctx, caller.ID)
	}
	return &updated, nil
}

// StudentsByClass lists approved students of a class for batch selection
func (s *StudentService) StudentsByClass(ctx context.Context, caller *identity.Principal, className string) ([]shared.StudentSummary, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	if className == "" {
		return nil, status.Error(codes.InvalidArgument, "Please provide a className query parameter")
	}

	filter := bson.M{
		"institution_id": caller.InstitutionID,
		"role":           shared.RoleStudent,
		"class_name":     className,
		"is_approved":    true,
	}
	opts := options.Find().SetSort(bson.D{{Key: "register_number", Value: 1}})

	var students []shared.User
	if err := shared.FindAll(ctx, s.usersCol, filter, &students, opts); err != nil {
		s.log.Error("students by class", zap.String("class", className), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	summaries := make([]shared.StudentSummary, 0, len(students))
	for i := range students {
		summaries = append(summaries, students[i].Summarize())
	}
	return summaries, nil
}

// Get fetches a student by id
func (s *StudentService) Get(ctx context.Context, studentID string) (*shared.User, error) {
	var student shared.User
	filter := bson.M{"_id": studentID, "role": shared.RoleStudent}
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 0})
	if err := shared.FindOneWithTimeout(ctx, s.usersCol, filter, &student, opts); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Student not found")
		}
		s.log.Error("get student", zap.String("student_id", studentID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &student, nil
}

func validateProfile(in ProfileUpdate) error {
	check := func(field, value string, valid func(string) bool, allowed []string) error {
		if value != "" && !valid(value) {
			return status.Errorf(codes.InvalidArgument, "Validation Error: %s must be one of %s", field, strings.Join(allowed, ", "))
		}
		return nil
	}
	if err := check("className", in.ClassName, shared.IsValidClass, shared.Classes); err != nil {
		return err
	}
	if err := check("medium", in.Medium, shared.IsValidMedium, shared.Mediums); err != nil {
		return err
	}
	if err := check("syllabus", in.Syllabus, shared.IsValidSyllabus, shared.Syllabi); err != nil {
		return err
	}
	if in.Password != "" && len(in.Password) < minPasswordLength {
		return status.Errorf(codes.InvalidArgument, "Validation Error: password must be at least %d characters", minPasswordLength)
	}
	return nil
}
