// Package institution onboards tenants and their staff accounts.
package institution

import (
	"context"
	"regexp"
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

// InstitutionService handles institutions, owners, admins and teachers
type InstitutionService struct {
	log             *zap.Logger
	auth            *auth.AuthService
	institutionsCol *mongo.Collection
	usersCol        *mongo.Collection
}

// StaffInput describes a new owner, admin or teacher account
type StaffInput struct {
	Name          string
	Email         string
	Password      string
	InstitutionID string
}

// NewInstitutionService creates a new InstitutionService instance
func NewInstitutionService(db *mongo.Database, authService *auth.AuthService, logger *zap.Logger) *InstitutionService {
	return &InstitutionService{
		log:             logger,
		auth:            authService,
		institutionsCol: db.Collection(shared.ColInstitutions),
		usersCol:        db.Collection(shared.ColPrincipals),
	}
}

// RegisterInstitution creates a tenant. Names are unique, case-insensitively.
func (s *InstitutionService) RegisterInstitution(ctx context.Context, name, location string) (*shared.Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "Institution name is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	filter := bson.M{"name": bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"}}
	count, err := s.institutionsCol.CountDocuments(queryCtx, filter)
	if err != nil {
		s.log.Error("count institutions", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if count > 0 {
		return nil, status.Error(codes.InvalidArgument, "Institution already exists")
	}

	inst := shared.Institution{
		ID:        shared.GenerateID(shared.PrefixInstitution),
		Name:      name,
		Location:  strings.TrimSpace(location),
		CreatedAt: time.Now(),
	}
	if _, err := s.institutionsCol.InsertOne(queryCtx, inst); err != nil {
		s.log.Error("insert institution", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("institution registered", zap.String("institution_id", inst.ID))
	return &inst, nil
}

// ListInstitutions returns id and name of every institution, alphabetically
func (s *InstitutionService) ListInstitutions(ctx context.Context) ([]shared.Institution, error) {
	opts := options.Find().
		SetProjection(bson.M{"name": 1, "location": 1}).
		SetSort(bson.D{{Key: "name", Value: 1}})

	institutions := []shared.Institution{}
	if err := shared.FindAll(ctx, s.institutionsCol, bson.M{}, &institutions, opts); err != nil {
		s.log.Error("list institutions", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return institutions, nil
}

// Get fetches one institution
func (s *InstitutionService) Get(ctx context.Context, institutionID string) (*shared.Institution, error) {
	var inst shared.Institution
	if err := shared.FindOneWithTimeout(ctx, s.institutionsCol, bson.M{"_id": institutionID}, &inst); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "Institution not found")
		}
		s.log.Error("get institution", zap.String("institution_id", institutionID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &inst, nil
}

// RegisterOwner creates the owner account of an existing institution
func (s *InstitutionService) RegisterOwner(ctx context.Context, in StaffInput) (*shared.User, error) {
	if _, err := s.Get(ctx, in.InstitutionID); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, status.Error(codes.InvalidArgument, "Invalid institution")
		}
		return nil, err
	}
	return s.createStaff(ctx, shared.RoleOwner, in, nil)
}

// CreateAdmin lets an owner add an admin to the owner's institution
func (s *InstitutionService) CreateAdmin(ctx context.Context, caller *identity.Principal, in StaffInput) (*shared.User, error) {
	if !caller.Is(shared.RoleOwner) {
		return nil, status.Error(codes.PermissionDenied, "Only owners can create admins")
	}
	in.InstitutionID = caller.InstitutionID
	return s.createStaff(ctx, shared.RoleAdmin, in, caller)
}

// CreateTeacher lets an owner or admin add a teacher
func (s *InstitutionService) CreateTeacher(ctx context.Context, caller *identity.Principal, in StaffInput) (*shared.User, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	in.InstitutionID = caller.InstitutionID
	return s.createStaff(ctx, shared.RoleTeacher, in, caller)
}

// ListStaff lists the admins or teachers of the caller's institution
func (s *InstitutionService) ListStaff(ctx context.Context, caller *identity.Principal, role string) ([]shared.User, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	if role != shared.RoleAdmin && role != shared.RoleTeacher {
		return nil, status.Error(codes.InvalidArgument, "Invalid role")
	}

	opts := options.Find().
		SetProjection(bson.M{"password_hash": 0}).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	users := []shared.User{}
	filter := bson.M{"institution_id": caller.InstitutionID, "role": role}
	if err := shared.FindAll(ctx, s.usersCol, filter, &users, opts); err != nil {
		s.log.Error("list staff", zap.String("role", role), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return users, nil
}

func (s *InstitutionService) createStaff(ctx context.Context, role string, in StaffInput, creator *identity.Principal) (*shared.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || email == "" || in.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "Name, email and password are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	count, err := s.usersCol.CountDocuments(queryCtx, bson.M{"email": email})
	if err != nil {
		s.log.Error("count users", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if count > 0 {
		return nil, status.Error(codes.InvalidArgument, "User already exists")
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "Server Error")
	}

	now := time.Now()
	user := shared.User{
		ID:            shared.GenerateID(shared.PrefixUser),
		Role:          role,
		InstitutionID: in.InstitutionID,
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		PasswordHash:  hash,
		IsApproved:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if creator != nil {
		user.CreatedBy = creator.ID
		user.CreatorRole = creator.Role
	}

	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, status.Error(codes.InvalidArgument, "User already exists")
		}
		s.log.Error("insert staff", zap.String("role", role), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("staff account created",
		zap.String("user_id", user.ID),
		zap.String("role", role),
		zap.String("institution_id", user.InstitutionID))

	user.PasswordHash = ""
	return &user, nil
}
