// Package identity resolves an authenticated user id into a role-tagged principal.
package identity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/shared"
)

// Principal is the caller of a request
type Principal struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	InstitutionID  string `json:"institutionId"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	RegisterNumber string `json:"registerNumber,omitempty"`
	ClassName      string `json:"className,omitempty"`
}

// FromUser builds the principal view of a user document
func FromUser(u *shared.User) *Principal {
	return &Principal{
		ID:             u.ID,
		Role:           u.Role,
		InstitutionID:  u.InstitutionID,
		Name:           u.DisplayName(),
		Email:          u.Email,
		RegisterNumber: u.RegisterNumber,
		ClassName:      u.ClassName,
	}
}

// Is reports whether the principal holds one of the roles
func (p *Principal) Is(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsStaff is true for owners, admins and teachers
func (p *Principal) IsStaff() bool {
	return p.Is(shared.RoleOwner, shared.RoleAdmin, shared.RoleTeacher)
}

// IsManager is true for owners and admins
func (p *Principal) IsManager() bool {
	return p.Is(shared.RoleOwner, shared.RoleAdmin)
}

// Manages reports whether the principal belongs to the institution
func (p *Principal) Manages(institutionID string) bool {
	return institutionID != "" && p.InstitutionID == institutionID
}

// Actor is the audit stamp written alongside records the principal creates
func (p *Principal) Actor() shared.Actor {
	return shared.Actor{UserID: p.ID, Role: p.Role, Name: p.Name}
}

// ============================================================================
// Resolver
// ============================================================================

// Resolver looks principals up by id
type Resolver struct {
	usersCol *mongo.Collection
	log      *zap.Logger
}

// NewResolver creates a resolver over the principals collection
func NewResolver(db *mongo.Database, logger *zap.Logger) *Resolver {
	return &Resolver{
		usersCol: db.Collection(shared.ColPrincipals),
		log:      logger,
	}
}

// Resolve fetches the principal with a single indexed lookup
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Principal, error) {
	if userID == "" {
		return nil, status.Error(codes.Unauthenticated, "Not authorized, no token")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 0})
	err := r.usersCol.FindOne(queryCtx, bson.M{"_id": userID}, opts).Decode(&user)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.PermissionDenied, "Access denied")
		}
		r.log.Error("resolve principal", zap.String("user_id", userID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	return FromUser(&user), nil
}

// ============================================================================
// Context helpers
// ============================================================================

type contextKey struct{}

// WithPrincipal stores the principal in the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}

// Require returns the caller when it holds one of the roles. With no roles
// any authenticated caller passes.
func Require(ctx context.Context, roles ...string) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Not authorized, no token")
	}
	if len(roles) > 0 && !p.Is(roles...) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	return p, nil
}
