package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

const tokenIssuer = "tuitiondesk"

// Messages shared with the HTTP layer
const (
	MsgInvalidCredentials = "Invalid Credentials"
	MsgAwaitingApproval   = "Account waiting for Admin approval. Please contact your institution."
	MsgTokenFailed        = "Not authorized, token failed"
)

// AuthService issues and validates tokens and owns password handling
type AuthService struct {
	config      *shared.ServiceConfig
	log         *zap.Logger
	resolver    *identity.Resolver
	usersCol    *mongo.Collection
	sessionsCol *mongo.Collection
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest carries the credentials of one login attempt. Role, when set,
// restricts the match to principals of that role.
type LoginRequest struct {
	Identifier string
	Password   string
	Role       string
	IPAddress  string
}

// LoginResult is returned on a successful login
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *shared.User
}

// NewAuthService creates a new AuthService instance
func NewAuthService(db *mongo.Database, config *shared.ServiceConfig, resolver *identity.Resolver, logger *zap.Logger) *AuthService {
	return &AuthService{
		config:      config,
		log:         logger,
		resolver:    resolver,
		usersCol:    db.Collection(shared.ColPrincipals),
		sessionsCol: db.Collection(shared.ColSessions),
	}
}

// Login authenticates a principal by email (staff) or register number (student)
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "Please provide credentials")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 1. Find the principal
	filter := bson.M{
		"$or": []bson.M{
			{"email": strings.ToLower(identifier)},
			{"register_number": strings.ToUpper(identifier)},
		},
	}
	if req.Role != "" {
		filter["role"] = req.Role
	}

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, filter).Decode(&user); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.InvalidArgument, MsgInvalidCredentials)
		}
		s.log.Error("login lookup", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	// 2. Check password
	if !CheckPassword(user.PasswordHash, req.Password) {
		return nil, status.Error(codes.InvalidArgument, MsgInvalidCredentials)
	}

	// 3. Students need approval first
	if user.Role == shared.RoleStudent && !user.IsApproved {
		return nil, status.Error(codes.PermissionDenied, MsgAwaitingApproval)
	}

	// 4. Issue the token and record the session
	tokenString, expiresAt, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		s.log.Error("sign token", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	session := shared.Session{
		ID:        shared.GenerateID(shared.PrefixSession),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
		IPAddress: req.IPAddress,
	}
	if _, err := s.sessionsCol.InsertOne(queryCtx, session); err != nil {
		s.log.Error("create session", zap.String("user_id", user.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	user.PasswordHash = ""
	return &LoginResult{Token: tokenString, ExpiresAt: expiresAt, User: &user}, nil
}

// Logout removes the session of the token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return status.Error(codes.InvalidArgument, "token is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.sessionsCol.DeleteMany(queryCtx, bson.M{"token": token}); err != nil {
		s.log.Error("logout", zap.Error(err))
		return status.Error(codes.Internal, "Server Error")
	}
	return nil
}

// ValidateToken checks signature, expiry and a live session, then resolves the caller
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*identity.Principal, error) {
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "Not authorized, no token")
	}

	// 1. Parse and verify signature locally
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, MsgTokenFailed)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 2. Revocation check
	count, err := s.sessionsCol.CountDocuments(queryCtx, bson.M{"token": token})
	if err != nil {
		s.log.Error("session lookup", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if count == 0 {
		return nil, status.Error(codes.Unauthenticated, MsgTokenFailed)
	}

	// 3. Resolve principal
	return s.resolver.Resolve(ctx, claims.UserID)
}

// ChangePassword verifies the old password, stores the new one and revokes every session
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" || oldPassword == "" || newPassword == "" {
		return status.Error(codes.InvalidArgument, "All fields are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if shared.IsNotFound(err) {
			return status.Error(codes.NotFound, "User not found")
		}
		return status.Error(codes.Internal, "Server Error")
	}

	if !CheckPassword(user.PasswordHash, oldPassword) {
		return status.Error(codes.InvalidArgument, "Incorrect old password")
	}

	newHash, err := s.HashPassword(newPassword)
	if err != nil {
		return status.Error(codes.Internal, "Server Error")
	}

	_, err = s.usersCol.UpdateOne(queryCtx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"password_hash": newHash, "updated_at": time.Now()},
	})
	if err != nil {
		s.log.Error("update password", zap.String("user_id", userID), zap.Error(err))
		return status.Error(codes.Internal, "Server Error")
	}

	s.RevokeSessions(ctx, userID)
	return nil
}

// RevokeSessions logs the user out everywhere. Failures are logged, not returned.
func (s *AuthService) RevokeSessions(ctx context.Context, userID string) {
	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.sessionsCol.DeleteMany(queryCtx, bson.M{"user_id": userID}); err != nil {
		s.log.Warn("revoke sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

// CurrentUser returns the caller's document without the password hash
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*shared.User, error) {
	var user shared.User
	if err := shared.FindOneWithTimeout(ctx, s.usersCol, bson.M{"_id": userID}, &user); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "User not found")
		}
		return nil, status.Error(codes.Internal, "Server Error")
	}
	user.PasswordHash = ""
	return &user, nil
}

// HashPassword hashes with the configured bcrypt cost
func (s *AuthService) HashPassword(password string) (string, error) {
	return HashPassword(password, s.config.Security.BCryptCost)
}

// ============================================================================
// Password helpers
// ============================================================================

// HashPassword returns the bcrypt hash of password
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// generateToken creates a signed JWT
func (s *AuthService) generateToken(userID, role string) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(time.Duration(s.config.Security.JWTExpirationHours) * time.Hour)

	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))

	return tokenString, expirationTime, err
}

// parseToken validates the JWT signature and extracts claims
func (s *AuthService) parseToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
