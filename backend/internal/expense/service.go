// Package expense records institution expenditures.
package expense

import (
	"context"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

// ExpenseService implements expenditure bookkeeping
type ExpenseService struct {
	log         *zap.Logger
	expensesCol *mongo.Collection
}

// AddInput is the new-expense form
type AddInput struct {
	Title       string
	Amount      float64
	Category    string
	Description string
	Date        string
}

// Ledger is the institution's expenses with their sum
type Ledger struct {
	Expenses     []shared.Expenditure `json:"expenses"`
	TotalExpense float64              `json:"totalExpense"`
}

// NewExpenseService creates a new ExpenseService instance
func NewExpenseService(db *mongo.Database, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{
		log:         logger,
		expensesCol: db.Collection(shared.ColExpenditures),
	}
}

// Add records an expense for the caller's institution
func (s *ExpenseService) Add(ctx context.Context, caller *identity.Principal, in AddInput) (*shared.Expenditure, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	exp, err := Normalize(in, time.Now())
	if err != nil {
		return nil, err
	}
	exp.ID = shared.GenerateID(shared.PrefixExpense)
	exp.InstitutionID = caller.InstitutionID
	exp.RecordedBy = caller.Actor()

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.expensesCol.InsertOne(queryCtx, exp); err != nil {
		s.log.Error("insert expense", zap.String("institution_id", caller.InstitutionID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return exp, nil
}

// List returns the institution's expenses, newest first, with their total
func (s *ExpenseService) List(ctx context.Context, caller *identity.Principal) (*Ledger, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	expenses := []shared.Expenditure{}
	opts := shared.BuildFindOptions(0, "date", -1)
	if err := shared.FindAll(ctx, s.expensesCol, bson.M{"institution_id": caller.InstitutionID}, &expenses, opts); err != nil {
		s.log.Error("list expenses", zap.String("institution_id", caller.InstitutionID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &Ledger{Expenses: expenses, TotalExpense: Total(expenses)}, nil
}

// Normalize validates the form and applies the defaults: category Other and
// date now.
func Normalize(in AddInput, now time.Time) (*shared.Expenditure, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, status.Error(codes.InvalidArgument, "title is required")
	}
	if in.Amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, status.Error(codes.InvalidArgument, "amount must be greater than 0")
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = shared.CategoryOther
	}
	if !shared.IsValidExpenseCategory(category) {
		return nil, status.Errorf(codes.InvalidArgument, "category must be one of %s", strings.Join(shared.ExpenseCategories, ", "))
	}

	date := now
	if in.Date != "" {
		parsed, err := shared.ParseDate(in.Date)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "Invalid date")
		}
		date = parsed
	}

	return &shared.Expenditure{
		Title:       title,
		Amount:      in.Amount,
		Category:    category,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
	}, nil
}

// Total sums expense amounts
func Total(expenses []shared.Expenditure) float64 {
	total := 0.0
	for _, e := range expenses {
		total += e.Amount
	}
	return total
}
