// Package fee keeps versioned fee structures, per-student monthly ledgers and
// payment receipts.
package fee

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

	"tuitiondesk/backend/internal/batch"
	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/shared"
)

const (
	MsgNoLedger      = "Fee record not found. Contact Admin."
	MsgNothingToPay  = "Selected months are already paid or invalid"
	MsgPayOthers     = "Cannot pay for others"
	MsgPayConflict   = "Fee record changed during payment, please retry"
	structureCounter = "fee_structure:"
)

// FeeService implements fee structures, ledgers and payments
type FeeService struct {
	db              *mongo.Database
	log             *zap.Logger
	batches         *batch.BatchService
	structuresCol   *mongo.Collection
	ledgersCol      *mongo.Collection
	transactionsCol *mongo.Collection
	usersCol        *mongo.Collection
	institutionsCol *mongo.Collection
}

// StructureInput is the fee plan form for a batch
type StructureInput struct {
	BatchID        string
	MonthlyFee     float64
	AcademicMonths []string
	Description    string
}

// StructureResult is the stored structure and the number of ledgers it touched
type StructureResult struct {
	Structure      *shared.FeeStructure `json:"feeStructure"`
	LedgersUpdated int                  `json:"ledgersUpdated"`
}

// PayInput is a payment request. The amount is always computed server side.
type PayInput struct {
	StudentID     string
	MonthsToPay   []string
	PaymentMethod string
}

// Receipt is returned after a successful payment
type Receipt struct {
	TransactionID  string    `json:"transactionId"`
	Date           time.Time `json:"date"`
	StudentName    string    `json:"studentName"`
	RegisterNumber string    `json:"registerNumber"`
	Institution    string    `json:"institution"`
	Class          string    `json:"class"`
	MonthsPaid     []string  `json:"monthsPaid"`
	AmountPaid     float64   `json:"amountPaid"`
	PaymentMethod  string    `json:"paymentMethod"`
}

// NewFeeService creates a new FeeService instance
func NewFeeService(db *mongo.Database, batches *batch.BatchService, logger *zap.Logger) *FeeService {
	return &FeeService{
		db:              db,
		log:             logger,
		batches:         batches,
		structuresCol:   db.Collection(shared.ColFeeStructures),
		ledgersCol:      db.Collection(shared.ColStudentFees),
		transactionsCol: db.Collection(shared.ColFeeTransactions),
		usersCol:        db.Collection(shared.ColPrincipals),
		institutionsCol: db.Collection(shared.ColInstitutions),
	}
}

// ============================================================================
// Structures
// ============================================================================

// SetStructure appends a new structure version for the batch and merges it into
// the ledger of every enrolled student.
func (s *FeeService) SetStructure(ctx context.Context, caller *identity.Principal, in StructureInput) (*StructureResult, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	// 1. Validate the plan
	months := make([]string, 0, len(in.AcademicMonths))
	for _, m := range in.AcademicMonths {
		months = append(months, strings.TrimSpace(m))
	}
	if msg := ValidateStructure(in.MonthlyFee, in.AcademicMonths); msg != "" {
		return nil, status.Error(codes.InvalidArgument, msg)
	}

	b, err := s.batches.Lookup(ctx, caller, in.BatchID)
	if err != nil {
		return nil, err
	}

	// 2. Append the structure version
	version, err := shared.NextSequence(ctx, s.db, structureCounter+b.ID)
	if err != nil {
		s.log.Error("fee structure version", zap.String("batch_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	structure := shared.FeeStructure{
		ID:             shared.GenerateID(shared.PrefixFeeStruct),
		InstitutionID:  b.InstitutionID,
		BatchID:        b.ID,
		Version:        version,
		MonthlyFee:     in.MonthlyFee,
		AcademicMonths: months,
		TotalAnnualFee: in.MonthlyFee * float64(len(months)),
		Description:    strings.TrimSpace(in.Description),
		CreatedBy:      caller.ID,
		CreatedAt:      time.Now(),
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	if _, err := s.structuresCol.InsertOne(queryCtx, structure); err != nil {
		s.log.Error("insert fee structure", zap.String("batch_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	result := &StructureResult{Structure: &structure}
	if len(b.Students) == 0 {
		return result, nil
	}

	// 3. Merge into existing ledgers
	var existing []shared.StudentFee
	if err := shared.FindAll(ctx, s.ledgersCol, bson.M{"student_id": bson.M{"$in": b.Students}}, &existing); err != nil {
		s.log.Error("load ledgers", zap.String("batch_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	byStudent := make(map[string]*shared.StudentFee, len(existing))
	for i := range existing {
		byStudent[existing[i].StudentID] = &existing[i]
	}

	models := make([]mongo.WriteModel, 0, len(b.Students))
	for _, studentID := range b.Students {
		ledger := Merge(byStudent[studentID], &structure, studentID)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"student_id": studentID}).
			SetReplacement(ledger).
			SetUpsert(true))
	}

	res, err := s.ledgersCol.BulkWrite(queryCtx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		s.log.Error("merge ledgers", zap.String("batch_id", b.ID), zap.Int64("version", version), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	result.LedgersUpdated = int(res.UpsertedCount + res.ModifiedCount)
	s.log.Info("fee structure set",
		zap.String("batch_id", b.ID),
		zap.Int64("version", version),
		zap.Int64("created", res.UpsertedCount),
		zap.Int64("updated", res.ModifiedCount))
	return result, nil
}

// EnrollMembers gives students who joined the batch after its latest structure
// was set a ledger under that structure. Students that already have a ledger
// are left alone. It returns the number of ledgers created.
func (s *FeeService) EnrollMembers(ctx context.Context, caller *identity.Principal, batchID string, studentIDs []string) (int, error) {
	if !caller.IsManager() {
		return 0, status.Error(codes.PermissionDenied, "Access denied")
	}
	if len(studentIDs) == 0 {
		return 0, nil
	}

	b, err := s.batches.Lookup(ctx, caller, batchID)
	if err != nil {
		return 0, err
	}

	var structure shared.FeeStructure
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	if err := shared.FindOneWithTimeout(ctx, s.structuresCol, bson.M{"batch_id": b.ID}, &structure, opts); err != nil {
		if shared.IsNotFound(err) {
			return 0, nil
		}
		s.log.Error("latest fee structure", zap.String("batch_id", b.ID), zap.Error(err))
		return 0, status.Error(codes.Internal, "Server Error")
	}

	members := make(map[string]struct{}, len(b.Students))
	for _, id := range b.Students {
		members[id] = struct{}{}
	}

	models := make([]mongo.WriteModel, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if _, ok := members[studentID]; !ok {
			continue
		}
		ledger := NewLedger(&structure, studentID)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"student_id": studentID}).
			SetUpdate(bson.M{"$setOnInsert": ledger}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return 0, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	res, err := s.ledgersCol.BulkWrite(queryCtx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		s.log.Error("enroll ledgers", zap.String("batch_id", b.ID), zap.Error(err))
		return 0, status.Error(codes.Internal, "Server Error")
	}

	if res.UpsertedCount > 0 {
		s.log.Info("ledgers created for new batch members",
			zap.String("batch_id", b.ID),
			zap.Int64("version", structure.Version),
			zap.Int64("created", res.UpsertedCount))
	}
	return int(res.UpsertedCount), nil
}

// ============================================================================
// Ledgers
// ============================================================================

// MyFees returns the calling student's ledger
func (s *FeeService) MyFees(ctx context.Context, caller *identity.Principal) (*shared.StudentFee, error) {
	if !caller.Is(shared.RoleStudent) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	return s.ledger(ctx, caller.ID)
}

// StudentLedger returns a student's ledger to a manager of the same institution
func (s *FeeService) StudentLedger(ctx context.Context, caller *identity.Principal, studentID string) (*shared.StudentFee, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "Student ID required")
	}

	ledger, err := s.ledger(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !caller.Manages(ledger.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}
	return ledger, nil
}

// ============================================================================
// Payments
// ============================================================================

// Pay settles the selected Due months of a ledger and records a transaction.
// The ledger update is a compare-and-swap: it only applies while every
// selected month is still Due at the price that was quoted.
func (s *FeeService) Pay(ctx context.Context, caller *identity.Principal, in PayInput) (*Receipt, error) {
	// 1. Who may pay for whom
	switch {
	case caller.Is(shared.RoleStudent):
		if in.StudentID == "" {
			in.StudentID = caller.ID
		}
		if in.StudentID != caller.ID {
			return nil, status.Error(codes.PermissionDenied, MsgPayOthers)
		}
	case caller.IsManager():
		if in.StudentID == "" {
			return nil, status.Error(codes.InvalidArgument, "studentId is required")
		}
	default:
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	if len(in.MonthsToPay) == 0 {
		return nil, status.Error(codes.InvalidArgument, MsgNothingToPay)
	}
	if !shared.IsValidPaymentMethod(in.PaymentMethod) {
		return nil, status.Errorf(codes.InvalidArgument, "paymentMethod must be one of %s", strings.Join(shared.PaymentMethods, ", "))
	}

	// 2. Load the ledger and price the months
	ledger, err := s.ledger(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if !caller.Manages(ledger.InstitutionID) {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	payable, amount := SelectPayable(ledger, in.MonthsToPay)
	if len(payable) == 0 {
		return nil, status.Error(codes.InvalidArgument, MsgNothingToPay)
	}
	months := MonthNames(payable)

	// 3. Compare-and-swap the ledger
	now := time.Now()
	txnID := shared.GenerateID(shared.PrefixTransaction)

	guards := make(bson.A, 0, len(payable))
	for _, m := range payable {
		guards = append(guards, bson.M{"$elemMatch": bson.M{
			"month":  m.Month,
			"status": shared.FeeDue,
			"amount": m.Amount,
		}})
	}
	filter := bson.M{"_id": ledger.ID, "monthly_status": bson.M{"$all": guards}}
	update := bson.M{
		"$set": bson.M{
			"monthly_status.$[m].status":         shared.FeePaid,
			"monthly_status.$[m].paid_date":      now,
			"monthly_status.$[m].transaction_id": txnID,
			"updated_at":                         now,
		},
		"$inc": bson.M{"paid_fee": amount, "remaining_fee": -amount},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.month": bson.M{"$in": months}, "m.status": shared.FeeDue}},
	})

	queryCtx, cancel := context.WithTimeout(ctx, shared.QueryTimeout)
	defer cancel()

	res, err := s.ledgersCol.UpdateOne(queryCtx, filter, update, opts)
	if err != nil {
		s.log.Error("pay fees", zap.String("student_id", in.StudentID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	if res.MatchedCount == 0 {
		return nil, status.Error(codes.Aborted, MsgPayConflict)
	}
	ApplyPayment(ledger, payable, txnID, now)

	// 4. Record the transaction
	txn := shared.FeeTransaction{
		ID:              txnID,
		InstitutionID:   ledger.InstitutionID,
		StudentID:       in.StudentID,
		Amount:          amount,
		MonthsPaid:      months,
		PaymentMethod:   in.PaymentMethod,
		TransactionDate: now,
		RecordedBy:      caller.Actor(),
	}
	if _, err := s.transactionsCol.InsertOne(queryCtx, txn); err != nil {
		s.log.Error("insert fee transaction", zap.String("transaction_id", txnID), zap.Error(err))
		s.revert(ctx, ledger, txnID)
		return nil, status.Error(codes.Internal, "Server Error")
	}

	s.log.Info("fees paid",
		zap.String("student_id", in.StudentID),
		zap.String("transaction_id", txnID),
		zap.Strings("months", months),
		zap.Float64("amount", amount))

	return s.receipt(ctx, caller, &txn, ledger), nil
}

// Transactions lists payment receipts, newest first. Students only see their
// own; managers see the institution's, optionally for one student.
func (s *FeeService) Transactions(ctx context.Context, caller *identity.Principal, studentID string) ([]shared.FeeTransaction, error) {
	filter := bson.M{}
	switch {
	case caller.Is(shared.RoleStudent):
		if studentID != "" && studentID != caller.ID {
			return nil, status.Error(codes.PermissionDenied, "Access denied")
		}
		filter["student_id"] = caller.ID
	case caller.IsManager():
		filter["institution_id"] = caller.InstitutionID
		if studentID != "" {
			filter["student_id"] = studentID
		}
	default:
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	txns := []shared.FeeTransaction{}
	opts := options.Find().SetSort(bson.D{{Key: "transaction_date", Value: -1}})
	if err := shared.FindAll(ctx, s.transactionsCol, filter, &txns, opts); err != nil {
		s.log.Error("list fee transactions", zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return txns, nil
}

// ============================================================================
// Stats
// ============================================================================

// Stats aggregates the ledgers of one batch
func (s *FeeService) Stats(ctx context.Context, caller *identity.Principal, batchID string) (*Stats, error) {
	if !caller.IsManager() {
		return nil, status.Error(codes.PermissionDenied, "Access denied")
	}

	b, err := s.batches.Lookup(ctx, caller, batchID)
	if err != nil {
		return nil, err
	}

	var ledgers []shared.StudentFee
	if err := shared.FindAll(ctx, s.ledgersCol, bson.M{"batch_id": b.ID}, &ledgers); err != nil {
		s.log.Error("stats ledgers", zap.String("batch_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}

	ids := make([]string, 0, len(ledgers))
	for _, l := range ledgers {
		ids = append(ids, l.StudentID)
	}
	students := make(map[string]shared.User, len(ids))
	if len(ids) > 0 {
		var users []shared.User
		opts := options.Find().SetProjection(bson.M{"password_hash": 0})
		if err := shared.FindAll(ctx, s.usersCol, bson.M{"_id": bson.M{"$in": ids}}, &users, opts); err != nil {
			s.log.Error("stats students", zap.String("batch_id", b.ID), zap.Error(err))
			return nil, status.Error(codes.Internal, "Server Error")
		}
		for _, u := range users {
			students[u.ID] = u
		}
	}

	stats := Summarize(ledgers, students)
	return &stats, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *FeeService) ledger(ctx context.Context, studentID string) (*shared.StudentFee, error) {
	var ledger shared.StudentFee
	if err := shared.FindOneWithTimeout(ctx, s.ledgersCol, bson.M{"student_id": studentID}, &ledger); err != nil {
		if shared.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, MsgNoLedger)
		}
		s.log.Error("get ledger", zap.String("student_id", studentID), zap.Error(err))
		return nil, status.Error(codes.Internal, "Server Error")
	}
	return &ledger, nil
}

// revert undoes a stored payment whose receipt could not be written. The
// ledger is the in-memory copy with the payment applied. It runs detached from
// the request context.
func (s *FeeService) revert(ctx context.Context, ledger *shared.StudentFee, txnID string) {
	amount := RevertPayment(ledger, txnID, time.Now())
	if amount == 0 {
		return
	}

	queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shared.QueryTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"monthly_status.$[m].status": shared.FeeDue,
			"updated_at":                 ledger.UpdatedAt,
		},
		"$unset": bson.M{
			"monthly_status.$[m].paid_date":      "",
			"monthly_status.$[m].transaction_id": "",
		},
		"$inc": bson.M{"paid_fee": -amount, "remaining_fee": amount},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.transaction_id": txnID}},
	})
	filter := bson.M{"_id": ledger.ID, "monthly_status.transaction_id": txnID}
	if _, err := s.ledgersCol.UpdateOne(queryCtx, filter, update, opts); err != nil {
		s.log.Error("revert payment failed, ledger needs manual review",
			zap.String("ledger_id", ledger.ID),
			zap.String("transaction_id", txnID),
			zap.Error(err))
		return
	}
	s.log.Warn("payment reverted", zap.String("ledger_id", ledger.ID), zap.String("transaction_id", txnID))
}

// receipt fills in the display fields. Lookup failures only blank a field.
func (s *FeeService) receipt(ctx context.Context, caller *identity.Principal, txn *shared.FeeTransaction, ledger *shared.StudentFee) *Receipt {
	r := &Receipt{
		TransactionID: txn.ID,
		Date:          txn.TransactionDate,
		MonthsPaid:    txn.MonthsPaid,
		AmountPaid:    txn.Amount,
		PaymentMethod: txn.PaymentMethod,
	}

	var student shared.User
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 0})
	if err := shared.FindOneWithTimeout(ctx, s.usersCol, bson.M{"_id": txn.StudentID}, &student, opts); err != nil {
		s.log.Warn("receipt student", zap.String("student_id", txn.StudentID), zap.Error(err))
	} else {
		r.StudentName = student.DisplayName()
		r.RegisterNumber = student.RegisterNumber
		r.Class = student.ClassName
	}

	var inst shared.Institution
	if err := shared.FindOneWithTimeout(ctx, s.institutionsCol, bson.M{"_id": ledger.InstitutionID}, &inst); err != nil {
		s.log.Warn("receipt institution", zap.String("institution_id", ledger.InstitutionID), zap.Error(err))
	} else {
		r.Institution = inst.Name
	}

	if b, err := s.batches.Lookup(ctx, caller, ledger.BatchID); err == nil && b.ClassName != "" {
		r.Class = b.ClassName
	}
	return r
}
