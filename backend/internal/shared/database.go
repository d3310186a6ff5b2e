// ============================================================================
// backend/internal/shared/database.go
// Shared MongoDB connection, index and helper utilities
// ============================================================================

package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names
const (
	ColInstitutions    = "institutions"
	ColPrincipals      = "principals"
	ColSessions        = "sessions"
	ColCounters        = "counters"
	ColBatches         = "batches"
	ColAttendance      = "attendance"
	ColExams           = "exams"
	ColExamResults     = "exam_results"
	ColFeeStructures   = "fee_structures"
	ColStudentFees     = "student_fees"
	ColFeeTransactions = "fee_transactions"
	ColExpenditures    = "expenditures"
)

// QueryTimeout bounds every single database round trip
const QueryTimeout = 10 * time.Second

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxIdleTime    time.Duration
}

// ConnectMongoDB establishes connection to MongoDB Atlas/Local with proper configuration
func ConnectMongoDB(config *MongoConfig, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("mongo config cannot be nil")
	}

	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 20 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetSocketTimeout(30 * time.Second).
		SetHeartbeatInterval(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if logger != nil {
		logger.Info("connected to MongoDB", zap.String("database", config.Database))
	}

	return client, client.Database(config.Database), nil
}

// DisconnectMongoDB gracefully closes MongoDB connection
func DisconnectMongoDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// PingMongoDB reports whether the primary is reachable
func PingMongoDB(ctx context.Context, client *mongo.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// ============================================================================
// Indexes
// ============================================================================

// EnsureIndexes creates every index the services rely on. The unique ones
// turn duplicate submissions into duplicate-key errors.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	hasEmail := bson.M{"email": bson.M{"$type": "string"}}
	hasRegister := bson.M{"register_number": bson.M{"$type": "string"}}

	specs := map[string][]mongo.IndexModel{
		ColPrincipals: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(hasEmail)},
			{Keys: bson.D{{Key: "register_number", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(hasRegister)},
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "role", Value: 1}}},
		},
		ColSessions: {
			{Keys: bson.D{{Key: "token", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		ColBatches: {
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "students", Value: 1}}},
		},
		ColAttendance: {
			{Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "date", Value: 1}, {Key: "session", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		ColExams: {
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "batch_id", Value: 1}}},
		},
		ColExamResults: {
			{Keys: bson.D{{Key: "exam_id", Value: 1}, {Key: "student_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
		ColFeeStructures: {
			{Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "version", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColStudentFees: {
			{Keys: bson.D{{Key: "student_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
		},
		ColFeeTransactions: {
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "transaction_date", Value: -1}}},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
		ColExpenditures: {
			{Keys: bson.D{{Key: "institution_id", Value: 1}, {Key: "date", Value: -1}}},
		},
	}

	for name, models := range specs {
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := db.Collection(name).Indexes().CreateMany(indexCtx, models)
		cancel()
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// ============================================================================
// Counters
// ============================================================================

// NextSequence atomically increments the named counter and returns its new value
func NextSequence(ctx context.Context, db *mongo.Database, key string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(ColCounters).FindOneAndUpdate(
		queryCtx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return counter.Seq, nil
}

// ============================================================================
// ID Generation Helpers
// ============================================================================

// ID prefixes
const (
	PrefixInstitution = "INS"
	PrefixUser        = "USR"
	PrefixSession     = "SES"
	PrefixBatch       = "BAT"
	PrefixAttendance  = "ATT"
	PrefixExam        = "EXM"
	PrefixResult      = "RES"
	PrefixFeeStruct   = "FST"
	PrefixLedger      = "FEE"
	PrefixTransaction = "TXN"
	PrefixExpense     = "EXP"
)

// GenerateID generates a unique ID with prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ============================================================================
// Error Helpers
// ============================================================================

// IsDuplicateKey reports whether err is a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFound reports whether err means no document matched
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// ============================================================================
// Query Helpers
// ============================================================================

// BuildFindOptions creates common find options with defaults
func BuildFindOptions(limit int64, sortField string, sortOrder int) *options.FindOptions {
	opts := options.Find()

	if limit > 0 {
		opts.SetLimit(limit)
	}

	if sortField != "" {
		opts.SetSort(bson.D{{Key: sortField, Value: sortOrder}})
	}

	return opts
}

// FindAll runs a find bounded by QueryTimeout and decodes every document into results
func FindAll(ctx context.Context, col *mongo.Collection, filter interface{}, results interface{}, opts ...*options.FindOptions) error {
	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	cursor, err := col.Find(queryCtx, filter, opts...)
	if err != nil {
		return err
	}
	return cursor.All(queryCtx, results)
}

// FindOneWithTimeout finds a single document with timeout
func FindOneWithTimeout(ctx context.Context, col *mongo.Collection, filter interface{}, result interface{}, opts ...*options.FindOneOptions) error {
	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	return col.FindOne(queryCtx, filter, opts...).Decode(result)
}
