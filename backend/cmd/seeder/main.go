package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tuitiondesk/backend/internal/batch"
	"tuitiondesk/backend/internal/exam"
	"tuitiondesk/backend/internal/fee"
	"tuitiondesk/backend/internal/gateway"
	"tuitiondesk/backend/internal/identity"
	"tuitiondesk/backend/internal/institution"
	"tuitiondesk/backend/internal/shared"
	"tuitiondesk/backend/internal/student"
)

// Seed accounts. Staff share one password; students keep their temporary one.
const (
	InstitutionName = "Abc Tuition Centre"
	CommonPassword  = "password"
	OwnerEmail      = "owner@example.com"
	AdminEmail      = "admin@example.com"
	TeacherEmail    = "teacher@example.com"
	SeedClass       = "X"
)

// StudentSeed is one student to register and approve
type StudentSeed struct {
	FirstName string
	LastName  string
	DOB       string
	Medium    string
	Syllabus  string
}

func main() {
	log.Println("Starting Database Seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadServiceConfig("seeder")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = "seeder-only-secret"
	}

	logger, err := shared.NewLogger(cfg.Environment, shared.GetLogLevel(cfg))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Drop everything for a clean start
	if err := db.Drop(ctx); err != nil {
		log.Fatalf("Failed to drop database: %v", err)
	}
	if err := shared.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	log.Println("Database cleared successfully.")

	svc, err := gateway.NewServices(client, db, cfg, logger.Named("seeder"))
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}

	// --- 1. Institution and staff ---
	owner, admin := seedStaff(ctx, svc.Institutions)

	// --- 2. Students ---
	studentIDs := seedStudents(ctx, svc.Students, admin, owner.InstitutionID, []StudentSeed{
		{"Anu", "Mathew", "2009-04-12", "English", "CBSE"},
		{"Rahul", "Nair", "2009-08-30", "Malayalam", "State"},
		{"Fathima", "Rasheed", "2010-01-05", "English", "State"},
	})

	// --- 3. Batch, fees and an exam ---
	b := seedBatch(ctx, svc.Batches, admin, studentIDs)
	seedFees(ctx, svc.Fees, admin, b, studentIDs[0])
	seedExam(ctx, svc.Exams, admin, b)

	// --- 4. Summary ---
	printRoleCounts(ctx, db)
	log.Println("All data seeding completed successfully.")
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

func seedStaff(ctx context.Context, institutions *institution.InstitutionService) (*identity.Principal, *identity.Principal) {
	log.Println("--- Seeding Institution and Staff ---")

	inst, err := institutions.RegisterInstitution(ctx, InstitutionName, "Kochi")
	if err != nil {
		log.Fatalf("Error seeding institution: %v", err)
	}
	log.Printf("Seeded Institution: %s (%s)", inst.Name, inst.ID)

	ownerUser, err := institutions.RegisterOwner(ctx, institution.StaffInput{
		Name: "Olivia Owner", Email: OwnerEmail, Password: CommonPassword, InstitutionID: inst.ID,
	})
	if err != nil {
		log.Fatalf("Error seeding owner: %v", err)
	}
	owner := identity.FromUser(ownerUser)
	log.Printf("Seeded owner: %s", OwnerEmail)

	adminUser, err := institutions.CreateAdmin(ctx, owner, institution.StaffInput{
		Name: "Arun Admin", Email: AdminEmail, Password: CommonPassword,
	})
	if err != nil {
		log.Fatalf("Error seeding admin: %v", err)
	}
	log.Printf("Seeded admin: %s", AdminEmail)

	if _, err := institutions.CreateTeacher(ctx, owner, institution.StaffInput{
		Name: "Tessa Teacher", Email: TeacherEmail, Password: CommonPassword,
	}); err != nil {
		log.Fatalf("Error seeding teacher: %v", err)
	}
	log.Printf("Seeded teacher: %s", TeacherEmail)

	return owner, identity.FromUser(adminUser)
}

func seedStudents(ctx context.Context, students *student.StudentService, admin *identity.Principal, institutionID string, seeds []StudentSeed) []string {
	log.Println("--- Seeding Students ---")

	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		reg, err := students.Register(ctx, student.RegisterInput{
			FirstName: s.FirstName, LastName: s.LastName, DOB: s.DOB, InstitutionID: institutionID,
		})
		if err != nil {
			log.Fatalf("Error registering %s: %v", s.FirstName, err)
		}

		approved, err := students.Approve(ctx, admin, reg.StudentID)
		if err != nil {
			log.Fatalf("Error approving %s: %v", reg.RegisterNumber, err)
		}

		if _, err := students.UpdateProfile(ctx, identity.FromUser(approved), student.ProfileUpdate{
			ClassName: SeedClass, Medium: s.Medium, Syllabus: s.Syllabus,
		}); err != nil {
			log.Fatalf("Error completing profile of %s: %v", reg.RegisterNumber, err)
		}

		log.Printf("Seeded Student: %s (temporary password %s)", reg.RegisterNumber, reg.TemporaryPassword)
		ids = append(ids, reg.StudentID)
	}
	return ids
}

func seedBatch(ctx context.Context, batches *batch.BatchService, admin *identity.Principal, studentIDs []string) *shared.Batch {
	log.Println("--- Seeding Batch ---")

	b, err := batches.Create(ctx, admin, batch.CreateInput{
		Name: "Class X Morning", ClassName: SeedClass, StudentIDs: studentIDs,
	})
	if err != nil {
		log.Fatalf("Error seeding batch: %v", err)
	}
	log.Printf("Seeded Batch: %s with %d students", b.Name, len(b.Students))
	return b
}

func seedFees(ctx context.Context, fees *fee.FeeService, admin *identity.Principal, b *shared.Batch, payer string) {
	log.Println("--- Seeding Fees ---")

	res, err := fees.SetStructure(ctx, admin, fee.StructureInput{
		BatchID:        b.ID,
		MonthlyFee:     500,
		AcademicMonths: []string{"June", "July", "August", "September"},
		Description:    "Regular monthly tuition",
	})
	if err != nil {
		log.Fatalf("Error seeding fee structure: %v", err)
	}
	log.Printf("Seeded Fee Structure v%d: %d ledgers", res.Structure.Version, res.LedgersUpdated)

	receipt, err := fees.Pay(ctx, admin, fee.PayInput{
		StudentID: payer, MonthsToPay: []string{"June"}, PaymentMethod: "Cash",
	})
	if err != nil {
		log.Fatalf("Error seeding payment: %v", err)
	}
	log.Printf("Seeded Payment: %s for %s (%.2f)", receipt.TransactionID, receipt.RegisterNumber, receipt.AmountPaid)
}

func seedExam(ctx context.Context, exams *exam.ExamService, admin *identity.Principal, b *shared.Batch) {
	log.Println("--- Seeding Exam ---")

	e, err := exams.Create(ctx, admin, exam.CreateInput{
		BatchID:       b.ID,
		Name:          "Unit Test 1",
		ScheduledDate: time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		Duration:      "2 hours",
		Subjects: []shared.Subject{
			{Name: "Mathematics", MaxMarks: 50, PassMarks: 18},
			{Name: "Science", MaxMarks: 50, PassMarks: 18},
		},
	})
	if err != nil {
		log.Fatalf("Error seeding exam: %v", err)
	}
	log.Printf("Seeded Exam: %s (%s)", e.Name, e.ID)
}

func printRoleCounts(ctx context.Context, db *mongo.Database) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$role", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := db.Collection(shared.ColPrincipals).Aggregate(ctx, pipeline)
	if err != nil {
		log.Printf("Warning: role summary failed: %v", err)
		return
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			Role  string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err == nil {
			log.Printf("Principals: %s=%d", row.Role, row.Count)
		}
	}
}
