// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"strings"
	"time"
)

// ============================================================================
// Tenant and Identity Models
// ============================================================================

// Institution is the tenant every other document belongs to
type Institution struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Location     string    `bson:"location,omitempty" json:"location,omitempty"`
	StudentCount int64     `bson:"student_count" json:"studentCount"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// User is any principal (owner, admin, teacher or student), discriminated by Role
type User struct {
	ID            string    `bson:"_id" json:"id"`
	Role          string    `bson:"role" json:"role"`
	InstitutionID string    `bson:"institution_id" json:"institutionId"`
	Name          string    `bson:"name" json:"name"`
	Email         string    `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash  string    `bson:"password_hash" json:"-"` // Never expose in JSON
	CreatedBy     string    `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatorRole   string    `bson:"creator_role,omitempty" json:"creatorRole,omitempty"`
	IsApproved    bool      `bson:"is_approved" json:"isApproved"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`

	// Student-specific fields
	FirstName      string     `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName       string     `bson:"last_name,omitempty" json:"lastName,omitempty"`
	DOB            *time.Time `bson:"dob,omitempty" json:"dob,omitempty"`
	RegisterNumber string     `bson:"register_number,omitempty" json:"registerNumber,omitempty"`
	ProfilePhoto   string     `bson:"profile_photo,omitempty" json:"profilePhoto,omitempty"`
	ClassName      string     `bson:"class_name,omitempty" json:"className,omitempty"`
	Medium         string     `bson:"medium,omitempty" json:"medium,omitempty"`
	Syllabus       string     `bson:"syllabus,omitempty" json:"syllabus,omitempty"`
	SchoolName     string     `bson:"school_name,omitempty" json:"schoolName,omitempty"`
	FatherName     string     `bson:"father_name,omitempty" json:"fatherName,omitempty"`
	MotherName     string     `bson:"mother_name,omitempty" json:"motherName,omitempty"`
	PhoneNumber    string     `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	WhatsappNumber string     `bson:"whatsapp_number,omitempty" json:"whatsappNumber,omitempty"`
	Address        string     `bson:"address,omitempty" json:"address,omitempty"`
}

// DisplayName returns the name shown on rosters and receipts
func (u *User) DisplayName() string {
	if u.Role == RoleStudent && (u.FirstName != "" || u.LastName != "") {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return u.Name
}

// Session represents an active user session (for JWT tracking)
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Token     string    `bson:"token" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	IPAddress string    `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
}

// IsExpired checks if a session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ============================================================================
// Batch Models
// ============================================================================

// Batch is a named group of students of one class
type Batch struct {
	ID            string    `bson:"_id" json:"id"`
	InstitutionID string    `bson:"institution_id" json:"institutionId"`
	Name          string    `bson:"name" json:"name"`
	ClassName     string    `bson:"class_name" json:"className"`
	Students      []string  `bson:"students" json:"students"`
	CreatedBy     string    `bson:"created_by" json:"createdBy"`
	CreatorRole   string    `bson:"creator_role" json:"creatorRole"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
}

// HasStudent reports whether the student is enrolled in the batch
func (b *Batch) HasStudent(studentID string) bool {
	for _, id := range b.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// ============================================================================
// Attendance Models
// ============================================================================

// AttendanceRecord is one student's status in a session
type AttendanceRecord struct {
	StudentID      string `bson:"student_id" json:"studentId"`
	Name           string `bson:"name" json:"name"`
	RegisterNumber string `bson:"register_number" json:"registerNumber"`
	Status         string `bson:"status" json:"status"`
}

// AttendanceMetrics tallies a session
type AttendanceMetrics struct {
	TotalStudents int `bson:"total_students" json:"totalStudents"`
	TotalPresent  int `bson:"total_present" json:"totalPresent"`
	TotalAbsent   int `bson:"total_absent" json:"totalAbsent"`
}

// Actor identifies who performed a write
type Actor struct {
	UserID string `bson:"user_id" json:"userId"`
	Role   string `bson:"role" json:"role"`
	Name   string `bson:"name,omitempty" json:"name,omitempty"`
}

// Attendance is the record of one batch session
type Attendance struct {
	ID            string             `bson:"_id" json:"id"`
	InstitutionID string             `bson:"institution_id" json:"institutionId"`
	BatchID       string             `bson:"batch_id" json:"batchId"`
	Date          time.Time          `bson:"date" json:"date"`
	StartTime     string             `bson:"start_time" json:"startTime"`
	EndTime       string             `bson:"end_time" json:"endTime"`
	Session       string             `bson:"session" json:"session"`
	Records       []AttendanceRecord `bson:"records" json:"records"`
	Metrics       AttendanceMetrics  `bson:"metrics" json:"metrics"`
	TakenBy       Actor              `bson:"taken_by" json:"takenBy"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Exam Models
// ============================================================================

// Subject is one graded component of an exam
type Subject struct {
	Name      string  `bson:"name" json:"name" validate:"required"`
	MaxMarks  float64 `bson:"max_marks" json:"maxMarks" validate:"gte=0"`
	PassMarks float64 `bson:"pass_marks" json:"passMarks" validate:"gte=0"`
}

// Exam is a scheduled assessment for a batch
type Exam struct {
	ID            string    `bson:"_id" json:"id"`
	InstitutionID string    `bson:"institution_id" json:"institutionId"`
	BatchID       string    `bson:"batch_id" json:"batchId"`
	Name          string    `bson:"name" json:"name"`
	ScheduledDate time.Time `bson:"scheduled_date" json:"scheduledDate"`
	Duration      string    `bson:"duration,omitempty" json:"duration,omitempty"`
	Subjects      []Subject `bson:"subjects" json:"subjects"`
	CreatedBy     string    `bson:"created_by" json:"createdBy"`
	CreatorRole   string    `bson:"creator_role" json:"creatorRole"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
}

// MaxTotal is the sum of every subject's max marks
func (e *Exam) MaxTotal() float64 {
	total := 0.0
	for _, s := range e.Subjects {
		total += s.MaxMarks
	}
	return total
}

// SubjectResult is the graded outcome of one subject
type SubjectResult struct {
	SubjectName   string  `bson:"subject_name" json:"subjectName"`
	MaxMarks      float64 `bson:"max_marks" json:"maxMarks"`
	ObtainedMarks float64 `bson:"obtained_marks" json:"obtainedMarks"`
	PassStatus    string  `bson:"pass_status" json:"passStatus"`
}

// ExamResult is one student's graded exam
type ExamResult struct {
	ID                 string          `bson:"_id" json:"id"`
	ExamID             string          `bson:"exam_id" json:"examId"`
	StudentID          string          `bson:"student_id" json:"studentId"`
	BatchID            string          `bson:"batch_id" json:"batchId"`
	InstitutionID      string          `bson:"institution_id" json:"institutionId"`
	IsAbsent           bool            `bson:"is_absent" json:"isAbsent"`
	SubjectResults     []SubjectResult `bson:"subject_results" json:"subjectResults"`
	TotalMaxMarks      float64         `bson:"total_max_marks" json:"totalMaxMarks"`
	TotalObtainedMarks float64         `bson:"total_obtained_marks" json:"totalObtainedMarks"`
	Percentage         float64         `bson:"percentage" json:"percentage"`
	ResultStatus       string          `bson:"result_status" json:"resultStatus"`
	CreatedAt          time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `bson:"updated_at" json:"updatedAt"`
}

// ============================================================================
// Fee Models
// ============================================================================

// FeeStructure is one version of a batch's fee plan. Versions are append-only.
type FeeStructure struct {
	ID             string    `bson:"_id" json:"id"`
	InstitutionID  string    `bson:"institution_id" json:"institutionId"`
	BatchID        string    `bson:"batch_id" json:"batchId"`
	Version        int64     `bson:"version" json:"version"`
	MonthlyFee     float64   `bson:"monthly_fee" json:"monthlyFee"`
	AcademicMonths []string  `bson:"academic_months" json:"academicMonths"`
	TotalAnnualFee float64   `bson:"total_annual_fee" json:"totalAnnualFee"`
	Description    string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy      string    `bson:"created_by" json:"createdBy"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// MonthStatus is one month of a student's ledger
type MonthStatus struct {
	Month         string     `bson:"month" json:"month"`
	Amount        float64    `bson:"amount" json:"amount"`
	Status        string     `bson:"status" json:"status"`
	PaidDate      *time.Time `bson:"paid_date,omitempty" json:"paidDate,omitempty"`
	TransactionID string     `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`
}

// StudentFee is a student's fee ledger
type StudentFee struct {
	ID             string        `bson:"_id" json:"id"`
	InstitutionID  string        `bson:"institution_id" json:"institutionId"`
	StudentID      string        `bson:"student_id" json:"studentId"`
	BatchID        string        `bson:"batch_id" json:"batchId"`
	FeeStructureID string        `bson:"fee_structure_id" json:"feeStructureId"`
	MonthlyStatus  []MonthStatus `bson:"monthly_status" json:"monthlyStatus"`
	TotalFee       float64       `bson:"total_fee" json:"totalFee"`
	PaidFee        float64       `bson:"paid_fee" json:"paidFee"`
	RemainingFee   float64       `bson:"remaining_fee" json:"remainingFee"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// FeeTransaction is the receipt of one payment
type FeeTransaction struct {
	ID              string    `bson:"_id" json:"id"`
	InstitutionID   string    `bson:"institution_id" json:"institutionId"`
	StudentID       string    `bson:"student_id" json:"studentId"`
	Amount          float64   `bson:"amount" json:"amount"`
	MonthsPaid      []string  `bson:"months_paid" json:"monthsPaid"`
	PaymentMethod   string    `bson:"payment_method" json:"paymentMethod"`
	TransactionDate time.Time `bson:"transaction_date" json:"transactionDate"`
	RecordedBy      Actor     `bson:"recorded_by" json:"recordedBy"`
}

// ============================================================================
// Expense Models
// ============================================================================

// Expenditure is an institution expense
type Expenditure struct {
	ID            string    `bson:"_id" json:"id"`
	InstitutionID string    `bson:"institution_id" json:"institutionId"`
	Title         string    `bson:"title" json:"title"`
	Amount        float64   `bson:"amount" json:"amount"`
	Category      string    `bson:"category" json:"category"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	Date          time.Time `bson:"date" json:"date"`
	RecordedBy    Actor     `bson:"recorded_by" json:"recordedBy"`
}

// ============================================================================
// Response Models (for API responses)
// ============================================================================

// StudentSummary is the roster view of a student
type StudentSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RegisterNumber string `json:"registerNumber"`
	ClassName      string `json:"className,omitempty"`
	ProfilePhoto   string `json:"profilePhoto,omitempty"`
}

// Summarize converts a student document to its roster view
func (u *User) Summarize() StudentSummary {
	return StudentSummary{
		ID:             u.ID,
		Name:           u.DisplayName(),
		RegisterNumber: u.RegisterNumber,
		ClassName:      u.ClassName,
		ProfilePhoto:   u.ProfilePhoto,
	}
}

// ============================================================================
// Validation Constants
// ============================================================================

const (
	// User roles
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"

	// Attendance statuses
	StatusPresent = "Present"
	StatusAbsent  = "Absent"

	// Fee month statuses
	FeeDue  = "Due"
	FeePaid = "Paid"

	// Subject pass statuses
	PassStatusPass = "Pass"
	PassStatusFail = "Fail"

	// Exam result statuses
	ResultPassed = "Passed"
	ResultFailed = "Failed"
	ResultAbsent = "Absent"

	// Default expense category
	CategoryOther = "Other"
)

var (
	Classes           = []string{"V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}
	Mediums           = []string{"English", "Malayalam"}
	Syllabi           = []string{"State", "CBSE", "ICSE"}
	Sessions          = []string{"Morning", "Afternoon", "Evening"}
	PaymentMethods    = []string{"Cash", "Online", "Bank Transfer", "UPI"}
	ExpenseCategories = []string{"Salary", "Rent", "Utilities", "Maintenance", "Supplies", CategoryOther}
)

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsValidRole checks if user role is valid
func IsValidRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleTeacher || role == RoleStudent
}

// IsValidClass checks a class name against V..XII
func IsValidClass(class string) bool { return contains(Classes, class) }

// IsValidMedium checks the medium of instruction
func IsValidMedium(medium string) bool { return contains(Mediums, medium) }

// IsValidSyllabus checks the syllabus
func IsValidSyllabus(syllabus string) bool { return contains(Syllabi, syllabus) }

// IsValidSession checks the attendance session name
func IsValidSession(session string) bool { return contains(Sessions, session) }

// IsValidPaymentMethod checks the payment method
func IsValidPaymentMethod(method string) bool { return contains(PaymentMethods, method) }

// IsValidExpenseCategory checks the expense category
func IsValidExpenseCategory(category string) bool { return contains(ExpenseCategories, category) }
