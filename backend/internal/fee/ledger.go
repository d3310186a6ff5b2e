package fee

import (
	"math"
	"sort"
	"strings"
	"time"

	"tuitiondesk/backend/internal/shared"
)

// ValidateStructure checks a fee plan and returns a user-facing message, or "" when valid
func ValidateStructure(monthlyFee float64, months []string) string {
	if monthlyFee < 0 || math.IsNaN(monthlyFee) || math.IsInf(monthlyFee, 0) {
		return "monthlyFee must be a non-negative number"
	}
	if len(months) == 0 {
		return "academicMonths must not be empty"
	}
	seen := make(map[string]struct{}, len(months))
	for _, m := range months {
		m = strings.TrimSpace(m)
		if m == "" {
			return "academicMonths must not contain blank months"
		}
		if _, dup := seen[m]; dup {
			return "Duplicate month: " + m
		}
		seen[m] = struct{}{}
	}
	return ""
}

// NewLedger initializes a student's ledger from a structure: every month Due at the monthly fee
func NewLedger(structure *shared.FeeStructure, studentID string) shared.StudentFee {
	return Merge(nil, structure, studentID)
}

// Merge reconciles a student's existing ledger with a new structure version.
// Paid months are kept as they were, Due months in the structure are re-priced,
// new months are added as Due and Due months dropped from the structure disappear.
func Merge(existing *shared.StudentFee, structure *shared.FeeStructure, studentID string) shared.StudentFee {
	ledger := shared.StudentFee{
		ID:             shared.GenerateID(shared.PrefixLedger),
		InstitutionID:  structure.InstitutionID,
		StudentID:      studentID,
		BatchID:        structure.BatchID,
		FeeStructureID: structure.ID,
		MonthlyStatus:  make([]shared.MonthStatus, 0, len(structure.AcademicMonths)),
		UpdatedAt:      time.Now(),
	}

	paid := map[string]shared.MonthStatus{}
	var paidOrder []string
	if existing != nil {
		ledger.ID = existing.ID
		for _, m := range existing.MonthlyStatus {
			if m.Status == shared.FeePaid {
				paid[m.Month] = m
				paidOrder = append(paidOrder, m.Month)
			}
		}
	}

	inStructure := make(map[string]struct{}, len(structure.AcademicMonths))
	for _, month := range structure.AcademicMonths {
		inStructure[month] = struct{}{}
		if m, ok := paid[month]; ok {
			ledger.MonthlyStatus = append(ledger.MonthlyStatus, m)
			continue
		}
		ledger.MonthlyStatus = append(ledger.MonthlyStatus, shared.MonthStatus{
			Month:  month,
			Amount: structure.MonthlyFee,
			Status: shared.FeeDue,
		})
	}
	for _, month := range paidOrder {
		if _, ok := inStructure[month]; !ok {
			ledger.MonthlyStatus = append(ledger.MonthlyStatus, paid[month])
		}
	}

	Recompute(&ledger)
	return ledger
}

// Recompute derives the ledger totals from its months
func Recompute(l *shared.StudentFee) {
	l.TotalFee, l.PaidFee, l.RemainingFee = 0, 0, 0
	for _, m := range l.MonthlyStatus {
		l.TotalFee += m.Amount
		if m.Status == shared.FeePaid {
			l.PaidFee += m.Amount
		} else {
			l.RemainingFee += m.Amount
		}
	}
}

// SelectPayable keeps the requested months that are currently Due, in ledger
// order, and sums their amounts.
func SelectPayable(l *shared.StudentFee, requested []string) ([]shared.MonthStatus, float64) {
	want := make(map[string]struct{}, len(requested))
	for _, m := range requested {
		want[strings.TrimSpace(m)] = struct{}{}
	}

	var payable []shared.MonthStatus
	total := 0.0
	for _, m := range l.MonthlyStatus {
		if _, ok := want[m.Month]; ok && m.Status == shared.FeeDue {
			payable = append(payable, m)
			total += m.Amount
		}
	}
	return payable, total
}

// ApplyPayment marks the months Paid under the transaction and moves their amount
// from remaining to paid. It is the in-memory counterpart of the stored update.
func ApplyPayment(l *shared.StudentFee, months []shared.MonthStatus, transactionID string, at time.Time) {
	pay := make(map[string]struct{}, len(months))
	for _, m := range months {
		pay[m.Month] = struct{}{}
	}
	for i := range l.MonthlyStatus {
		m := &l.MonthlyStatus[i]
		if _, ok := pay[m.Month]; ok && m.Status == shared.FeeDue {
			paidAt := at
			m.Status = shared.FeePaid
			m.PaidDate = &paidAt
			m.TransactionID = transactionID
			l.PaidFee += m.Amount
			l.RemainingFee -= m.Amount
		}
	}
	l.UpdatedAt = at
}

// RevertPayment puts the months paid under the transaction back to Due and
// returns the amount released. Months paid by other transactions are untouched.
func RevertPayment(l *shared.StudentFee, transactionID string, at time.Time) float64 {
	released := 0.0
	for i := range l.MonthlyStatus {
		m := &l.MonthlyStatus[i]
		if m.Status != shared.FeePaid || m.TransactionID != transactionID {
			continue
		}
		m.Status = shared.FeeDue
		m.PaidDate = nil
		m.TransactionID = ""
		l.PaidFee -= m.Amount
		l.RemainingFee += m.Amount
		released += m.Amount
	}
	if released > 0 {
		l.UpdatedAt = at
	}
	return released
}

// MonthNames lists the month names of the statuses
func MonthNames(months []shared.MonthStatus) []string {
	names := make([]string, 0, len(months))
	for _, m := range months {
		names = append(names, m.Month)
	}
	return names
}

// ============================================================================
// Stats
// ============================================================================

// UnpaidStudent is a student with an outstanding balance
type UnpaidStudent struct {
	StudentID      string   `json:"studentId"`
	Name           string   `json:"name"`
	RegisterNumber string   `json:"registerNumber"`
	PendingAmount  float64  `json:"pendingAmount"`
	PendingMonths  []string `json:"pendingMonths"`
}

// Stats aggregates a batch's ledgers
type Stats struct {
	TotalExpected  float64         `json:"totalExpected"`
	TotalCollected float64         `json:"totalCollected"`
	TotalPending   float64         `json:"totalPending"`
	UnpaidStudents []UnpaidStudent `json:"unpaidStudents"`
}

// Summarize sums the ledgers and lists every student with a positive remaining balance
func Summarize(ledgers []shared.StudentFee, students map[string]shared.User) Stats {
	stats := Stats{UnpaidStudents: []UnpaidStudent{}}
	for _, l := range ledgers {
		stats.TotalExpected += l.TotalFee
		stats.TotalCollected += l.PaidFee
		stats.TotalPending += l.RemainingFee

		if l.RemainingFee <= 0 {
			continue
		}
		u := UnpaidStudent{
			StudentID:     l.StudentID,
			PendingAmount: l.RemainingFee,
			PendingMonths: []string{},
		}
		if st, ok := students[l.StudentID]; ok {
			u.Name = st.DisplayName()
			u.RegisterNumber = st.RegisterNumber
		}
		for _, m := range l.MonthlyStatus {
			if m.Status == shared.FeeDue {
				u.PendingMonths = append(u.PendingMonths, m.Month)
			}
		}
		stats.UnpaidStudents = append(stats.UnpaidStudents, u)
	}

	sort.SliceStable(stats.UnpaidStudents, func(i, j int) bool {
		return stats.UnpaidStudents[i].RegisterNumber < stats.UnpaidStudents[j].RegisterNumber
	})
	return stats
}
