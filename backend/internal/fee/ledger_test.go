package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/shared"
)

func structure(fee float64, months ...string) *shared.FeeStructure {
	return &shared.FeeStructure{
		ID:             "FST_1",
		InstitutionID:  "INS_1",
		BatchID:        "BAT_1",
		MonthlyFee:     fee,
		AcademicMonths: months,
	}
}

func TestNewLedger(t *testing.T) {
	l := NewLedger(structure(500, "June", "July"), "S1")

	require.Len(t, l.MonthlyStatus, 2)
	assert.Equal(t, "S1", l.StudentID)
	assert.Equal(t, 1000.0, l.TotalFee)
	assert.Equal(t, 0.0, l.PaidFee)
	assert.Equal(t, 1000.0, l.RemainingFee)
	for _, m := range l.MonthlyStatus {
		assert.Equal(t, shared.FeeDue, m.Status)
		assert.Equal(t, 500.0, m.Amount)
	}
}

func TestPayScenario(t *testing.T) {
	l := NewLedger(structure(500, "June", "July"), "S1")

	payable, amount := SelectPayable(&l, []string{"June"})
	require.Len(t, payable, 1)
	assert.Equal(t, 500.0, amount)

	ApplyPayment(&l, payable, "TXN_1", time.Now())

	assert.Equal(t, 500.0, l.RemainingFee)
	assert.Equal(t, 500.0, l.PaidFee)
	assert.Equal(t, shared.FeePaid, l.MonthlyStatus[0].Status)
	assert.Equal(t, "TXN_1", l.MonthlyStatus[0].TransactionID)
	assert.NotNil(t, l.MonthlyStatus[0].PaidDate)
	assert.Equal(t, shared.FeeDue, l.MonthlyStatus[1].Status)
}

func TestSelectPayable_SkipsPaidAndUnknown(t *testing.T) {
	l := NewLedger(structure(300, "June", "July", "August"), "S1")
	ApplyPayment(&l, l.MonthlyStatus[:1], "TXN_1", time.Now())

	payable, amount := SelectPayable(&l, []string{"June", "August", "December", "August"})
	assert.Equal(t, []string{"August"}, MonthNames(payable))
	assert.Equal(t, 300.0, amount)

	none, zero := SelectPayable(&l, []string{"June"})
	assert.Empty(t, none)
	assert.Equal(t, 0.0, zero)
}

func TestMerge_PreservesPaidMonths(t *testing.T) {
	old := NewLedger(structure(500, "June", "July", "August"), "S1")
	ApplyPayment(&old, old.MonthlyStatus[:1], "TXN_1", time.Now())

	next := structure(600, "July", "September")
	next.ID = "FST_2"
	merged := Merge(&old, next, "S1")

	assert.Equal(t, old.ID, merged.ID)
	assert.Equal(t, "FST_2", merged.FeeStructureID)
	assert.Equal(t, []string{"July", "September", "June"}, MonthNames(merged.MonthlyStatus))

	june := merged.MonthlyStatus[2]
	assert.Equal(t, shared.FeePaid, june.Status)
	assert.Equal(t, 500.0, june.Amount)
	assert.Equal(t, "TXN_1", june.TransactionID)

	assert.Equal(t, 600.0, merged.MonthlyStatus[0].Amount)
	assert.Equal(t, 1700.0, merged.TotalFee)
	assert.Equal(t, 500.0, merged.PaidFee)
	assert.Equal(t, 1200.0, merged.RemainingFee)
}

func TestMerge_PaidMonthStillInStructureKeepsAmount(t *testing.T) {
	old := NewLedger(structure(500, "June", "July"), "S1")
	ApplyPayment(&old, old.MonthlyStatus[:1], "TXN_1", time.Now())

	merged := Merge(&old, structure(800, "June", "July"), "S1")

	assert.Equal(t, 500.0, merged.MonthlyStatus[0].Amount)
	assert.Equal(t, shared.FeePaid, merged.MonthlyStatus[0].Status)
	assert.Equal(t, 800.0, merged.MonthlyStatus[1].Amount)
	assert.Equal(t, 1300.0, merged.TotalFee)
	assert.Equal(t, 800.0, merged.RemainingFee)
}

func TestValidateStructure(t *testing.T) {
	assert.Empty(t, ValidateStructure(500, []string{"June"}))
	assert.Empty(t, ValidateStructure(0, []string{"June"}))
	assert.NotEmpty(t, ValidateStructure(-1, []string{"June"}))
	assert.NotEmpty(t, ValidateStructure(500, nil))
	assert.NotEmpty(t, ValidateStructure(500, []string{"June", "June"}))
	assert.NotEmpty(t, ValidateStructure(500, []string{" "}))
}

func TestSummarize(t *testing.T) {
	a := NewLedger(structure(500, "June", "July"), "S1")
	b := NewLedger(structure(500, "June", "July"), "S2")
	ApplyPayment(&b, b.MonthlyStatus, "TXN_2", time.Now())

	students := map[string]shared.User{
		"S1": {ID: "S1", Role: shared.RoleStudent, FirstName: "Anu", LastName: "M", RegisterNumber: "ABC01"},
		"S2": {ID: "S2", Role: shared.RoleStudent, FirstName: "Binu", LastName: "K", RegisterNumber: "ABC02"},
	}

	stats := Summarize([]shared.StudentFee{a, b}, students)

	assert.Equal(t, 2000.0, stats.TotalExpected)
	assert.Equal(t, 1000.0, stats.TotalCollected)
	assert.Equal(t, 1000.0, stats.TotalPending)
	require.Len(t, stats.UnpaidStudents, 1)
	assert.Equal(t, "Anu M", stats.UnpaidStudents[0].Name)
	assert.Equal(t, "ABC01", stats.UnpaidStudents[0].RegisterNumber)
	assert.Equal(t, []string{"June", "July"}, stats.UnpaidStudents[0].PendingMonths)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil, nil)
	assert.Equal(t, 0.0, stats.TotalExpected)
	assert.NotNil(t, stats.UnpaidStudents)
	assert.Empty(t, stats.UnpaidStudents)
}

func TestRevertPayment(t *testing.T) {
	l := NewLedger(structure(500, "June", "July", "August"), "S1")
	ApplyPayment(&l, l.MonthlyStatus[:1], "TXN_1", time.Now())
	ApplyPayment(&l, l.MonthlyStatus[1:], "TXN_2", time.Now())
	require.Equal(t, 1500.0, l.PaidFee)

	released := RevertPayment(&l, "TXN_2", time.Now())

	assert.Equal(t, 1000.0, released)
	assert.Equal(t, 500.0, l.PaidFee)
	assert.Equal(t, 1000.0, l.RemainingFee)
	assert.Equal(t, shared.FeePaid, l.MonthlyStatus[0].Status)
	assert.Equal(t, "TXN_1", l.MonthlyStatus[0].TransactionID)
	for _, m := range l.MonthlyStatus[1:] {
		assert.Equal(t, shared.FeeDue, m.Status)
		assert.Empty(t, m.TransactionID)
		assert.Nil(t, m.PaidDate)
	}

	before := l
	assert.Zero(t, RevertPayment(&l, "TXN_unknown", time.Now()))
	assert.Equal(t, before.PaidFee, l.PaidFee)
}
