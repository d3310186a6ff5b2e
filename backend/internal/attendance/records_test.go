package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/shared"
)

func roster() []shared.User {
	return []shared.User{
		{ID: "s1", Role: shared.RoleStudent, FirstName: "Anu", LastName: "M", RegisterNumber: "ABC01"},
		{ID: "s2", Role: shared.RoleStudent, FirstName: "Binu", LastName: "K", RegisterNumber: "ABC02"},
		{ID: "s3", Role: shared.RoleStudent, FirstName: "Chitra", LastName: "P", RegisterNumber: "ABC03"},
	}
}

func TestBuildRecords(t *testing.T) {
	records, metrics := BuildRecords(roster(), []string{"s2"})

	require.Len(t, records, 3)
	assert.Equal(t, shared.AttendanceMetrics{TotalStudents: 3, TotalPresent: 2, TotalAbsent: 1}, metrics)
	assert.Equal(t, shared.StatusAbsent, records[1].Status)
	assert.Equal(t, "Binu K", records[1].Name)
	assert.Equal(t, "ABC02", records[1].RegisterNumber)

	present, absent := Split(records)
	assert.Len(t, present, 2)
	require.Len(t, absent, 1)
	assert.Equal(t, "s2", absent[0].StudentID)
}

func TestBuildRecords_IgnoresUnknownAbsentees(t *testing.T) {
	_, metrics := BuildRecords(roster(), []string{"outsider"})
	assert.Equal(t, 3, metrics.TotalPresent)
	assert.Equal(t, 0, metrics.TotalAbsent)
}

func TestBuildRecords_EmptyRoster(t *testing.T) {
	records, metrics := BuildRecords(nil, []string{"s1"})
	assert.Empty(t, records)
	assert.Equal(t, shared.AttendanceMetrics{}, metrics)
}

func TestRestamp(t *testing.T) {
	records, _ := BuildRecords(roster(), []string{"s2"})

	metrics := Restamp(records, []string{"s1", "s3"})

	assert.Equal(t, shared.AttendanceMetrics{TotalStudents: 3, TotalPresent: 1, TotalAbsent: 2}, metrics)
	assert.Equal(t, shared.StatusAbsent, records[0].Status)
	assert.Equal(t, shared.StatusPresent, records[1].Status)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]string{shared.StatusPresent, shared.StatusPresent, shared.StatusAbsent})
	assert.Equal(t, 3, s.TotalSessions)
	assert.Equal(t, 66.67, s.Percentage)

	assert.Equal(t, Summary{}, Summarize(nil))
}
