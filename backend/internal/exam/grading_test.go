package exam

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/shared"
)

func blueprint() *shared.Exam {
	return &shared.Exam{
		ID:            "EXM_1",
		BatchID:       "BAT_1",
		InstitutionID: "INS_1",
		Subjects: []shared.Subject{
			{Name: "Math", MaxMarks: 100, PassMarks: 40},
			{Name: "Sci", MaxMarks: 100, PassMarks: 40},
		},
	}
}

func TestGrade_FailedSubjectFailsExam(t *testing.T) {
	res := Grade(blueprint(), MarkEntry{StudentID: "s1", ObtainedMarks: Marks{"Math": 30, "Sci": 90}})

	require.Len(t, res.SubjectResults, 2)
	assert.Equal(t, shared.PassStatusFail, res.SubjectResults[0].PassStatus)
	assert.Equal(t, shared.PassStatusPass, res.SubjectResults[1].PassStatus)
	assert.Equal(t, shared.ResultFailed, res.ResultStatus)
	assert.Equal(t, 120.0, res.TotalObtainedMarks)
	assert.Equal(t, 200.0, res.TotalMaxMarks)
	assert.Equal(t, 60.0, res.Percentage)
	assert.Equal(t, "EXM_1", res.ExamID)
	assert.Equal(t, "BAT_1", res.BatchID)
}

func TestGrade_Passed(t *testing.T) {
	res := Grade(blueprint(), MarkEntry{StudentID: "s1", ObtainedMarks: Marks{"Math": 40, "Sci": 41}})
	assert.Equal(t, shared.ResultPassed, res.ResultStatus)
	assert.Equal(t, 40.5, res.Percentage)
}

func TestGrade_AbsentOverridesMarks(t *testing.T) {
	res := Grade(blueprint(), MarkEntry{StudentID: "s1", IsAbsent: true, ObtainedMarks: Marks{"Math": 99, "Sci": 99}})

	assert.Equal(t, shared.ResultAbsent, res.ResultStatus)
	assert.Equal(t, 0.0, res.TotalObtainedMarks)
	assert.Equal(t, 0.0, res.Percentage)
	for _, sr := range res.SubjectResults {
		assert.Equal(t, 0.0, sr.ObtainedMarks)
	}
}

func TestGrade_MissingSubjectCountsAsZero(t *testing.T) {
	res := Grade(blueprint(), MarkEntry{StudentID: "s1", ObtainedMarks: Marks{"Math": 80}})
	assert.Equal(t, shared.ResultFailed, res.ResultStatus)
	assert.Equal(t, 80.0, res.TotalObtainedMarks)
}

func TestGrade_ZeroMaxMarks(t *testing.T) {
	exam := &shared.Exam{Subjects: []shared.Subject{{Name: "Viva", MaxMarks: 0, PassMarks: 0}}}
	res := Grade(exam, MarkEntry{StudentID: "s1"})
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, shared.ResultPassed, res.ResultStatus)
}

func TestPercentage_Rounding(t *testing.T) {
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Equal(t, 66.67, Percentage(2, 3))
	assert.Equal(t, 0.0, Percentage(5, 0))
}

func TestMarks_LenientDecoding(t *testing.T) {
	var entries []MarkEntry
	body := `[
		{"studentId": "s1", "obtainedMarks": {"Math": 75, "Sci": "62.5", "Eng": "abc", "Art": null, "PE": true}},
		{"studentId": "s2", "obtainedMarks": "not-a-map"},
		{"studentId": "s3", "isAbsent": true}
	]`
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, 75.0, entries[0].ObtainedMarks["Math"])
	assert.Equal(t, 62.5, entries[0].ObtainedMarks["Sci"])
	assert.Equal(t, 0.0, entries[0].ObtainedMarks["Eng"])
	assert.Equal(t, 0.0, entries[0].ObtainedMarks["Art"])
	assert.Equal(t, 0.0, entries[0].ObtainedMarks["PE"])
	assert.Empty(t, entries[1].ObtainedMarks)
	assert.True(t, entries[2].IsAbsent)
}

func TestValidateSubjects(t *testing.T) {
	assert.Equal(t, "", ValidateSubjects(blueprint().Subjects))
	assert.NotEmpty(t, ValidateSubjects(nil))
	assert.NotEmpty(t, ValidateSubjects([]shared.Subject{{Name: "A", MaxMarks: 10, PassMarks: 20}}))
	assert.NotEmpty(t, ValidateSubjects([]shared.Subject{{Name: "A", MaxMarks: 10}, {Name: "A", MaxMarks: 10}}))
	assert.NotEmpty(t, ValidateSubjects([]shared.Subject{{Name: " ", MaxMarks: 10}}))
}
